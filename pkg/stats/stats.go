// Package stats accumulates per-phase wall-clock timings of a run. It is a
// side channel: nothing recorded here influences the simulation.
package stats

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Category names a measured phase.
type Category int

const (
	Total Category = iota
	Iteration
	Communication
	Evaluation
	Update
	numCategories
)

var categoryLabels = [numCategories]string{
	Total:         "Total",
	Iteration:     "   Iteration",
	Communication: "      Communication",
	Evaluation:    "      Evaluation",
	Update:        "      World update",
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryLabels[c]
}

// Mark is an opaque measurement start.
type Mark struct {
	t time.Time
}

// Recorder is the timing collaborator used by nodes and rule engines.
type Recorder interface {
	Start() Mark
	End(m Mark, c Category)
	EndWorker(m Mark, worker int)
}

type discard struct{}

func (discard) Start() Mark { return Mark{} }
func (discard) End(Mark, Category) {}
func (discard) EndWorker(Mark, int) {}

// Discard is a Recorder that measures nothing.
var Discard Recorder = discard{}

// Stats averages measurements over a fixed number of iterations. End is
// meant for a single goroutine; EndWorker may run concurrently as long as
// each worker index is used by one goroutine at a time.
type Stats struct {
	factor  float64
	phases  [numCategories]time.Duration
	workers []time.Duration
	now     func() time.Time
}

// New returns Stats that report per-iteration averages.
func New(iterations, workers int) *Stats {
	if iterations <= 0 {
		iterations = 1
	}
	if workers < 0 {
		workers = 0
	}
	return &Stats{
		factor:  1 / float64(iterations),
		workers: make([]time.Duration, workers),
		now:     time.Now,
	}
}

// Start begins a measurement.
func (s *Stats) Start() Mark { return Mark{t: s.now()} }

// End adds the time elapsed since m to category c.
func (s *Stats) End(m Mark, c Category) {
	if c < 0 || c >= numCategories {
		return
	}
	s.phases[c] += s.now().Sub(m.t)
}

// EndWorker adds the time elapsed since m to a worker slot. Unknown worker
// indices are ignored.
func (s *Stats) EndWorker(m Mark, worker int) {
	if worker < 0 || worker >= len(s.workers) {
		return
	}
	s.workers[worker] += s.now().Sub(m.t)
}

// Seconds returns the averaged time of a category in seconds.
func (s *Stats) Seconds(c Category) float64 {
	if c < 0 || c >= numCategories {
		return 0
	}
	return s.phases[c].Seconds() * s.factor
}

// WorkerSeconds returns the averaged busy time of a worker in seconds.
func (s *Stats) WorkerSeconds(worker int) float64 {
	if worker < 0 || worker >= len(s.workers) {
		return 0
	}
	return s.workers[worker].Seconds() * s.factor
}

// Workers returns the number of worker slots.
func (s *Stats) Workers() int { return len(s.workers) }

// WriteReport writes an indented table of averaged timings.
func (s *Stats) WriteReport(w io.Writer) error {
	for c := Category(0); c < numCategories; c++ {
		if _, err := fmt.Fprintf(w, "%-25s%.10e\n", c, s.Seconds(c)); err != nil {
			return err
		}
	}
	for i := range s.workers {
		label := fmt.Sprintf("         Worker%d", i)
		if _, err := fmt.Fprintf(w, "%-25s%.10e\n", label, s.WorkerSeconds(i)); err != nil {
			return err
		}
	}
	return nil
}

// SaveReport writes the report to path, replacing any previous content.
func (s *Stats) SaveReport(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stats: create report: %w", err)
	}
	if err := s.WriteReport(f); err != nil {
		f.Close()
		return fmt.Errorf("stats: write report: %w", err)
	}
	return f.Close()
}

// AppendGnuplot appends one tab separated row: iterations, universe size,
// tracked cells, every category and every worker.
func (s *Stats) AppendGnuplot(path string, iterations, size, cells int) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("stats: open gnuplot data: %w", err)
	}
	if err := s.writeRow(f, iterations, size, cells); err != nil {
		f.Close()
		return fmt.Errorf("stats: write gnuplot row: %w", err)
	}
	return f.Close()
}

func (s *Stats) writeRow(w io.Writer, iterations, size, cells int) error {
	if _, err := fmt.Fprintf(w, "%d\t%d\t%d", iterations, size, cells); err != nil {
		return err
	}
	for c := Category(0); c < numCategories; c++ {
		if _, err := fmt.Fprintf(w, "\t%.10e", s.Seconds(c)); err != nil {
			return err
		}
	}
	for i := range s.workers {
		if _, err := fmt.Fprintf(w, "\t%.10e", s.WorkerSeconds(i)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
