package rule

import (
	"context"

	"golang.org/x/sync/errgroup"

	"halo-ca/pkg/grid"
	"halo-ca/pkg/stats"
)

// Plan lists the state changes of one generation.
type Plan struct {
	Revive []grid.Point
	Kill   []grid.Point
}

func (p *Plan) reset() {
	p.Revive = p.Revive[:0]
	p.Kill = p.Kill[:0]
}

// Engine classifies a grid's active set on a fixed number of workers. Each
// worker scans a strided share of the active set into its own Plan, so the
// scan needs no locks as long as nobody mutates the grid meanwhile.
type Engine struct {
	rule   Rule
	shares []Plan
	merged Plan
	rec    stats.Recorder
}

// NewEngine returns an engine running on the given number of workers.
func NewEngine(r Rule, workers int) *Engine {
	e := &Engine{rule: r, rec: stats.Discard}
	e.SetWorkers(workers)
	return e
}

// Rule returns the evaluated rule.
func (e *Engine) Rule() Rule { return e.rule }

// Workers returns the worker count.
func (e *Engine) Workers() int { return len(e.shares) }

// SetWorkers changes the worker count. Values below one select one worker.
// It must not be called during Evaluate.
func (e *Engine) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	if n == len(e.shares) {
		return
	}
	shares := make([]Plan, n)
	copy(shares, e.shares)
	e.shares = shares
}

// SetRecorder installs the timing collaborator for per-worker times.
func (e *Engine) SetRecorder(rec stats.Recorder) {
	if rec == nil {
		rec = stats.Discard
	}
	e.rec = rec
}

// Evaluate classifies every tracked cell of g. The returned Plan is owned
// by the engine and stays valid until the next call.
func (e *Engine) Evaluate(ctx context.Context, g *grid.Grid) (Plan, error) {
	workers := len(e.shares)
	eg, ctx := errgroup.WithContext(ctx)
	for k := 0; k < workers; k++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m := e.rec.Start()
			share := &e.shares[k]
			share.reset()
			it := g.Iter(k, workers)
			for it.Next() {
				c := it.Cell()
				switch e.rule.Classify(c) {
				case Revive:
					share.Revive = append(share.Revive, c.Point())
				case Kill:
					share.Kill = append(share.Kill, c.Point())
				}
			}
			e.rec.EndWorker(m, k)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Plan{}, err
	}

	e.merged.reset()
	for i := range e.shares {
		e.merged.Revive = append(e.merged.Revive, e.shares[i].Revive...)
		e.merged.Kill = append(e.merged.Kill, e.shares[i].Kill...)
	}
	return e.merged, nil
}
