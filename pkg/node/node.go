// Package node drives one strip partition of a Life universe.
//
// A Node owns a grid, a rule engine and, when the universe is split across
// several ranks, a halo exchanger. Every generation cycles through the
// phases Exchanging, Evaluating and Committing before returning to Idle.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"halo-ca/pkg/grid"
	"halo-ca/pkg/halo"
	"halo-ca/pkg/rule"
	"halo-ca/pkg/stats"
)

// Phase is the position of a node inside the generation cycle.
type Phase int32

const (
	Idle Phase = iota
	Exchanging
	Evaluating
	Committing
)

func (p Phase) String() string {
	switch p {
	case Exchanging:
		return "exchanging"
	case Evaluating:
		return "evaluating"
	case Committing:
		return "committing"
	default:
		return "idle"
	}
}

// ErrBusy is returned when the grid is touched while a generation runs.
var ErrBusy = errors.New("node: generation in progress")

// Config places a node inside the ring.
type Config struct {
	Rank  int
	Ranks int
	// Width and Height are the partition size; Offset is the global x of
	// local column 0.
	Width   int
	Height  int
	Offset  int
	Workers int
	Rule    rule.Rule
}

// SnapshotFunc receives the grid after a generation. Returning an error
// aborts the whole group.
type SnapshotFunc func(gen uint64, rank int, g *grid.Grid) error

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the progress logger. Nodes are silent by default.
func WithLogger(l *log.Logger) Option {
	return func(n *Node) {
		if l != nil {
			n.log = l
		}
	}
}

// WithLogEvery logs progress every k generations; 0 disables it.
func WithLogEvery(k int) Option {
	return func(n *Node) { n.logEvery = k }
}

// WithRecorder sets the timing collaborator.
func WithRecorder(r stats.Recorder) Option {
	return func(n *Node) {
		if r != nil {
			n.rec = r
		}
	}
}

// WithSnapshot calls fn after every k-th generation, or only after the
// last generation of each RunGenerations call when k is 0.
func WithSnapshot(fn SnapshotFunc, every int) Option {
	return func(n *Node) {
		n.snapshot = fn
		n.snapEvery = every
	}
}

// Node is one partition of the universe.
type Node struct {
	cfg    Config
	grid   *grid.Grid
	engine *rule.Engine
	x      *halo.Exchanger
	t      halo.Transport

	log       *log.Logger
	logEvery  int
	rec       stats.Recorder
	snapshot  SnapshotFunc
	snapEvery int

	phase atomic.Int32
	gen   atomic.Uint64
}

// New builds a node. A transport is required when Ranks > 1; a single
// rank wraps toroidally and never communicates.
func New(cfg Config, t halo.Transport, opts ...Option) (*Node, error) {
	switch {
	case cfg.Width <= 0 || cfg.Height <= 0:
		return nil, fmt.Errorf("node: invalid partition size %dx%d", cfg.Width, cfg.Height)
	case cfg.Workers <= 0:
		return nil, fmt.Errorf("node: invalid worker count %d", cfg.Workers)
	case cfg.Ranks < 1 || cfg.Rank < 0 || cfg.Rank >= cfg.Ranks:
		return nil, fmt.Errorf("node: rank %d outside ring of %d", cfg.Rank, cfg.Ranks)
	case cfg.Ranks > 1 && t == nil:
		return nil, fmt.Errorf("node: %d ranks need a transport", cfg.Ranks)
	}

	n := &Node{
		cfg:    cfg,
		engine: rule.NewEngine(cfg.Rule, cfg.Workers),
		t:      t,
		log:    log.New(io.Discard, "", 0),
		rec:    stats.Discard,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.engine.SetRecorder(n.rec)

	gcfg := grid.Config{Width: cfg.Width, Height: cfg.Height}
	if cfg.Ranks > 1 {
		n.x = halo.NewExchanger(cfg.Rank, cfg.Ranks, cfg.Height, t)
		gcfg.Halo = true
		gcfg.Sink = n.x.Buffers()
	}
	g, err := grid.New(gcfg)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	n.grid = g
	return n, nil
}

// Config returns the node configuration.
func (n *Node) Config() Config { return n.cfg }

// Grid returns the local partition. It must only be read while Idle.
func (n *Node) Grid() *grid.Grid { return n.grid }

// Phase returns the current phase. It is safe to call concurrently.
func (n *Node) Phase() Phase { return Phase(n.phase.Load()) }

// Generation returns the number of completed generations.
func (n *Node) Generation() uint64 { return n.gen.Load() }

// Workers returns the size of the evaluation pool.
func (n *Node) Workers() int { return n.engine.Workers() }

// SetWorkers resizes the evaluation pool between generations.
func (n *Node) SetWorkers(k int) error {
	if n.Phase() != Idle {
		return ErrBusy
	}
	if k <= 0 {
		return fmt.Errorf("node: invalid worker count %d", k)
	}
	n.engine.SetWorkers(k)
	return nil
}

// SetRecorder replaces the timing collaborator between generations.
func (n *Node) SetRecorder(r stats.Recorder) error {
	if n.Phase() != Idle {
		return ErrBusy
	}
	if r == nil {
		r = stats.Discard
	}
	n.rec = r
	n.engine.SetRecorder(r)
	return nil
}

// Owns reports whether global column gx belongs to this partition.
func (n *Node) Owns(gx int) bool {
	return gx >= n.cfg.Offset && gx < n.cfg.Offset+n.cfg.Width
}

// Seed sets a cell in local coordinates outside of a generation. Edge
// changes are shipped with the next exchange.
func (n *Node) Seed(x, y int, alive bool) error {
	if n.Phase() != Idle {
		return ErrBusy
	}
	if x < 0 || x >= n.cfg.Width || y < 0 || y >= n.cfg.Height {
		return fmt.Errorf("node: cell (%d,%d) outside %dx%d partition", x, y, n.cfg.Width, n.cfg.Height)
	}
	if alive {
		n.grid.Revive(x, y)
	} else {
		n.grid.Kill(x, y)
	}
	return nil
}

// SeedGlobal seeds a cell given in universe coordinates. It reports false
// when the column belongs to another partition.
func (n *Node) SeedGlobal(gx, gy int, alive bool) (bool, error) {
	if !n.Owns(gx) {
		return false, nil
	}
	return true, n.Seed(gx-n.cfg.Offset, gy, alive)
}

// RunGenerations advances count generations. Any failure aborts the whole
// group through the transport so that no peer waits forever, and is
// returned wrapped.
func (n *Node) RunGenerations(ctx context.Context, count int) error {
	total := n.rec.Start()
	for i := 0; i < count; i++ {
		if err := n.step(ctx); err != nil {
			n.fail(err)
			return err
		}
		gen := n.gen.Load()
		if n.logEvery > 0 && gen%uint64(n.logEvery) == 0 {
			n.log.Printf("generation %d: population %d, active %d", gen, n.grid.Population(), n.grid.Len())
		}
		last := i == count-1
		if n.snapshot != nil && ((n.snapEvery > 0 && gen%uint64(n.snapEvery) == 0) || (n.snapEvery == 0 && last)) {
			if err := n.snapshot(gen, n.cfg.Rank, n.grid); err != nil {
				err = fmt.Errorf("node %d: snapshot of generation %d: %w", n.cfg.Rank, gen, err)
				n.fail(err)
				return err
			}
		}
	}
	n.rec.End(total, stats.Total)
	return nil
}

func (n *Node) step(ctx context.Context) error {
	iter := n.rec.Start()
	gen := n.gen.Load()

	if n.x != nil {
		n.phase.Store(int32(Exchanging))
		m := n.rec.Start()
		if err := n.x.Exchange(ctx, gen, n.grid); err != nil {
			return fmt.Errorf("node %d: generation %d: %w", n.cfg.Rank, gen, err)
		}
		n.rec.End(m, stats.Communication)
	}

	n.phase.Store(int32(Evaluating))
	m := n.rec.Start()
	plan, err := n.engine.Evaluate(ctx, n.grid)
	if err != nil {
		return fmt.Errorf("node %d: generation %d: %w", n.cfg.Rank, gen, err)
	}
	n.rec.End(m, stats.Evaluation)

	n.phase.Store(int32(Committing))
	m = n.rec.Start()
	for _, p := range plan.Revive {
		n.grid.Revive(p.X, p.Y)
	}
	for _, p := range plan.Kill {
		n.grid.Kill(p.X, p.Y)
	}
	n.rec.End(m, stats.Update)

	n.gen.Add(1)
	n.phase.Store(int32(Idle))
	n.rec.End(iter, stats.Iteration)
	return nil
}

func (n *Node) fail(err error) {
	n.phase.Store(int32(Idle))
	if errors.Is(err, halo.ErrAborted) {
		n.log.Printf("stopping: %v", err)
	} else {
		n.log.Printf("aborting group: %v", err)
	}
	if n.t != nil {
		n.t.Abort(err)
	}
}

// Close releases the transport.
func (n *Node) Close() error {
	if n.t == nil {
		return nil
	}
	return n.t.Close()
}
