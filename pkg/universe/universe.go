// Package universe runs a whole Life universe in one process: one node per
// strip partition, connected by an in-process halo ring.
package universe

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"

	"golang.org/x/sync/errgroup"

	"halo-ca/internal/core"
	"halo-ca/pkg/frame"
	"halo-ca/pkg/grid"
	"halo-ca/pkg/halo"
	"halo-ca/pkg/node"
	"halo-ca/pkg/rule"
	"halo-ca/pkg/stats"
)

// Option configures a Universe.
type Option func(*Universe)

// WithLogger makes every node log through l with a per-rank prefix.
func WithLogger(l *log.Logger) Option {
	return func(u *Universe) { u.log = l }
}

// Universe is a partitioned Life universe. It implements core.Sim.
type Universe struct {
	cfg     Config
	rule    rule.Rule
	strips  []Strip
	workers int
	log     *log.Logger
	frames  *frame.Dir

	nodes []*node.Node
	stats []*stats.Stats
	view  *core.ByteGrid
	fresh bool
	err   error
}

// New validates cfg, prepares the frame directory if one is configured and
// seeds the universe from cfg.Pattern or a random fill.
func New(cfg Config, opts ...Option) (*Universe, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r, _ := rule.Parse(cfg.Rule)
	strips, err := Layout(cfg.Width, cfg.Partitions)
	if err != nil {
		return nil, err
	}
	u := &Universe{
		cfg:     cfg,
		rule:    r,
		strips:  strips,
		workers: cfg.Workers,
		view:    core.NewByteGrid(cfg.Width, cfg.Height),
	}
	for _, opt := range opts {
		opt(u)
	}
	if pr, err := cfg.PatternRule(); err == nil && pr != "" && pr != r.String() && u.log != nil {
		u.log.Printf("pattern %s is written for %s, running %s", cfg.Pattern, pr, r)
	}
	if cfg.FramesDir != "" {
		u.frames = &frame.Dir{Path: cfg.FramesDir, PBM: cfg.FramesPBM}
		if err := u.frames.Prepare(); err != nil {
			return nil, err
		}
	}
	if err := u.seed(cfg.Seed); err != nil {
		return nil, err
	}
	return u, nil
}

// build replaces every node with an empty one on a fresh ring.
func (u *Universe) build() error {
	var ring []*halo.Local
	if len(u.strips) > 1 {
		ring = halo.NewRing(len(u.strips))
	}
	nodes := make([]*node.Node, len(u.strips))
	for i, s := range u.strips {
		opts := []node.Option{node.WithLogEvery(u.cfg.LogEvery)}
		if u.log != nil {
			prefix := fmt.Sprintf("%s[node %d] ", u.log.Prefix(), s.Rank)
			opts = append(opts, node.WithLogger(log.New(u.log.Writer(), prefix, u.log.Flags())))
		}
		if u.frames != nil {
			opts = append(opts, node.WithSnapshot(u.writeFrame, u.cfg.FrameEvery))
		}
		var t halo.Transport
		if ring != nil {
			t = ring[i]
		}
		n, err := node.New(node.Config{
			Rank:    s.Rank,
			Ranks:   len(u.strips),
			Width:   s.Width,
			Height:  u.cfg.Height,
			Offset:  s.Offset,
			Workers: u.workers,
			Rule:    u.rule,
		}, t, opts...)
		if err != nil {
			return err
		}
		nodes[i] = n
	}
	u.nodes = nodes
	u.err = nil
	u.fresh = false
	return nil
}

func (u *Universe) writeFrame(gen uint64, rank int, g *grid.Grid) error {
	return u.frames.WriteFrame(gen, rank, g)
}

func (u *Universe) seed(seed int64) error {
	if err := u.build(); err != nil {
		return err
	}
	cfg := u.cfg
	cfg.Seed = seed
	var err error
	seedErr := cfg.EachSeed(func(x, y int) {
		if err == nil {
			err = u.Seed(x, y, true)
		}
	})
	if seedErr != nil {
		return seedErr
	}
	return err
}

// Name returns the simulation identifier.
func (u *Universe) Name() string { return "halo-life" }

// Size returns the universe dimensions.
func (u *Universe) Size() core.Size { return core.Size{W: u.cfg.Width, H: u.cfg.Height} }

// Width returns the universe width.
func (u *Universe) Width() int { return u.cfg.Width }

// Height returns the universe height.
func (u *Universe) Height() int { return u.cfg.Height }

// Rule returns the evaluated rule.
func (u *Universe) Rule() rule.Rule { return u.rule }

// Strips returns the partition layout.
func (u *Universe) Strips() []Strip { return u.strips }

// Boundaries returns the first column of every strip, for drawing the
// partition borders.
func (u *Universe) Boundaries() []int {
	xs := make([]int, len(u.strips))
	for i, s := range u.strips {
		xs[i] = s.Offset
	}
	return xs
}

// Nodes exposes the partition owners.
func (u *Universe) Nodes() []*node.Node { return u.nodes }

// Reset rebuilds every partition and seeds it again with the given seed.
func (u *Universe) Reset(seed int64) {
	if err := u.seed(seed); err != nil {
		u.fail(err)
	}
}

// Seed sets a cell in universe coordinates, wrapping both axes.
func (u *Universe) Seed(x, y int, alive bool) error {
	x, y = u.view.Wrap(x, y)
	n := u.nodes[owner(u.strips, x)]
	if _, err := n.SeedGlobal(x, y, alive); err != nil {
		return err
	}
	u.fresh = false
	return nil
}

// Step advances one generation. Failures stop the universe and are
// reported by Err.
func (u *Universe) Step() {
	if u.err != nil {
		return
	}
	if err := u.Run(context.Background(), 1); err != nil {
		u.fail(err)
	}
}

func (u *Universe) fail(err error) {
	u.err = err
	if u.log != nil {
		u.log.Printf("universe stopped: %v", err)
	}
}

// Err returns the failure that stopped Step, if any.
func (u *Universe) Err() error { return u.err }

// Run advances every partition by count generations concurrently.
func (u *Universe) Run(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}
	u.fresh = false
	if len(u.nodes) == 1 {
		return u.nodes[0].RunGenerations(ctx, count)
	}
	eg, ctx := errgroup.WithContext(ctx)
	for _, n := range u.nodes {
		eg.Go(func() error { return n.RunGenerations(ctx, count) })
	}
	return eg.Wait()
}

// RunTimed is Run with a fresh timing recorder per partition. The
// recorders are available from Stats afterwards.
func (u *Universe) RunTimed(ctx context.Context, count int) error {
	u.stats = make([]*stats.Stats, len(u.nodes))
	for i, n := range u.nodes {
		u.stats[i] = stats.New(count, n.Workers())
		if err := n.SetRecorder(u.stats[i]); err != nil {
			return err
		}
	}
	return u.Run(ctx, count)
}

// Stats returns the recorders of the last RunTimed call, one per rank.
func (u *Universe) Stats() []*stats.Stats { return u.stats }

// WriteReport writes the timing report of every rank.
func (u *Universe) WriteReport(w io.Writer) error {
	for r, st := range u.stats {
		if _, err := fmt.Fprintf(w, "node %d\n", r); err != nil {
			return err
		}
		if err := st.WriteReport(w); err != nil {
			return err
		}
	}
	return nil
}

// Dump writes the tracked cells of every rank with their reference counts,
// in strip-local coordinates.
func (u *Universe) Dump(w io.Writer) error {
	for _, n := range u.nodes {
		if _, err := fmt.Fprintf(w, "node %d offset %d\n", n.Config().Rank, n.Config().Offset); err != nil {
			return err
		}
		if err := n.Grid().Dump(w); err != nil {
			return err
		}
	}
	return nil
}

// Generation returns the number of completed generations.
func (u *Universe) Generation() uint64 { return u.nodes[0].Generation() }

// Population returns the number of alive cells.
func (u *Universe) Population() int {
	total := 0
	for _, n := range u.nodes {
		total += n.Grid().Population()
	}
	return total
}

// Active returns the size of the combined active sets.
func (u *Universe) Active() int {
	total := 0
	for _, n := range u.nodes {
		total += n.Grid().Len()
	}
	return total
}

// Alive reports whether the cell at universe coordinates (x, y) is alive.
func (u *Universe) Alive(x, y int) bool {
	n := u.nodes[owner(u.strips, x)]
	return n.Grid().Alive(x-n.Config().Offset, y)
}

// AppendAlive appends the alive cells in universe coordinates.
func (u *Universe) AppendAlive(dst []grid.Point) []grid.Point {
	for _, n := range u.nodes {
		start := len(dst)
		dst = n.Grid().AppendAlive(dst)
		for i := start; i < len(dst); i++ {
			dst[i].X += n.Config().Offset
		}
	}
	return dst
}

// AppendTracked appends the dead cells that are tracked because they have
// alive neighbours, in universe coordinates.
func (u *Universe) AppendTracked(dst []grid.Point) []grid.Point {
	for _, n := range u.nodes {
		off := n.Config().Offset
		it := n.Grid().Iter(0, 1)
		for it.Next() {
			if c := it.Cell(); !c.Alive {
				dst = append(dst, grid.Point{X: int(c.X) + off, Y: int(c.Y)})
			}
		}
	}
	return dst
}

// Cells returns the universe as 0/1 bytes in row-major order.
func (u *Universe) Cells() []uint8 {
	if u.fresh {
		return u.view.Cells()
	}
	u.view.Clear()
	cells := u.view.Cells()
	for _, n := range u.nodes {
		off := n.Config().Offset
		it := n.Grid().Iter(0, 1)
		for it.Next() {
			if c := it.Cell(); c.Alive {
				cells[u.view.Index(int(c.X)+off, int(c.Y))] = 1
			}
		}
	}
	u.fresh = true
	return cells
}

// Frame writes the whole universe in the text frame format.
func (u *Universe) Frame(w io.Writer) error { return frame.Encode(w, u) }

// Workers returns the evaluation workers per partition.
func (u *Universe) Workers() int { return u.workers }

// Parameters reports the current settings for the HUD.
func (u *Universe) Parameters() core.ParameterSnapshot {
	return core.ParameterSnapshot{Groups: []core.ParameterGroup{
		{
			Name: "Universe",
			Params: []core.Parameter{
				{Key: "size", Label: "Size", Type: core.ParamTypeText, Value: fmt.Sprintf("%dx%d", u.cfg.Width, u.cfg.Height)},
				{Key: "rule", Label: "Rule", Type: core.ParamTypeText, Value: u.rule.String()},
				{Key: "partitions", Label: "Partitions", Type: core.ParamTypeInt, Value: strconv.Itoa(len(u.strips))},
				{Key: "workers", Label: "Workers", Type: core.ParamTypeInt, Value: strconv.Itoa(u.workers)},
				{Key: "density", Label: "Density", Type: core.ParamTypeFloat, Value: strconv.FormatFloat(u.cfg.Density, 'f', 2, 64)},
			},
		},
		{
			Name: "State",
			Params: []core.Parameter{
				{Key: "generation", Label: "Generation", Type: core.ParamTypeInt, Value: strconv.FormatUint(u.Generation(), 10)},
				{Key: "population", Label: "Population", Type: core.ParamTypeInt, Value: strconv.Itoa(u.Population())},
				{Key: "active", Label: "Active set", Type: core.ParamTypeInt, Value: strconv.Itoa(u.Active())},
			},
		},
	}}
}

// ParameterControls lists the HUD-adjustable settings.
func (u *Universe) ParameterControls() []core.ParameterControl {
	return []core.ParameterControl{
		{Key: "workers", Label: "Workers", Type: core.ParamTypeInt, Step: 1, Min: 1, Max: 64, HasMin: true, HasMax: true},
		{Key: "density", Label: "Density", Type: core.ParamTypeFloat, Step: 0.05, Min: 0, Max: 1, HasMin: true, HasMax: true},
	}
}

// SetFloatParameter changes the random fill density used by the next Reset.
func (u *Universe) SetFloatParameter(key string, value float64) bool {
	if key != "density" || value < 0 || value > 1 {
		return false
	}
	u.cfg.Density = value
	return true
}

// SetIntParameter changes the worker count of every partition.
func (u *Universe) SetIntParameter(key string, value int) bool {
	if key != "workers" || value < 1 {
		return false
	}
	for _, n := range u.nodes {
		if err := n.SetWorkers(value); err != nil {
			return false
		}
	}
	u.workers = value
	return true
}

// clamped pulls sizes and counts of c into a range New accepts.
func clamped(c Config) Config {
	def := DefaultConfig()
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.Height <= 0 {
		c.Height = def.Height
	}
	c.Partitions = min(max(c.Partitions, 1), c.Width)
	c.Workers = max(c.Workers, 1)
	c.Generations = max(c.Generations, 0)
	c.FrameEvery = max(c.FrameEvery, 0)
	return c
}

func init() {
	core.Register("halo-life", func(m map[string]string) core.Sim {
		u, err := New(clamped(FromMap(m)))
		if err != nil {
			log.Printf("halo-life: %v, falling back to defaults", err)
			u, err = New(DefaultConfig())
			if err != nil {
				panic(err)
			}
		}
		return u
	})
}
