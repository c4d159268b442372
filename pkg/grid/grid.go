// Package grid stores one partition of a Life universe sparsely.
//
// Only cells that matter are tracked: alive cells and dead cells with at
// least one alive neighbour. Every tracked cell carries the number of alive
// neighbours, maintained incrementally by Revive and Kill, so a generation
// never re-scans the partition. Tracked cells live in a dense arena and a
// slot table maps coordinates to arena indices.
package grid

import (
	"errors"
	"fmt"
	"io"
)

// Point is a pair of coordinates.
type Point struct {
	X, Y int
}

// Cell is the tracked state of one position.
type Cell struct {
	X, Y  int32
	Count int8 // alive neighbours; signed so transient underflow is visible
	Alive bool
}

// Point returns the cell position.
func (c Cell) Point() Point { return Point{X: int(c.X), Y: int(c.Y)} }

// Config describes the partition owned by a Grid.
type Config struct {
	Width  int
	Height int

	// Halo selects halo semantics along X: neighbours outside [0, Width)
	// are not resolved locally and edge state changes are reported to Sink.
	// Without Halo both axes wrap toroidally.
	Halo bool
	Sink EdgeSink
}

// Grid is the sparse incremental cell store of one partition. It has no
// synchronisation of its own: concurrent readers are fine, a writer must be
// exclusive.
type Grid struct {
	w, h  int
	halo  bool
	sink  EdgeSink
	slots []int32 // arena index + 1, 0 when untracked
	cells []Cell
	alive int
}

// New allocates an empty grid.
func New(cfg Config) (*Grid, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("grid: invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Halo && cfg.Sink == nil {
		return nil, errors.New("grid: halo mode requires an edge sink")
	}
	return &Grid{
		w:     cfg.Width,
		h:     cfg.Height,
		halo:  cfg.Halo,
		sink:  cfg.Sink,
		slots: make([]int32, cfg.Width*cfg.Height),
		cells: make([]Cell, 0, 64),
	}, nil
}

// Width returns the partition width.
func (g *Grid) Width() int { return g.w }

// Height returns the partition height.
func (g *Grid) Height() int { return g.h }

// Halo reports whether the grid uses halo semantics.
func (g *Grid) Halo() bool { return g.halo }

// Len returns the size of the active set.
func (g *Grid) Len() int { return len(g.cells) }

// Population returns the number of alive cells.
func (g *Grid) Population() int { return g.alive }

func (g *Grid) index(x, y int) int { return y*g.w + x }

func wrap(v, n int) int { return (v%n + n) % n }

// resolve applies the boundary policy to neighbour coordinates. It reports
// false when the position belongs to another partition.
func (g *Grid) resolve(x, y int) (int, int, bool) {
	y = wrap(y, g.h)
	if g.halo {
		if x < 0 || x >= g.w {
			return 0, 0, false
		}
		return x, y, true
	}
	return wrap(x, g.w), y, true
}

// locate resolves coordinates that must be owned locally.
func (g *Grid) locate(x, y int) (int, int) {
	rx, ry, ok := g.resolve(x, y)
	if !ok {
		panic(fmt.Sprintf("grid: x=%d outside partition of width %d", x, g.w))
	}
	return rx, ry
}

// Cell returns the tracked cell at (x, y), if any.
func (g *Grid) Cell(x, y int) (Cell, bool) {
	x, y = g.locate(x, y)
	i := g.slots[g.index(x, y)]
	if i == 0 {
		return Cell{}, false
	}
	return g.cells[i-1], true
}

// Alive reports whether the cell at (x, y) is alive.
func (g *Grid) Alive(x, y int) bool {
	c, ok := g.Cell(x, y)
	return ok && c.Alive
}

func (g *Grid) insert(c Cell) {
	g.cells = append(g.cells, c)
	g.slots[g.index(int(c.X), int(c.Y))] = int32(len(g.cells))
}

// remove deletes arena entry i by moving the last entry into its place.
func (g *Grid) remove(i int) {
	c := g.cells[i]
	last := len(g.cells) - 1
	if i != last {
		moved := g.cells[last]
		g.cells[i] = moved
		g.slots[g.index(int(moved.X), int(moved.Y))] = int32(i + 1)
	}
	g.cells = g.cells[:last]
	g.slots[g.index(int(c.X), int(c.Y))] = 0
}

// IncRef records one more alive neighbour for (x, y), tracking the position
// if needed. Positions owned by another partition are ignored.
func (g *Grid) IncRef(x, y int) {
	x, y, ok := g.resolve(x, y)
	if !ok {
		return
	}
	if i := g.slots[g.index(x, y)]; i != 0 {
		g.cells[i-1].Count++
		return
	}
	g.insert(Cell{X: int32(x), Y: int32(y), Count: 1})
}

// DecRef records one alive neighbour less for (x, y). A dead cell whose
// count drops to zero stops being tracked.
func (g *Grid) DecRef(x, y int) {
	x, y, ok := g.resolve(x, y)
	if !ok {
		return
	}
	i := g.slots[g.index(x, y)]
	if i == 0 {
		return
	}
	c := &g.cells[i-1]
	c.Count--
	if !c.Alive && c.Count <= 0 {
		g.remove(int(i - 1))
	}
}

func (g *Grid) neighbours(x, y int, ref func(int, int)) {
	ref(x-1, y-1)
	ref(x-1, y)
	ref(x-1, y+1)
	ref(x, y-1)
	ref(x, y+1)
	ref(x+1, y-1)
	ref(x+1, y)
	ref(x+1, y+1)
}

func (g *Grid) record(x, y int, d Delta) {
	if !g.halo {
		return
	}
	if x == 0 {
		g.sink.Record(Low, d, y)
	}
	if x == g.w-1 {
		g.sink.Record(High, d, y)
	}
}

// Revive makes the cell at (x, y) alive. It reports whether the state
// changed; reviving an alive cell is a no-op.
func (g *Grid) Revive(x, y int) bool {
	x, y = g.locate(x, y)
	i := g.slots[g.index(x, y)]
	switch {
	case i == 0:
		g.insert(Cell{X: int32(x), Y: int32(y), Alive: true})
	case g.cells[i-1].Alive:
		return false
	default:
		g.cells[i-1].Alive = true
	}
	g.alive++
	g.record(x, y, DeltaRevive)
	g.neighbours(x, y, g.IncRef)
	return true
}

// Kill makes the cell at (x, y) dead. It reports whether the state changed;
// killing an absent or dead cell is a no-op.
func (g *Grid) Kill(x, y int) bool {
	x, y = g.locate(x, y)
	idx := g.index(x, y)
	i := g.slots[idx]
	if i == 0 || !g.cells[i-1].Alive {
		return false
	}
	g.record(x, y, DeltaKill)
	g.neighbours(x, y, g.DecRef)

	// DecRef may have moved this cell inside the arena.
	i = g.slots[idx]
	c := &g.cells[i-1]
	c.Alive = false
	g.alive--
	if c.Count <= 0 {
		g.remove(int(i - 1))
	}
	return true
}

// FoldEdge applies deltas received from the neighbour across edge e. Each
// row in ys is a phantom cell just outside the partition whose three local
// neighbours get their reference counts adjusted.
func (g *Grid) FoldEdge(e Edge, d Delta, ys []int32) {
	x := 0
	if e == High {
		x = g.w - 1
	}
	ref := g.IncRef
	if d == DeltaKill {
		ref = g.DecRef
	}
	for _, y := range ys {
		ref(x, int(y)-1)
		ref(x, int(y))
		ref(x, int(y)+1)
	}
}

// AppendAlive appends the positions of alive cells to dst in arena order.
func (g *Grid) AppendAlive(dst []Point) []Point {
	for _, c := range g.cells {
		if c.Alive {
			dst = append(dst, c.Point())
		}
	}
	return dst
}

// Dump writes one line per tracked cell with its state and reference count.
func (g *Grid) Dump(w io.Writer) error {
	for i, c := range g.cells {
		state := "dead"
		if c.Alive {
			state = "alive"
		}
		if _, err := fmt.Fprintf(w, "%3d (%3d,%3d) %-5s ref=%d\n", i, c.X, c.Y, state, c.Count); err != nil {
			return err
		}
	}
	return nil
}
