package grid

// Edge names one of the two borders of a strip partition.
type Edge uint8

const (
	// Low is the border at local x == 0, shared with rank-1.
	Low Edge = iota
	// High is the border at local x == Width-1, shared with rank+1.
	High
)

// Edges lists both borders in exchange order.
var Edges = [2]Edge{Low, High}

// Opposite returns the border a message sent across e arrives on.
func (e Edge) Opposite() Edge {
	if e == Low {
		return High
	}
	return Low
}

func (e Edge) String() string {
	if e == Low {
		return "low"
	}
	return "high"
}

// Delta is the kind of state change shipped across an edge.
type Delta uint8

const (
	DeltaRevive Delta = iota
	DeltaKill
)

func (d Delta) String() string {
	if d == DeltaRevive {
		return "revive"
	}
	return "kill"
}

// EdgeSink receives state changes of edge cells in halo mode.
type EdgeSink interface {
	Record(e Edge, d Delta, y int)
}

// Iterator walks a strided share of the active set. The zero value is
// exhausted; obtain one from Grid.Iter.
type Iterator struct {
	g       *Grid
	start   int
	step    int
	pos     int
	started bool
}

// Iter returns an iterator over every workers-th tracked cell starting at
// offset worker. Disjoint workers see disjoint cells, so parallel readers
// need no locking while nobody mutates the grid.
func (g *Grid) Iter(worker, workers int) Iterator {
	if workers <= 0 {
		workers = 1
	}
	return Iterator{g: g, start: worker, step: workers}
}

// Next advances the iterator.
func (it *Iterator) Next() bool {
	if it.g == nil {
		return false
	}
	if it.started {
		it.pos += it.step
	} else {
		it.pos = it.start
		it.started = true
	}
	return it.pos < len(it.g.cells)
}

// Cell returns the current cell.
func (it *Iterator) Cell() Cell { return it.g.cells[it.pos] }

// Reset rewinds the iterator.
func (it *Iterator) Reset() { it.started = false }
