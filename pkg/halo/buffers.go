// Package halo ships edge deltas between the strip partitions of a ring.
//
// Every generation each partition sends the rows of its two border columns
// that were revived or killed since the previous exchange, receives the same
// from both ring neighbours and folds them into the local reference counts.
package halo

import "halo-ca/pkg/grid"

// Buffers collects outgoing edge deltas. It implements grid.EdgeSink, so a
// halo grid writes into it directly while cells change state.
//
// A revive and a kill of the same row before the next exchange cancel out,
// hence each list holds every row at most once.
type Buffers struct {
	height int
	revive [2][]int32
	kill   [2][]int32
	// position+1 of a row inside revive/kill, 0 when absent
	revivePos [2][]int32
	killPos   [2][]int32
}

// NewBuffers allocates buffers for an edge of the given length.
func NewBuffers(height int) *Buffers {
	b := &Buffers{height: height}
	for _, e := range grid.Edges {
		b.revive[e] = make([]int32, 0, height)
		b.kill[e] = make([]int32, 0, height)
		b.revivePos[e] = make([]int32, height)
		b.killPos[e] = make([]int32, height)
	}
	return b
}

// Height returns the edge length.
func (b *Buffers) Height() int { return b.height }

// Record implements grid.EdgeSink.
func (b *Buffers) Record(e grid.Edge, d grid.Delta, y int) {
	if d == grid.DeltaRevive {
		if !drop(&b.kill[e], b.killPos[e], y) {
			add(&b.revive[e], b.revivePos[e], y)
		}
		return
	}
	if !drop(&b.revive[e], b.revivePos[e], y) {
		add(&b.kill[e], b.killPos[e], y)
	}
}

func add(list *[]int32, pos []int32, y int) {
	if pos[y] != 0 {
		return
	}
	*list = append(*list, int32(y))
	pos[y] = int32(len(*list))
}

// drop swap-removes y from list and reports whether it was present.
func drop(list *[]int32, pos []int32, y int) bool {
	i := pos[y]
	if i == 0 {
		return false
	}
	l := *list
	last := len(l) - 1
	if int(i-1) != last {
		moved := l[last]
		l[i-1] = moved
		pos[moved] = i
	}
	*list = l[:last]
	pos[y] = 0
	return true
}

// Revive returns the rows revived on edge e since the last Clear.
func (b *Buffers) Revive(e grid.Edge) []int32 { return b.revive[e] }

// Kill returns the rows killed on edge e since the last Clear.
func (b *Buffers) Kill(e grid.Edge) []int32 { return b.kill[e] }

// Clear empties every list after a successful send.
func (b *Buffers) Clear() {
	for _, e := range grid.Edges {
		for _, y := range b.revive[e] {
			b.revivePos[e][y] = 0
		}
		for _, y := range b.kill[e] {
			b.killPos[e][y] = 0
		}
		b.revive[e] = b.revive[e][:0]
		b.kill[e] = b.kill[e][:0]
	}
}
