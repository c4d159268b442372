package core

// ByteGrid is a dense row-major view with one byte per cell, the form the
// renderers consume.
type ByteGrid struct {
	W, H int
	data []uint8
}

// NewByteGrid allocates a zeroed grid. Non-positive sizes become 1.
func NewByteGrid(w, h int) *ByteGrid {
	w, h = max(w, 1), max(h, 1)
	return &ByteGrid{W: w, H: h, data: make([]uint8, w*h)}
}

// Cells exposes the backing slice.
func (g *ByteGrid) Cells() []uint8 { return g.data }

// Index returns the linear slice index for coordinates (x, y).
func (g *ByteGrid) Index(x, y int) int { return y*g.W + x }

// Set stores v at (x, y), which must be in range.
func (g *ByteGrid) Set(x, y int, v uint8) { g.data[g.Index(x, y)] = v }

// At returns the value at (x, y), which must be in range.
func (g *ByteGrid) At(x, y int) uint8 { return g.data[g.Index(x, y)] }

// Wrap maps any coordinates onto the torus.
func (g *ByteGrid) Wrap(x, y int) (int, int) {
	x = (x%g.W + g.W) % g.W
	y = (y%g.H + g.H) % g.H
	return x, y
}

// Clear zeroes every cell.
func (g *ByteGrid) Clear() { clear(g.data) }
