// Package life is a dense toroidal Life that recounts every neighbourhood
// each generation. It serves as the reference the sparse engine is checked
// against.
package life

import (
	"strconv"

	"halo-ca/internal/core"
	pcore "halo-ca/pkg/core"
	"halo-ca/pkg/rule"
)

// Config holds the dense simulation settings.
type Config struct {
	Width   int
	Height  int
	Rule    rule.Rule
	Density float64
}

// DefaultConfig returns a 128x128 standard Life board at density 0.3.
func DefaultConfig() Config {
	return Config{Width: 128, Height: 128, Rule: rule.Life, Density: 0.3}
}

// FromMap overrides defaults with the recognised keys w, h, rule and
// density. Invalid values are ignored.
func FromMap(m map[string]string) Config {
	c := DefaultConfig()
	if v, err := strconv.Atoi(m["w"]); err == nil && v > 0 {
		c.Width = v
	}
	if v, err := strconv.Atoi(m["h"]); err == nil && v > 0 {
		c.Height = v
	}
	if r, err := rule.Parse(m["rule"]); err == nil {
		c.Rule = r
	}
	if v, err := strconv.ParseFloat(m["density"], 64); err == nil && v >= 0 && v <= 1 {
		c.Density = v
	}
	return c
}

// Life is a dense board of 0/1 cells.
type Life struct {
	w, h    int
	rule    rule.Rule
	density float64
	cur     []uint8
	nxt     []uint8
}

// New returns an empty standard Life board.
func New(w, h int) *Life {
	return NewWithConfig(Config{Width: w, Height: h, Rule: rule.Life, Density: 0.3})
}

// NewWithConfig returns an empty board for cfg.
func NewWithConfig(cfg Config) *Life {
	cells := make([]uint8, cfg.Width*cfg.Height)
	return &Life{
		w:       cfg.Width,
		h:       cfg.Height,
		rule:    cfg.Rule,
		density: cfg.Density,
		cur:     cells,
		nxt:     make([]uint8, len(cells)),
	}
}

// Name returns the simulation identifier.
func (l *Life) Name() string { return "life-dense" }

// Size returns the grid dimensions.
func (l *Life) Size() core.Size { return core.Size{W: l.w, H: l.h} }

// Cells exposes the current grid values.
func (l *Life) Cells() []uint8 { return l.cur }

// Reset randomizes the board using the provided seed.
func (l *Life) Reset(seed int64) {
	pcore.FillDensity(pcore.NewRNG(seed).Source(), l.cur, l.density)
}

// Set changes one cell, wrapping the coordinates.
func (l *Life) Set(x, y int, alive bool) {
	x, y = (x%l.w+l.w)%l.w, (y%l.h+l.h)%l.h
	l.cur[y*l.w+x] = 0
	if alive {
		l.cur[y*l.w+x] = 1
	}
}

// Alive reports the state of the cell at (x, y).
func (l *Life) Alive(x, y int) bool { return l.cur[y*l.w+x] == 1 }

// Step advances the simulation by one generation.
func (l *Life) Step() {
	w, h := l.w, l.h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			neighbors := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx := (x + dx + w) % w
					ny := (y + dy + h) % h
					neighbors += int(l.cur[ny*w+nx])
				}
			}
			idx := y*w + x
			mask := l.rule.Birth
			if l.cur[idx] == 1 {
				mask = l.rule.Survive
			}
			l.nxt[idx] = 0
			if rule.Satisfies(mask, neighbors) {
				l.nxt[idx] = 1
			}
		}
	}
	l.cur, l.nxt = l.nxt, l.cur
}

func init() {
	core.Register("life-dense", func(cfg map[string]string) core.Sim {
		return NewWithConfig(FromMap(cfg))
	})
}
