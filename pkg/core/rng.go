package core

import "math/rand/v2"

// RNG wraps math/rand/v2 so every seeding path of the module draws the same
// sequence for the same seed.
type RNG struct {
	r *rand.Rand
}

// NewRNG creates a deterministic RNG using the provided seed.
func NewRNG(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewPCG(uint64(seed), 0))}
}

// Chance returns true with probability p.
func (r *RNG) Chance(p float64) bool {
	return r.r.Float64() < p
}

// FillDensity sets each entry of buf to 1 with probability p, else 0.
func FillDensity(r *rand.Rand, buf []uint8, p float64) {
	for i := range buf {
		buf[i] = 0
		if r.Float64() < p {
			buf[i] = 1
		}
	}
}

// Source exposes the underlying rand.Rand for advanced use.
func (r *RNG) Source() *rand.Rand { return r.r }
