package core

import "time"

// FixedStep paces simulation updates at a steady rate independent of how
// often the caller polls, as the terminal viewer needs.
type FixedStep struct {
	step        time.Duration
	accumulator time.Duration
	last        time.Time
	maxCatchUp  int
}

// NewFixedStep constructs a FixedStep targeting tps generations per second.
// The first poll is always due.
func NewFixedStep(tps int) *FixedStep {
	fs := &FixedStep{maxCatchUp: 4}
	fs.SetTPS(tps)
	fs.accumulator = fs.step
	return fs
}

// SetTPS changes the rate; non-positive values select 60.
func (f *FixedStep) SetTPS(tps int) {
	if tps <= 0 {
		tps = 60
	}
	f.step = time.Second / time.Duration(tps)
}

// TPS returns the current rate.
func (f *FixedStep) TPS() int { return int(time.Second / f.step) }

// Due returns how many updates have accumulated by now. A slow caller is
// allowed to catch up a few steps at most, the rest is dropped.
func (f *FixedStep) Due(now time.Time) int {
	if f.last.IsZero() {
		f.last = now
	}
	f.accumulator += now.Sub(f.last)
	f.last = now
	n := int(f.accumulator / f.step)
	f.accumulator -= time.Duration(n) * f.step
	return min(n, f.maxCatchUp)
}

// ShouldStep reports whether at least one update is due.
func (f *FixedStep) ShouldStep() bool { return f.Due(time.Now()) > 0 }
