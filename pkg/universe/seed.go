package universe

import (
	"flag"
	"fmt"

	pcore "halo-ca/pkg/core"
	"halo-ca/pkg/pattern"
	"halo-ca/pkg/rule"
)

// PatternRule returns the rule named in the RLE header of the configured
// pattern, in B/S notation, or "" when the pattern names none.
func (c Config) PatternRule() (string, error) {
	if c.Pattern == "" {
		return "", nil
	}
	p, err := pattern.Load(c.Pattern)
	if err != nil || p.Rule == "" {
		return "", err
	}
	r, err := rule.Parse(p.Rule)
	if err != nil {
		return "", fmt.Errorf("%w: pattern %s: %v", ErrInvalidConfig, c.Pattern, err)
	}
	return r.String(), nil
}

// AdoptPatternRule switches to the pattern's own rule unless -rule was set
// explicitly on fs. Call it after fs has been parsed.
func (c *Config) AdoptPatternRule(fs *flag.FlagSet) error {
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "rule" {
			explicit = true
		}
	})
	if explicit {
		return nil
	}
	r, err := c.PatternRule()
	if err != nil {
		return err
	}
	if r != "" {
		c.Rule = r
	}
	return nil
}

// EachSeed calls fn for every initially alive cell in universe coordinates:
// the placed pattern if one is configured, else a random fill at Density
// drawn in row-major order from Seed. Every process of a ring calls it with
// the same settings and keeps the cells it owns, so the fill does not
// depend on the partitioning.
func (c Config) EachSeed(fn func(x, y int)) error {
	if c.Pattern == "" {
		rng := pcore.NewRNG(c.Seed)
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				if rng.Chance(c.Density) {
					fn(x, y)
				}
			}
		}
		return nil
	}
	p, err := pattern.Load(c.Pattern)
	if err != nil {
		return err
	}
	x, y := c.PatternX, c.PatternY
	if x < 0 {
		x = (c.Width - p.W) / 2
	}
	if y < 0 {
		y = (c.Height - p.H) / 2
	}
	p.Place(x, y, func(x, y int) {
		fn((x%c.Width+c.Width)%c.Width, (y%c.Height+c.Height)%c.Height)
	})
	return nil
}
