package universe

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"halo-ca/pkg/rule"
)

// ErrInvalidConfig is returned before any grid exists when the settings
// cannot describe a universe.
var ErrInvalidConfig = errors.New("universe: invalid config")

// Config holds the universe settings shared by every command.
type Config struct {
	Width       int
	Height      int
	Partitions  int
	Workers     int
	Rule        string
	Generations int
	Seed        int64
	Density     float64

	// Pattern is a library name or a pattern file; empty selects a random
	// fill at Density. PatternX/PatternY place its top-left corner, -1
	// centres it.
	Pattern  string
	PatternX int
	PatternY int

	FramesDir  string
	FrameEvery int
	FramesPBM  bool
	StatsPath  string
	Gnuplot    string
	LogEvery   int
}

// DefaultConfig returns a 256x256 standard Life universe on one partition.
func DefaultConfig() Config {
	return Config{
		Width:       256,
		Height:      256,
		Partitions:  1,
		Workers:     4,
		Rule:        "B3/S23",
		Generations: 100,
		Seed:        42,
		Density:     0.3,
		PatternX:    -1,
		PatternY:    -1,
	}
}

// FromMap overrides defaults with string values, ignoring anything that
// does not parse.
func FromMap(m map[string]string) Config {
	c := DefaultConfig()
	ints := map[string]*int{
		"w":           &c.Width,
		"h":           &c.Height,
		"partitions":  &c.Partitions,
		"workers":     &c.Workers,
		"generations": &c.Generations,
		"px":          &c.PatternX,
		"py":          &c.PatternY,
		"frame-every": &c.FrameEvery,
		"log-every":   &c.LogEvery,
	}
	for key, dst := range ints {
		if v, err := strconv.Atoi(m[key]); err == nil {
			*dst = v
		}
	}
	if v, err := strconv.ParseInt(m["seed"], 10, 64); err == nil {
		c.Seed = v
	}
	if v, err := strconv.ParseFloat(m["density"], 64); err == nil && v >= 0 && v <= 1 {
		c.Density = v
	}
	if v, err := strconv.ParseBool(m["pbm"]); err == nil {
		c.FramesPBM = v
	}
	if _, err := rule.Parse(m["rule"]); err == nil {
		c.Rule = m["rule"]
	}
	if v, ok := m["pattern"]; ok {
		c.Pattern = v
	}
	if v, ok := m["frames"]; ok {
		c.FramesDir = v
	}
	if v, ok := m["stats"]; ok {
		c.StatsPath = v
	}
	if v, ok := m["gnuplot"]; ok {
		c.Gnuplot = v
	}
	return c
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.IntVar(&c.Width, "w", c.Width, "universe width (partition axis)")
	fs.IntVar(&c.Height, "h", c.Height, "universe height")
	fs.IntVar(&c.Partitions, "partitions", c.Partitions, "number of strip partitions")
	fs.IntVar(&c.Workers, "workers", c.Workers, "evaluation workers per partition")
	fs.StringVar(&c.Rule, "rule", c.Rule, "rule in B/S notation or by name")
	fs.IntVar(&c.Generations, "generations", c.Generations, "generations to run")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "seed for the random fill")
	fs.Float64Var(&c.Density, "density", c.Density, "alive probability of the random fill")
	fs.StringVar(&c.Pattern, "pattern", c.Pattern, "pattern name or .rle/.txt file instead of a random fill")
	fs.IntVar(&c.PatternX, "px", c.PatternX, "pattern x offset (-1 centres)")
	fs.IntVar(&c.PatternY, "py", c.PatternY, "pattern y offset (-1 centres)")
	fs.StringVar(&c.FramesDir, "frames", c.FramesDir, "directory for per-partition frames (emptied first)")
	fs.IntVar(&c.FrameEvery, "frame-every", c.FrameEvery, "write a frame every n generations, 0 for the final one only")
	fs.BoolVar(&c.FramesPBM, "pbm", c.FramesPBM, "write frames as PBM images")
	fs.StringVar(&c.StatsPath, "stats", c.StatsPath, "file for the timing report")
	fs.StringVar(&c.Gnuplot, "gnuplot", c.Gnuplot, "append a timing row to this gnuplot data file")
	fs.IntVar(&c.LogEvery, "log-every", c.LogEvery, "log progress every n generations")
}

// Validate rejects settings that cannot describe a universe.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.Partitions <= 0:
		return fmt.Errorf("%w: %d partitions", ErrInvalidConfig, c.Partitions)
	case c.Width < c.Partitions:
		return fmt.Errorf("%w: width %d leaves empty partitions among %d", ErrInvalidConfig, c.Width, c.Partitions)
	case c.Workers <= 0:
		return fmt.Errorf("%w: %d workers", ErrInvalidConfig, c.Workers)
	case c.Generations < 0 || c.FrameEvery < 0:
		return fmt.Errorf("%w: negative generation count", ErrInvalidConfig)
	case c.Density < 0 || c.Density > 1:
		return fmt.Errorf("%w: density %v", ErrInvalidConfig, c.Density)
	}
	if _, err := rule.Parse(c.Rule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
