package app

import "flag"

// Config represents the viewer's command-line parameters. Universe settings
// are bound separately by the command.
type Config struct {
	Sim      string
	Scale    int
	TPS      int
	HUDWidth int
	Paused   bool
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{Sim: "halo-life", Scale: 3, TPS: 30, HUDWidth: 220}
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.StringVar(&c.Sim, "sim", c.Sim, "simulation to run")
	fs.IntVar(&c.Scale, "scale", c.Scale, "pixel scale multiplier")
	fs.IntVar(&c.TPS, "tps", c.TPS, "generations per second")
	fs.IntVar(&c.HUDWidth, "hud", c.HUDWidth, "width of the parameter panel, 0 hides it")
	fs.BoolVar(&c.Paused, "paused", c.Paused, "start paused")
}
