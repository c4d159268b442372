//go:build ebiten

package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"halo-ca/internal/app"
	"halo-ca/internal/core"
	_ "halo-ca/pkg/sims/life"
	"halo-ca/pkg/universe"

	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	log.SetPrefix("[ca] ")
	cfg := app.NewConfig()
	cfg.Bind(flag.CommandLine)
	ucfg := universe.DefaultConfig()
	ucfg.Width, ucfg.Height = 200, 150
	ucfg.Bind(flag.CommandLine)
	flag.Parse()

	var sim core.Sim
	switch cfg.Sim {
	case "halo-life":
		if err := ucfg.AdoptPatternRule(flag.CommandLine); err != nil {
			log.Fatalf("universe: %v", err)
		}
		u, err := universe.New(ucfg, universe.WithLogger(log.New(os.Stderr, "[ca] ", log.LstdFlags)))
		if err != nil {
			log.Fatalf("universe: %v", err)
		}
		sim = u
	default:
		factory, ok := core.Sims()[cfg.Sim]
		if !ok {
			log.Fatalf("unknown sim %q, have %s", cfg.Sim, strings.Join(core.Names(), ", "))
		}
		sim = factory(map[string]string{
			"w":       strconv.Itoa(ucfg.Width),
			"h":       strconv.Itoa(ucfg.Height),
			"rule":    ucfg.Rule,
			"density": strconv.FormatFloat(ucfg.Density, 'f', -1, 64),
		})
		sim.Reset(ucfg.Seed)
	}

	game := app.New(sim, cfg.Scale, ucfg.Seed, cfg.HUDWidth, cfg.Paused)
	size := sim.Size()

	ebiten.SetWindowTitle("halo-ca: " + sim.Name())
	ebiten.SetTPS(cfg.TPS)
	ebiten.SetWindowSize(size.W*cfg.Scale+max(cfg.HUDWidth, 0), size.H*cfg.Scale)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
}
