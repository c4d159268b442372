// Command life runs a partitioned universe in one process and reports how
// long each phase took on every partition.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"halo-ca/pkg/universe"
)

func main() {
	cfg := universe.DefaultConfig()
	cfg.Bind(flag.CommandLine)
	printFinal := flag.Bool("print", false, "write the final universe to stdout")
	dump := flag.Bool("dump", false, "write every tracked cell and its reference count to stderr at the end")
	cpuProfile := flag.String("cpuprofile", "", "write a CPU profile of the run to this file")
	flag.Parse()

	logger := log.New(os.Stderr, "[life] ", log.LstdFlags)
	if err := cfg.AdoptPatternRule(flag.CommandLine); err != nil {
		logger.Fatalf("setup: %v", err)
	}
	u, err := universe.New(cfg, universe.WithLogger(logger))
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	logger.Printf("%dx%d %s, %d partitions x %d workers, population %d",
		cfg.Width, cfg.Height, u.Rule(), cfg.Partitions, cfg.Workers, u.Population())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logger.Fatalf("cpuprofile: %v", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Fatalf("cpuprofile: %v", err)
		}
	}
	start := time.Now()
	err = u.RunTimed(ctx, cfg.Generations)
	pprof.StopCPUProfile()
	if err != nil {
		logger.Fatalf("run: %v", err)
	}
	logger.Printf("generation %d: population %d, active %d, elapsed %s",
		u.Generation(), u.Population(), u.Active(), time.Since(start).Round(time.Millisecond))

	if cfg.StatsPath != "" {
		f, err := os.Create(cfg.StatsPath)
		if err != nil {
			logger.Fatalf("stats: %v", err)
		}
		if err := u.WriteReport(f); err != nil {
			logger.Fatalf("stats: %v", err)
		}
		if err := f.Close(); err != nil {
			logger.Fatalf("stats: %v", err)
		}
	}
	if cfg.Gnuplot != "" {
		for r, st := range u.Stats() {
			cells := u.Nodes()[r].Grid().Len()
			if err := st.AppendGnuplot(cfg.Gnuplot, cfg.Generations, cfg.Width*cfg.Height, cells); err != nil {
				logger.Fatalf("gnuplot: %v", err)
			}
		}
	}
	if *dump {
		if err := u.Dump(os.Stderr); err != nil {
			logger.Fatalf("dump: %v", err)
		}
	}
	if *printFinal {
		if err := u.Frame(os.Stdout); err != nil {
			logger.Fatalf("print: %v", err)
		}
	}
}
