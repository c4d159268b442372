// Command life-node runs one strip partition of a universe per process.
// Start one process per rank with the same universe flags; rank r listens
// on -listen and dials rank r+1 at -high, the last rank dialling rank 0.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"time"

	"halo-ca/pkg/frame"
	"halo-ca/pkg/grid"
	"halo-ca/pkg/halo"
	"halo-ca/pkg/node"
	"halo-ca/pkg/rule"
	"halo-ca/pkg/stats"
	"halo-ca/pkg/universe"
)

func main() {
	cfg := universe.DefaultConfig()
	cfg.Bind(flag.CommandLine)
	rank := flag.Int("rank", 0, "rank of this process in the ring")
	listen := flag.String("listen", "127.0.0.1:7000", "address the low neighbour connects to")
	high := flag.String("high", "127.0.0.1:7001", "listen address of the high neighbour")
	connectTimeout := flag.Duration("connect-timeout", 30*time.Second, "how long to wait for the ring to form")
	flag.Parse()

	logger := log.New(os.Stderr, fmt.Sprintf("[node %d] ", *rank), log.LstdFlags)
	if err := cfg.AdoptPatternRule(flag.CommandLine); err != nil {
		logger.Fatalf("setup: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("setup: %v", err)
	}
	strips, err := universe.Layout(cfg.Width, cfg.Partitions)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	if *rank < 0 || *rank >= len(strips) {
		logger.Fatalf("setup: rank %d outside ring of %d", *rank, len(strips))
	}
	strip := strips[*rank]
	r, _ := rule.Parse(cfg.Rule)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var t halo.Transport
	if cfg.Partitions > 1 {
		ln, err := net.Listen("tcp", *listen)
		if err != nil {
			logger.Fatalf("listen: %v", err)
		}
		cctx, cancel := context.WithTimeout(ctx, *connectTimeout)
		tcp, err := halo.Connect(cctx, halo.TCPConfig{Rank: *rank, Ranks: cfg.Partitions, Listener: ln, High: *high})
		cancel()
		if err != nil {
			logger.Fatalf("connect: %v", err)
		}
		logger.Printf("ring of %d connected", cfg.Partitions)
		t = tcp
	}

	rec := stats.New(cfg.Generations, cfg.Workers)
	opts := []node.Option{
		node.WithLogger(logger),
		node.WithLogEvery(cfg.LogEvery),
		node.WithRecorder(rec),
	}
	if cfg.FramesDir != "" {
		// every rank shares the directory, so none of them empties it
		if err := os.MkdirAll(cfg.FramesDir, 0o775); err != nil {
			logger.Fatalf("frames: %v", err)
		}
		dir := frame.Dir{Path: cfg.FramesDir, PBM: cfg.FramesPBM}
		opts = append(opts, node.WithSnapshot(func(gen uint64, rank int, g *grid.Grid) error {
			return dir.WriteFrame(gen, rank, g)
		}, cfg.FrameEvery))
	}
	n, err := node.New(node.Config{
		Rank:    strip.Rank,
		Ranks:   cfg.Partitions,
		Width:   strip.Width,
		Height:  cfg.Height,
		Offset:  strip.Offset,
		Workers: cfg.Workers,
		Rule:    r,
	}, t, opts...)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer n.Close()

	err = cfg.EachSeed(func(x, y int) {
		if _, err := n.SeedGlobal(x, y, true); err != nil {
			logger.Fatalf("seed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("seed: %v", err)
	}
	logger.Printf("columns %d..%d, population %d", strip.Offset, strip.Offset+strip.Width-1, n.Grid().Population())

	start := time.Now()
	if err := n.RunGenerations(ctx, cfg.Generations); err != nil {
		logger.Fatalf("run: %v", err)
	}
	logger.Printf("generation %d: population %d, active %d, elapsed %s",
		n.Generation(), n.Grid().Population(), n.Grid().Len(), time.Since(start).Round(time.Millisecond))

	if cfg.StatsPath != "" {
		if err := rec.SaveReport(fmt.Sprintf("%s.node-%d", cfg.StatsPath, *rank)); err != nil {
			logger.Fatalf("stats: %v", err)
		}
	}
	if cfg.Gnuplot != "" {
		if err := rec.AppendGnuplot(cfg.Gnuplot, cfg.Generations, cfg.Width*cfg.Height, n.Grid().Len()); err != nil {
			logger.Fatalf("gnuplot: %v", err)
		}
	}
}
