// Command life-sweep runs the same universe over a grid of partition and
// worker counts, checks every run against a dense reference board and
// prints the timings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"halo-ca/pkg/sims/life"
	"halo-ca/pkg/stats"
	"halo-ca/pkg/universe"
)

type scenario struct {
	partitions int
	workers    int
}

func (s scenario) String() string {
	return fmt.Sprintf("partitions=%d workers=%d", s.partitions, s.workers)
}

type scenarioResult struct {
	scenario
	elapsed    time.Duration
	population int
	matches    bool
	evaluation float64
	exchange   float64
	err        error
}

func main() {
	cfg := universe.DefaultConfig()
	cfg.Bind(flag.CommandLine)
	partsFlag := flag.String("parts", "1,2,4,8", "comma separated partition counts")
	workersFlag := flag.String("worker-counts", "1,2,4", "comma separated worker counts")
	jobs := flag.Int("jobs", runtime.NumCPU(), "scenarios run concurrently")
	flag.Parse()

	logger := log.New(os.Stderr, "[sweep] ", log.LstdFlags)
	if err := cfg.AdoptPatternRule(flag.CommandLine); err != nil {
		logger.Fatalf("setup: %v", err)
	}
	parts, err := parseInts(*partsFlag)
	if err != nil {
		logger.Fatalf("-parts: %v", err)
	}
	workers, err := parseInts(*workersFlag)
	if err != nil {
		logger.Fatalf("-worker-counts: %v", err)
	}

	want, err := reference(cfg)
	if err != nil {
		logger.Fatalf("reference: %v", err)
	}

	var sets []scenario
	for _, p := range parts {
		for _, w := range workers {
			sets = append(sets, scenario{partitions: p, workers: w})
		}
	}
	fmt.Printf("Sweeping %d scenarios (%d jobs, %d generations on %dx%d)\n",
		len(sets), *jobs, cfg.Generations, cfg.Width, cfg.Height)

	queue := make(chan scenario)
	results := make(chan scenarioResult)
	var wg sync.WaitGroup
	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range queue {
				results <- runScenario(cfg, s, want)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	go func() {
		for _, s := range sets {
			queue <- s
		}
		close(queue)
	}()

	var all []scenarioResult
	failed := false
	for res := range results {
		all = append(all, res)
		switch {
		case res.err != nil:
			failed = true
			logger.Printf("%s: %v", res.scenario, res.err)
		case !res.matches:
			failed = true
			logger.Printf("%s: final state differs from the reference", res.scenario)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].elapsed < all[j].elapsed })
	fmt.Printf("\n%-28s %10s %12s %12s %10s %6s\n", "scenario", "elapsed", "eval/gen", "exch/gen", "population", "ok")
	for _, res := range all {
		fmt.Printf("%-28s %10s %12.3e %12.3e %10d %6v\n",
			res.scenario, res.elapsed.Round(time.Microsecond), res.evaluation, res.exchange, res.population, res.err == nil && res.matches)
	}
	if failed {
		os.Exit(1)
	}
}

// reference runs the dense board from the same initial cells.
func reference(cfg universe.Config) ([]uint8, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	board := life.NewWithConfig(life.FromMap(map[string]string{
		"w":    strconv.Itoa(cfg.Width),
		"h":    strconv.Itoa(cfg.Height),
		"rule": cfg.Rule,
	}))
	if err := cfg.EachSeed(func(x, y int) { board.Set(x, y, true) }); err != nil {
		return nil, err
	}
	for i := 0; i < cfg.Generations; i++ {
		board.Step()
	}
	return board.Cells(), nil
}

func runScenario(base universe.Config, s scenario, want []uint8) scenarioResult {
	res := scenarioResult{scenario: s}
	cfg := base
	cfg.Partitions = s.partitions
	cfg.Workers = s.workers
	cfg.FramesDir = ""
	u, err := universe.New(cfg)
	if err != nil {
		res.err = err
		return res
	}
	start := time.Now()
	if err := u.RunTimed(context.Background(), cfg.Generations); err != nil {
		res.err = err
		return res
	}
	res.elapsed = time.Since(start)
	res.population = u.Population()
	res.matches = slices.Equal(u.Cells(), want)
	// the slowest partition bounds every generation
	for _, st := range u.Stats() {
		res.evaluation = max(res.evaluation, st.Seconds(stats.Evaluation))
		res.exchange = max(res.exchange, st.Seconds(stats.Communication))
	}
	return res
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, fmt.Errorf("%d is not positive", v)
		}
		out = append(out, v)
	}
	return out, nil
}
