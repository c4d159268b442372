// Command life-term shows a partitioned universe in the terminal. Each
// strip is tinted in its own colour.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"halo-ca/internal/core"
	"halo-ca/pkg/universe"
)

var stripColors = []tcell.Color{tcell.ColorGreen, tcell.ColorTeal, tcell.ColorOlive, tcell.ColorPurple}

type viewer struct {
	u      *universe.Universe
	screen tcell.Screen
	pace   *core.FixedStep
	owner  []int
	paused bool
	seed   int64
}

func newViewer(u *universe.Universe, screen tcell.Screen, tps int, seed int64) *viewer {
	v := &viewer{u: u, screen: screen, pace: core.NewFixedStep(tps), seed: seed}
	v.owner = make([]int, u.Width())
	for _, s := range u.Strips() {
		for x := s.Offset; x < s.Offset+s.Width; x++ {
			v.owner[x] = s.Rank
		}
	}
	return v
}

// draw paints as much of the universe as fits, two terminal columns per
// cell, with a status line at the bottom.
func (v *viewer) draw() {
	v.screen.Clear()
	sw, sh := v.screen.Size()
	cols := min(v.u.Width(), sw/2)
	rows := min(v.u.Height(), sh-1)
	cells := v.u.Cells()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			style := tcell.StyleDefault.Background(tcell.ColorBlack)
			if cells[y*v.u.Width()+x] != 0 {
				style = style.Background(stripColors[v.owner[x]%len(stripColors)])
			}
			v.screen.SetContent(x*2, y, ' ', nil, style)
			v.screen.SetContent(x*2+1, y, ' ', nil, style)
		}
	}
	state := "running"
	switch {
	case v.u.Err() != nil:
		state = "stopped: " + v.u.Err().Error()
	case v.paused:
		state = "paused"
	}
	status := fmt.Sprintf("gen %d  pop %d  active %d  %s  %d strips x %d workers  %d tps  %s",
		v.u.Generation(), v.u.Population(), v.u.Active(), v.u.Rule(), len(v.u.Strips()), v.u.Workers(), v.pace.TPS(), state)
	for i, r := range status {
		if i >= sw {
			break
		}
		v.screen.SetContent(i, sh-1, r, nil, tcell.StyleDefault.Foreground(tcell.ColorWhite))
	}
	v.screen.Show()
}

// handle applies one key press and reports whether the viewer should quit.
func (v *viewer) handle(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		return true
	}
	switch ev.Rune() {
	case 'q':
		return true
	case ' ':
		v.paused = !v.paused
	case 'n':
		v.u.Step()
	case 'r':
		v.u.Reset(v.seed)
	case 's':
		v.seed = time.Now().UnixNano()
		v.u.Reset(v.seed)
	case '+':
		v.pace.SetTPS(v.pace.TPS() * 2)
	case '-':
		v.pace.SetTPS(max(v.pace.TPS()/2, 1))
	case 'w':
		v.u.SetIntParameter("workers", v.u.Workers()-1)
	case 'W':
		v.u.SetIntParameter("workers", v.u.Workers()+1)
	}
	return false
}

func (v *viewer) tick(now time.Time) {
	due := v.pace.Due(now)
	if v.paused {
		return
	}
	for i := 0; i < due && v.u.Err() == nil; i++ {
		v.u.Step()
	}
}

func main() {
	cfg := universe.DefaultConfig()
	cfg.Width, cfg.Height = 80, 40
	cfg.Bind(flag.CommandLine)
	tps := flag.Int("tps", 10, "generations per second")
	flag.Parse()

	logger := log.New(os.Stderr, "[life-term] ", log.LstdFlags)
	if err := cfg.AdoptPatternRule(flag.CommandLine); err != nil {
		logger.Fatalf("setup: %v", err)
	}
	// no universe logger: the screen owns the terminal
	u, err := universe.New(cfg)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		logger.Fatalf("creating screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		logger.Fatalf("initializing screen: %v", err)
	}
	defer screen.Fini()

	v := newViewer(u, screen, *tps, cfg.Seed)
	events := make(chan tcell.Event)
	quit := make(chan struct{})
	go screen.ChannelEvents(events, quit)

	frame := time.NewTicker(time.Second / 60)
	defer frame.Stop()
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if v.handle(ev) {
					close(quit)
					return
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case now := <-frame.C:
			v.tick(now)
			v.draw()
		}
	}
}
