package grid

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"
)

type recordedDelta struct {
	edge  Edge
	delta Delta
	y     int
}

type sliceSink struct {
	deltas []recordedDelta
}

func (s *sliceSink) Record(e Edge, d Delta, y int) {
	s.deltas = append(s.deltas, recordedDelta{e, d, y})
}

func mustGrid(t *testing.T, cfg Config) *Grid {
	t.Helper()
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%+v): %v", cfg, err)
	}
	return g
}

// checkToroidal recomputes every neighbour count from the alive cells and
// compares it with the incrementally maintained state.
func checkToroidal(t *testing.T, g *Grid) {
	t.Helper()
	w, h := g.Width(), g.Height()
	alive := make([]bool, w*h)
	for _, c := range g.cells {
		if c.Alive {
			alive[int(c.Y)*w+int(c.X)] = true
		}
	}
	if len(g.cells) != countSlots(g) {
		t.Fatalf("arena holds %d cells but %d slots are occupied", len(g.cells), countSlots(g))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if alive[wrap(y+dy, h)*w+wrap(x+dx, w)] {
						n++
					}
				}
			}
			c, tracked := g.Cell(x, y)
			want := alive[y*w+x] || n > 0
			if tracked != want {
				t.Fatalf("cell (%d,%d) tracked=%v, expected %v (alive=%v neighbours=%d)", x, y, tracked, want, alive[y*w+x], n)
			}
			if tracked && int(c.Count) != n {
				t.Fatalf("cell (%d,%d) count=%d, expected %d", x, y, c.Count, n)
			}
		}
	}
}

func countSlots(g *Grid) int {
	n := 0
	for i, s := range g.slots {
		if s == 0 {
			continue
		}
		n++
		c := g.cells[s-1]
		if g.index(int(c.X), int(c.Y)) != i {
			return -1
		}
	}
	return n
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(Config{Width: 0, Height: 4}); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := New(Config{Width: 4, Height: 4, Halo: true}); err == nil {
		t.Fatal("expected error for halo grid without sink")
	}
}

func TestSingleCellTracksNeighbourhood(t *testing.T) {
	g := mustGrid(t, Config{Width: 8, Height: 8})
	if !g.Revive(3, 3) {
		t.Fatal("revive of empty position should change state")
	}
	if g.Len() != 9 {
		t.Fatalf("expected 9 tracked cells, got %d", g.Len())
	}
	if g.Population() != 1 {
		t.Fatalf("expected population 1, got %d", g.Population())
	}
	checkToroidal(t, g)

	if !g.Kill(3, 3) {
		t.Fatal("kill of alive cell should change state")
	}
	if g.Len() != 0 {
		t.Fatalf("expected empty active set after kill, got %d cells", g.Len())
	}
}

func TestReviveKillIdempotent(t *testing.T) {
	g := mustGrid(t, Config{Width: 6, Height: 6})
	g.Revive(1, 1)
	g.Revive(2, 1)
	before := append([]Cell(nil), g.cells...)

	if g.Revive(1, 1) {
		t.Fatal("reviving an alive cell must be a no-op")
	}
	if g.Kill(4, 4) {
		t.Fatal("killing an absent cell must be a no-op")
	}
	if g.Kill(1, 2) {
		t.Fatal("killing a dead tracked cell must be a no-op")
	}
	if len(before) != len(g.cells) {
		t.Fatalf("active set changed size: %d -> %d", len(before), len(g.cells))
	}
	for i := range before {
		if before[i] != g.cells[i] {
			t.Fatalf("cell %d changed: %+v -> %+v", i, before[i], g.cells[i])
		}
	}
}

func TestRandomMutationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	g := mustGrid(t, Config{Width: 12, Height: 9})
	for step := 0; step < 2000; step++ {
		x, y := rng.IntN(12), rng.IntN(9)
		if rng.IntN(3) == 0 {
			g.Kill(x, y)
		} else {
			g.Revive(x, y)
		}
		if step%97 == 0 {
			checkToroidal(t, g)
		}
	}
	checkToroidal(t, g)
}

func TestTinyTorusCountsWrappedNeighbours(t *testing.T) {
	g := mustGrid(t, Config{Width: 2, Height: 1})
	g.Revive(0, 0)
	checkToroidal(t, g)
	g.Revive(1, 0)
	checkToroidal(t, g)
	g.Kill(0, 0)
	checkToroidal(t, g)
}

func TestHaloEdgeRecordsDeltas(t *testing.T) {
	sink := &sliceSink{}
	g := mustGrid(t, Config{Width: 4, Height: 5, Halo: true, Sink: sink})

	g.Revive(0, 2)
	g.Revive(2, 2)
	g.Revive(3, 4)
	g.Revive(3, 4)
	g.Kill(0, 2)

	want := []recordedDelta{
		{Low, DeltaRevive, 2},
		{High, DeltaRevive, 4},
		{Low, DeltaKill, 2},
	}
	if len(sink.deltas) != len(want) {
		t.Fatalf("recorded %v, expected %v", sink.deltas, want)
	}
	for i := range want {
		if sink.deltas[i] != want[i] {
			t.Fatalf("delta %d = %+v, expected %+v", i, sink.deltas[i], want[i])
		}
	}

	// Only local neighbours are tracked: columns -1 and 4 belong elsewhere.
	for _, c := range g.cells {
		if c.X < 0 || int(c.X) >= g.Width() {
			t.Fatalf("cell %+v outside the partition", c)
		}
	}
	if c, ok := g.Cell(3, 0); !ok || c.Count != 1 {
		t.Fatalf("wrapped neighbour (3,0) = %+v tracked=%v, expected count 1", c, ok)
	}
}

func TestWidthOneRecordsBothEdges(t *testing.T) {
	sink := &sliceSink{}
	g := mustGrid(t, Config{Width: 1, Height: 3, Halo: true, Sink: sink})
	g.Revive(0, 1)
	if len(sink.deltas) != 2 || sink.deltas[0].edge != Low || sink.deltas[1].edge != High {
		t.Fatalf("expected low and high deltas, got %v", sink.deltas)
	}
}

func TestFoldEdgeMirrorsRemoteCell(t *testing.T) {
	sink := &sliceSink{}
	g := mustGrid(t, Config{Width: 3, Height: 6, Halo: true, Sink: sink})

	g.FoldEdge(Low, DeltaRevive, []int32{0})
	for _, y := range []int{5, 0, 1} {
		c, ok := g.Cell(0, y)
		if !ok || c.Count != 1 || c.Alive {
			t.Fatalf("cell (0,%d) = %+v tracked=%v, expected dead with count 1", y, c, ok)
		}
	}
	if g.Len() != 3 {
		t.Fatalf("expected 3 tracked cells, got %d", g.Len())
	}

	g.FoldEdge(High, DeltaRevive, []int32{3})
	if c, _ := g.Cell(2, 4); c.Count != 1 {
		t.Fatalf("cell (2,4) count=%d, expected 1", c.Count)
	}

	g.FoldEdge(Low, DeltaKill, []int32{0})
	g.FoldEdge(High, DeltaKill, []int32{3})
	if g.Len() != 0 {
		t.Fatalf("expected folded kills to release every cell, %d left", g.Len())
	}
	if len(sink.deltas) != 0 {
		t.Fatalf("folding must not record outgoing deltas, got %v", sink.deltas)
	}
}

func TestOutOfPartitionAccessPanics(t *testing.T) {
	g := mustGrid(t, Config{Width: 3, Height: 3, Halo: true, Sink: &sliceSink{}})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for x outside the partition")
		}
	}()
	g.Revive(3, 0)
}

func TestIterPartitionsActiveSet(t *testing.T) {
	g := mustGrid(t, Config{Width: 10, Height: 10})
	g.Revive(2, 2)
	g.Revive(6, 6)
	g.Revive(6, 7)

	const workers = 4
	seen := map[[2]int]int{}
	for k := 0; k < workers; k++ {
		it := g.Iter(k, workers)
		for it.Next() {
			c := it.Cell()
			seen[[2]int{int(c.X), int(c.Y)}]++
		}
	}
	if len(seen) != g.Len() {
		t.Fatalf("iteration saw %d cells, active set has %d", len(seen), g.Len())
	}
	for p, n := range seen {
		if n != 1 {
			t.Fatalf("cell %v visited %d times", p, n)
		}
	}

	it := g.Iter(0, 1)
	first := 0
	for it.Next() {
		first++
	}
	it.Reset()
	second := 0
	for it.Next() {
		second++
	}
	if first != second || first != g.Len() {
		t.Fatalf("restarted iteration saw %d then %d cells, expected %d", first, second, g.Len())
	}
}

func TestDumpListsTrackedCells(t *testing.T) {
	g := mustGrid(t, Config{Width: 5, Height: 5})
	g.Revive(1, 1)

	var buf bytes.Buffer
	if err := g.Dump(&buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != g.Len() {
		t.Fatalf("dump has %d lines, expected %d", lines, g.Len())
	}
	if !strings.Contains(buf.String(), "alive ref=0") {
		t.Fatalf("dump missing alive cell:\n%s", buf.String())
	}
}
