package core

import (
	"slices"
	"testing"
	"time"
)

func TestFixedStepCatchesUpBoundedly(t *testing.T) {
	fs := NewFixedStep(10)
	start := time.Unix(100, 0)
	if got := fs.Due(start); got != 1 {
		t.Fatalf("first poll due %d, expected 1", got)
	}
	if got := fs.Due(start.Add(50 * time.Millisecond)); got != 0 {
		t.Fatalf("half a step due %d", got)
	}
	if got := fs.Due(start.Add(250 * time.Millisecond)); got != 2 {
		t.Fatalf("due %d after 250ms, expected 2", got)
	}
	if got := fs.Due(start.Add(10 * time.Second)); got != 4 {
		t.Fatalf("long stall due %d, expected the catch-up cap", got)
	}
	fs.SetTPS(0)
	if fs.TPS() != 60 {
		t.Fatalf("tps = %d", fs.TPS())
	}
}

func TestByteGridWrap(t *testing.T) {
	g := NewByteGrid(4, 3)
	x, y := g.Wrap(-1, 5)
	if x != 3 || y != 2 {
		t.Fatalf("Wrap(-1, 5) = (%d, %d)", x, y)
	}
	g.Set(x, y, 1)
	if g.At(3, 2) != 1 || g.Cells()[g.Index(3, 2)] != 1 {
		t.Fatal("set value not visible")
	}
	g.Clear()
	if slices.Contains(g.Cells(), 1) {
		t.Fatal("clear left values behind")
	}
}

func TestSnapshotLookup(t *testing.T) {
	s := ParameterSnapshot{Groups: []ParameterGroup{
		{Name: "a", Params: []Parameter{{Key: "x", Value: "1"}}},
		{Name: "b", Params: []Parameter{{Key: "y", Value: "2"}}},
	}}
	if p, ok := s.Lookup("y"); !ok || p.Value != "2" {
		t.Fatalf("Lookup(y) = %+v, %v", p, ok)
	}
	if _, ok := s.Lookup("z"); ok {
		t.Fatal("unknown key found")
	}
}
