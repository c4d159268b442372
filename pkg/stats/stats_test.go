package stats

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStatsAveragesPerIteration(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := New(4, 2)
	s.now = clock.now

	for i := 0; i < 4; i++ {
		m := s.Start()
		clock.advance(2 * time.Second)
		s.End(m, Communication)
		w := s.Start()
		clock.advance(time.Second)
		s.EndWorker(w, 1)
	}
	s.EndWorker(s.Start(), 9)

	if got := s.Seconds(Communication); got != 2 {
		t.Fatalf("communication average = %f, expected 2", got)
	}
	if got := s.WorkerSeconds(1); got != 1 {
		t.Fatalf("worker 1 average = %f, expected 1", got)
	}
	if got := s.WorkerSeconds(0); got != 0 {
		t.Fatalf("worker 0 average = %f, expected 0", got)
	}
}

func TestWriteReportListsEveryCategory(t *testing.T) {
	s := New(1, 3)
	var buf bytes.Buffer
	if err := s.WriteReport(&buf); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Total", "Communication", "Evaluation", "World update", "Worker2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != int(numCategories)+3 {
		t.Fatalf("report has %d lines, expected %d", lines, int(numCategories)+3)
	}
}

func TestAppendGnuplotAddsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.data")
	s := New(10, 1)
	for i := 0; i < 2; i++ {
		if err := s.AppendGnuplot(path, 10, 256, 42); err != nil {
			t.Fatalf("AppendGnuplot: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rows := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	fields := strings.Split(rows[0], "\t")
	if len(fields) != 3+int(numCategories)+1 {
		t.Fatalf("row has %d fields: %q", len(fields), rows[0])
	}
	if fields[0] != "10" || fields[1] != "256" || fields[2] != "42" {
		t.Fatalf("unexpected leading fields %v", fields[:3])
	}
}
