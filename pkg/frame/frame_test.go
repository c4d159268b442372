package frame

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"halo-ca/pkg/grid"
)

func seeded(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New(grid.Config{Width: 7, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]int{{0, 0}, {6, 0}, {3, 2}, {4, 2}, {6, 3}} {
		g.Revive(p[0], p[1])
	}
	return g
}

func TestEncodeText(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, seeded(t)); err != nil {
		t.Fatal(err)
	}
	want := "o.....o\n.......\n...oo..\n......o\n"
	if buf.String() != want {
		t.Fatalf("frame:\n%s\nexpected:\n%s", buf.String(), want)
	}
}

func TestTextRoundTripReseedsGrid(t *testing.T) {
	src := seeded(t)
	var buf bytes.Buffer
	if err := Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	bm, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if bm.Width() != 7 || bm.Height() != 4 {
		t.Fatalf("decoded %dx%d, expected 7x4", bm.Width(), bm.Height())
	}

	dst, _ := grid.New(grid.Config{Width: 7, Height: 4})
	bm.Each(func(x, y int) { dst.Revive(x, y) })
	for y := 0; y < 4; y++ {
		for x := 0; x < 7; x++ {
			if dst.Alive(x, y) != src.Alive(x, y) {
				t.Fatalf("cell (%d,%d) alive=%v, expected %v", x, y, dst.Alive(x, y), src.Alive(x, y))
			}
		}
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	for _, in := range []string{
		"",
		"o.o",
		"o.o\no.\n",
		"o.x\n",
		"\n",
	} {
		if _, err := Decode(strings.NewReader(in)); !errors.Is(err, ErrFormat) {
			t.Errorf("Decode(%q) = %v, expected ErrFormat", in, err)
		}
	}
}

func TestPBMRoundTrip(t *testing.T) {
	src := seeded(t)
	var buf bytes.Buffer
	if err := EncodePBM(&buf, src); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "P4\n7 4\n") {
		t.Fatalf("unexpected header %q", buf.String()[:8])
	}
	if buf.Len() != len("P4\n7 4\n")+4 {
		t.Fatalf("image is %d bytes, expected one byte per row", buf.Len())
	}
	bm, err := DecodePBM(&buf)
	if err != nil {
		t.Fatalf("DecodePBM: %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 7; x++ {
			if bm.Alive(x, y) != src.Alive(x, y) {
				t.Fatalf("cell (%d,%d) alive=%v, expected %v", x, y, bm.Alive(x, y), src.Alive(x, y))
			}
		}
	}

	withComment := "P4\n# made by hand\n2 1\n\x80"
	bm, err = DecodePBM(strings.NewReader(withComment))
	if err != nil || !bm.Alive(0, 0) || bm.Alive(1, 0) {
		t.Fatalf("DecodePBM with comment = %v, %v", bm, err)
	}
	if _, err := DecodePBM(strings.NewReader("P1\n1 1\n1")); !errors.Is(err, ErrFormat) {
		t.Fatalf("plain PBM accepted: %v", err)
	}
}

func TestDirWritesPerRankFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "frames")
	d := Dir{Path: root}
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "stale.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := d.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "stale.txt")); !os.IsNotExist(err) {
		t.Fatal("Prepare kept a stale file")
	}

	if err := d.WriteFrame(12, 3, seeded(t)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "gen-12.node-3.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "o.....o\n") {
		t.Fatalf("unexpected frame content %q", data)
	}

	d.PBM = true
	if d.Name(1, 0) != "gen-1.node-0.pbm" {
		t.Fatalf("unexpected pbm name %s", d.Name(1, 0))
	}

	bad := Dir{Path: filepath.Join(root, "missing")}
	if err := bad.WriteFrame(0, 0, seeded(t)); err == nil {
		t.Fatal("expected an error writing into a missing directory")
	}
}
