package render

import (
	"image/color"
	"slices"
	"testing"
)

func TestFillBinary(t *testing.T) {
	buf := make([]byte, 8)
	FillBinary(buf, []uint8{1, 0}, color.White, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	want := []byte{255, 255, 255, 255, 1, 2, 3, 255}
	if !slices.Equal(buf, want) {
		t.Fatalf("pixels = %v, expected %v", buf, want)
	}
}

func TestFillPaletteClampsIndex(t *testing.T) {
	buf := make([]byte, 12)
	palette := []color.RGBA{{A: 0}, {R: 9, A: 100}}
	FillPalette(buf, []uint8{0, 1, 7}, palette)
	want := []byte{0, 0, 0, 0, 9, 0, 0, 100, 9, 0, 0, 100}
	if !slices.Equal(buf, want) {
		t.Fatalf("pixels = %v, expected %v", buf, want)
	}
	FillPalette(buf, []uint8{1, 1, 1}, nil)
	if slices.ContainsFunc(buf, func(b byte) bool { return b != 0 }) {
		t.Fatalf("empty palette left %v", buf)
	}
}
