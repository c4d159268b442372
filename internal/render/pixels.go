// Package render turns byte-per-cell views into RGBA pixels.
package render

import "image/color"

func rgba8(c color.Color) [4]byte {
	r, g, b, a := c.RGBA()
	return [4]byte{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

// FillBinary converts 0/1 cells into RGBA pixels in buf, which must hold
// four bytes per cell.
func FillBinary(buf []byte, cells []uint8, on, off color.Color) {
	onPx, offPx := rgba8(on), rgba8(off)
	for i, c := range cells {
		px := offPx
		if c != 0 {
			px = onPx
		}
		copy(buf[i*4:i*4+4], px[:])
	}
}

// FillPalette converts cell values into RGBA pixels by palette index.
// Values past the end of the palette use its last colour; an empty palette
// clears buf to transparent black.
func FillPalette(buf []byte, cells []uint8, palette []color.RGBA) {
	if len(palette) == 0 {
		clear(buf[:len(cells)*4])
		return
	}
	last := len(palette) - 1
	for i, c := range cells {
		col := palette[min(int(c), last)]
		buf[i*4+0] = col.R
		buf[i*4+1] = col.G
		buf[i*4+2] = col.B
		buf[i*4+3] = col.A
	}
}
