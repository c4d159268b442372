// Package frame encodes grid snapshots.
//
// The text format has one character per cell, 'o' for alive and '.' for
// dead, one newline-terminated line per row, rows ordered by y. The binary
// format is raw PBM (P4) with alive cells as black pixels.
package frame

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	AliveChar = 'o'
	DeadChar  = '.'
)

// ErrFormat is returned for input that is not a valid frame.
var ErrFormat = errors.New("frame: invalid format")

// Source is anything that can be rendered as a frame.
type Source interface {
	Width() int
	Height() int
	Alive(x, y int) bool
}

// Bitmap is a decoded frame.
type Bitmap struct {
	w, h  int
	cells []bool
}

// NewBitmap returns an all-dead bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{w: w, h: h, cells: make([]bool, w*h)}
}

func (b *Bitmap) Width() int  { return b.w }
func (b *Bitmap) Height() int { return b.h }

func (b *Bitmap) Alive(x, y int) bool { return b.cells[y*b.w+x] }

func (b *Bitmap) Set(x, y int, alive bool) { b.cells[y*b.w+x] = alive }

// Each calls fn for every alive cell in row-major order.
func (b *Bitmap) Each(fn func(x, y int)) {
	for i, alive := range b.cells {
		if alive {
			fn(i%b.w, i/b.w)
		}
	}
}

// Encode writes s in the text format.
func Encode(w io.Writer, s Source) error {
	bw := bufio.NewWriter(w)
	for y := 0; y < s.Height(); y++ {
		for x := 0; x < s.Width(); x++ {
			c := byte(DeadChar)
			if s.Alive(x, y) {
				c = AliveChar
			}
			bw.WriteByte(c)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Decode parses the text format. All rows must have the same length and
// end with a newline.
func Decode(r io.Reader) (*Bitmap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrFormat)
	}
	if data[len(data)-1] != '\n' {
		return nil, fmt.Errorf("%w: missing trailing newline", ErrFormat)
	}
	rows := bytes.Split(data[:len(data)-1], []byte{'\n'})
	w := len(rows[0])
	if w == 0 {
		return nil, fmt.Errorf("%w: empty row", ErrFormat)
	}
	b := NewBitmap(w, len(rows))
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("%w: row %d has %d cells, expected %d", ErrFormat, y, len(row), w)
		}
		for x, c := range row {
			switch c {
			case AliveChar:
				b.Set(x, y, true)
			case DeadChar:
			default:
				return nil, fmt.Errorf("%w: unexpected %q at (%d,%d)", ErrFormat, c, x, y)
			}
		}
	}
	return b, nil
}

// EncodePBM writes s as a raw PBM image.
func EncodePBM(w io.Writer, s Source) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P4\n%d %d\n", s.Width(), s.Height())
	row := make([]byte, (s.Width()+7)/8)
	for y := 0; y < s.Height(); y++ {
		clear(row)
		for x := 0; x < s.Width(); x++ {
			if s.Alive(x, y) {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
		bw.Write(row)
	}
	return bw.Flush()
}

// DecodePBM parses a raw PBM image. Comments in the header are skipped.
func DecodePBM(r io.Reader) (*Bitmap, error) {
	br := bufio.NewReader(r)
	magic, err := pbmToken(br)
	if err != nil {
		return nil, err
	}
	if magic != "P4" {
		return nil, fmt.Errorf("%w: magic %q", ErrFormat, magic)
	}
	var dims [2]int
	for i := range dims {
		tok, err := pbmToken(br)
		if err != nil {
			return nil, err
		}
		v, err := strconv.Atoi(tok)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: dimension %q", ErrFormat, tok)
		}
		dims[i] = v
	}
	b := NewBitmap(dims[0], dims[1])
	row := make([]byte, (b.w+7)/8)
	for y := 0; y < b.h; y++ {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrFormat, y, err)
		}
		for x := 0; x < b.w; x++ {
			b.Set(x, y, row[x/8]&(0x80>>(x%8)) != 0)
		}
	}
	return b, nil
}

// pbmToken reads one whitespace separated header token and the single
// whitespace byte that ends it.
func pbmToken(br *bufio.Reader) (string, error) {
	var tok []byte
	for {
		c, err := br.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: header: %v", ErrFormat, err)
		}
		switch {
		case c == '#' && len(tok) == 0:
			if _, err := br.ReadString('\n'); err != nil {
				return "", fmt.Errorf("%w: header: %v", ErrFormat, err)
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, c)
		}
	}
}
