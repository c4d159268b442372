// Package pattern provides seed patterns: a small built-in library plus
// loaders for RLE files and text frames.
package pattern

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"halo-ca/pkg/frame"
	"halo-ca/pkg/grid"
)

var (
	// ErrUnknown is returned for a pattern name that is not in the library.
	ErrUnknown = errors.New("pattern: unknown pattern")
	// ErrSyntax is returned for malformed RLE input.
	ErrSyntax = errors.New("pattern: invalid RLE")
)

// Pattern is a set of alive cells relative to its top-left corner.
type Pattern struct {
	Name  string
	W, H  int
	Cells []grid.Point
	// Rule is the rule named in an RLE header, if any.
	Rule string
}

// Place calls set for every cell translated by (x, y).
func (p Pattern) Place(x, y int, set func(x, y int)) {
	for _, c := range p.Cells {
		set(c.X+x, c.Y+y)
	}
}

var library = map[string]string{
	"glider":      "2o$obo$o!",
	"blinker":     "3o!",
	"block":       "2o$2o!",
	"beacon":      "2o$2o$2b2o$2b2o!",
	"r-pentomino": "b2o$2o$bo!",
	"acorn":       "bo$3bo$2o2b3o!",
	"gosper-gun": "24bo$22bobo$12b2o6b2o12b2o$11bo3bo4b2o12b2o$2o8bo5bo3b2o$" +
		"2o8bo3bob2o4bobo$10bo5bo7bo$11bo3bo$12b2o!",
}

// Names lists the built-in patterns.
func Names() []string {
	names := make([]string, 0, len(library))
	for name := range library {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Named returns a built-in pattern.
func Named(name string) (Pattern, error) {
	body, ok := library[strings.ToLower(name)]
	if !ok {
		return Pattern{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	p, err := ParseRLE(strings.NewReader(body))
	if err != nil {
		return Pattern{}, err
	}
	p.Name = name
	return p, nil
}

// Load resolves a library name or a file path. Files ending in .rle are
// read as RLE, anything else as a text frame.
func Load(name string) (Pattern, error) {
	if _, ok := library[strings.ToLower(name)]; ok {
		return Named(name)
	}
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return Pattern{}, fmt.Errorf("%w: %q", ErrUnknown, name)
		}
		return Pattern{}, fmt.Errorf("pattern: %w", err)
	}
	defer f.Close()

	var p Pattern
	if strings.EqualFold(filepath.Ext(name), ".rle") {
		p, err = ParseRLE(f)
	} else {
		p, err = FromFrame(f)
	}
	if err != nil {
		return Pattern{}, fmt.Errorf("%s: %w", name, err)
	}
	p.Name = filepath.Base(name)
	return p, nil
}

// FromFrame reads the alive cells of a text frame.
func FromFrame(r io.Reader) (Pattern, error) {
	bm, err := frame.Decode(r)
	if err != nil {
		return Pattern{}, err
	}
	p := Pattern{W: bm.Width(), H: bm.Height()}
	bm.Each(func(x, y int) { p.Cells = append(p.Cells, grid.Point{X: x, Y: y}) })
	return p, nil
}

// ParseRLE decodes run length encoded Life patterns. Lines starting with
// '#' are comments; an optional "x = .., y = .." header sets the size.
func ParseRLE(r io.Reader) (Pattern, error) {
	var p Pattern
	sc := bufio.NewScanner(r)
	x, y, run := 0, 0, 0
	done := false
	for sc.Scan() && !done {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if line[0] == 'x' {
			if err := parseHeader(line, &p); err != nil {
				return Pattern{}, err
			}
			continue
		}
		for _, c := range line {
			switch {
			case c >= '0' && c <= '9':
				run = run*10 + int(c-'0')
				continue
			case c == 'b' || c == '.':
				x += max(run, 1)
			case c == 'o' || c == 'A':
				for i := 0; i < max(run, 1); i++ {
					p.Cells = append(p.Cells, grid.Point{X: x, Y: y})
					x++
				}
			case c == '$':
				y += max(run, 1)
				x = 0
			case c == '!':
				done = true
			case c == ' ' || c == '\t':
				if run != 0 {
					return Pattern{}, fmt.Errorf("%w: dangling count %d", ErrSyntax, run)
				}
			default:
				return Pattern{}, fmt.Errorf("%w: unexpected %q", ErrSyntax, c)
			}
			run = 0
			p.W = max(p.W, x)
			if done {
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Pattern{}, fmt.Errorf("pattern: %w", err)
	}
	if !done {
		return Pattern{}, fmt.Errorf("%w: missing terminating '!'", ErrSyntax)
	}
	for _, c := range p.Cells {
		p.W = max(p.W, c.X+1)
		p.H = max(p.H, c.Y+1)
	}
	return p, nil
}

func parseHeader(line string, p *Pattern) error {
	for _, field := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return fmt.Errorf("%w: header field %q", ErrSyntax, field)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "x", "y":
			v, err := strconv.Atoi(value)
			if err != nil || v < 0 {
				return fmt.Errorf("%w: header %s = %q", ErrSyntax, key, value)
			}
			if key == "x" {
				p.W = v
			} else {
				p.H = v
			}
		case "rule":
			p.Rule = value
		}
	}
	return nil
}
