package universe

import "fmt"

// Strip is the column range owned by one rank.
type Strip struct {
	Rank   int
	Offset int
	Width  int
}

// Contains reports whether global column x lies in the strip.
func (s Strip) Contains(x int) bool { return x >= s.Offset && x < s.Offset+s.Width }

// Layout splits a universe of the given width into parts strips. Widths
// differ by at most one; the wider strips come last.
func Layout(width, parts int) ([]Strip, error) {
	if parts <= 0 || width < parts {
		return nil, fmt.Errorf("%w: cannot split width %d into %d partitions", ErrInvalidConfig, width, parts)
	}
	each := width / parts
	bigger := width - each*parts
	strips := make([]Strip, parts)
	offset := 0
	for r := range strips {
		w := each
		if r >= parts-bigger {
			w++
		}
		strips[r] = Strip{Rank: r, Offset: offset, Width: w}
		offset += w
	}
	return strips, nil
}

// owner returns the rank owning column x, which must be in range.
func owner(strips []Strip, x int) int {
	lo, hi := 0, len(strips)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if strips[mid].Offset <= x {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
