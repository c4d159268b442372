// Package rule evaluates birth/survival rules over a grid's active set.
package rule

import (
	"errors"
	"fmt"
	"strings"

	"halo-ca/pkg/grid"
)

// Rule holds two neighbour-count bitmasks. Bit i-1 set means a cell with
// exactly i alive neighbours satisfies the sub-rule, for i in 1..8.
type Rule struct {
	Birth   uint8
	Survive uint8
}

// Bit returns the mask bit for a neighbour count.
func Bit(n int) uint8 { return 1 << (n - 1) }

var (
	Life        = Rule{Birth: Bit(3), Survive: Bit(2) | Bit(3)}
	HighLife    = Rule{Birth: Bit(3) | Bit(6), Survive: Bit(2) | Bit(3)}
	Seeds       = Rule{Birth: Bit(2)}
	DayAndNight = Rule{
		Birth:   Bit(3) | Bit(6) | Bit(7) | Bit(8),
		Survive: Bit(3) | Bit(4) | Bit(6) | Bit(7) | Bit(8),
	}
)

var named = map[string]Rule{
	"life":        Life,
	"highlife":    HighLife,
	"seeds":       Seeds,
	"dayandnight": DayAndNight,
}

// ErrSyntax is returned for rules that are neither named nor in B/S form.
var ErrSyntax = errors.New("rule: invalid syntax")

// Satisfies reports whether count n selects a bit of mask m. Counts
// outside 1..8 never satisfy anything.
func Satisfies(m uint8, n int) bool {
	if n < 1 || n > 8 {
		return false
	}
	return m&Bit(n) != 0
}

// Action is the fate of a cell in the next generation.
type Action uint8

const (
	StayDead Action = iota
	Survive
	Revive
	Kill
)

func (a Action) String() string {
	switch a {
	case Survive:
		return "survive"
	case Revive:
		return "revive"
	case Kill:
		return "kill"
	default:
		return "stay-dead"
	}
}

// Classify decides the next state of c from its cached neighbour count.
func (r Rule) Classify(c grid.Cell) Action {
	n := int(c.Count)
	if c.Alive {
		if Satisfies(r.Survive, n) {
			return Survive
		}
		return Kill
	}
	if Satisfies(r.Birth, n) {
		return Revive
	}
	return StayDead
}

// String formats the rule in B/S notation, e.g. "B3/S23".
func (r Rule) String() string {
	var b strings.Builder
	b.WriteByte('B')
	writeDigits(&b, r.Birth)
	b.WriteString("/S")
	writeDigits(&b, r.Survive)
	return b.String()
}

func writeDigits(b *strings.Builder, m uint8) {
	for n := 1; n <= 8; n++ {
		if m&Bit(n) != 0 {
			b.WriteByte(byte('0' + n))
		}
	}
}

// Parse accepts a rule name (life, highlife, seeds, dayandnight) or B/S
// notation such as "B3/S23" or "b36/s23". Digits 0 and 9 are rejected since
// no mask bit exists for them.
func Parse(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	if r, ok := named[strings.ToLower(s)]; ok {
		return r, nil
	}
	parts := strings.Split(strings.ToUpper(s), "/")
	if len(parts) != 2 {
		return Rule{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	var r Rule
	for _, part := range parts {
		if part == "" {
			return Rule{}, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		var mask uint8
		for _, ch := range part[1:] {
			if ch < '1' || ch > '8' {
				return Rule{}, fmt.Errorf("%w: %q", ErrSyntax, s)
			}
			mask |= Bit(int(ch - '0'))
		}
		switch part[0] {
		case 'B':
			r.Birth = mask
		case 'S':
			r.Survive = mask
		default:
			return Rule{}, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
	}
	return r, nil
}
