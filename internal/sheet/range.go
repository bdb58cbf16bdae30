package sheet

import (
	"fmt"
	"iter"
	"strings"
)

// Range is a rectangular block of cells, inclusive on both corners.
// NewRange normalizes the corners so Start is always the top-left and
// End the bottom-right regardless of the order given.
type Range struct {
	Start Coord
	End   Coord
}

// NewRange builds a normalized range from any two opposite corners.
func NewRange(a, b Coord) Range {
	r := Range{Start: a, End: b}
	if r.End.Row < r.Start.Row {
		r.Start.Row, r.End.Row = r.End.Row, r.Start.Row
	}
	if r.End.Col < r.Start.Col {
		r.Start.Col, r.End.Col = r.End.Col, r.Start.Col
	}
	return r
}

// ParseRangeA1 parses an "A1:B3" style label into a normalized Range.
func ParseRangeA1(label string) (Range, error) {
	lo, hi, ok := strings.Cut(label, ":")
	if !ok {
		return Range{}, fmt.Errorf("invalid range label %q: missing ':'", label)
	}
	start, err := ParseA1(lo)
	if err != nil {
		return Range{}, err
	}
	end, err := ParseA1(hi)
	if err != nil {
		return Range{}, err
	}
	return NewRange(start, end), nil
}

// Contains reports whether the coordinate lies inside the range.
func (r Range) Contains(c Coord) bool {
	return c.Row >= r.Start.Row && c.Row <= r.End.Row &&
		c.Col >= r.Start.Col && c.Col <= r.End.Col
}

// Count returns the number of cells the range covers.
func (r Range) Count() int {
	return (r.End.Row - r.Start.Row + 1) * (r.End.Col - r.Start.Col + 1)
}

// Cells iterates the range's coordinates in row-major order without
// materializing them.
func (r Range) Cells() iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(Coord{Row: row, Col: col}) {
					return
				}
			}
		}
	}
}

// A1 renders the range as "A1:B3". Single-cell ranges still render with
// both corners so the label round-trips through ParseRangeA1.
func (r Range) A1() string {
	return r.Start.A1() + ":" + r.End.A1()
}

func (r Range) String() string {
	return r.A1()
}
