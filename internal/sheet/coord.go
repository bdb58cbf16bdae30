package sheet

import (
	"fmt"
	"strings"
)

// Grid bounds. References at or beyond these limits are not addressable
// and evaluate to a #REF! error rather than failing structurally.
const (
	MaxRows = 1048576
	MaxCols = 16384
)

// Coord is an immutable zero-based (row, column) cell position.
//
// Coords are totally ordered by (Row, Col); that ordering is the
// deterministic tie-break for recomputation scheduling, so it must never
// change.
type Coord struct {
	Row int
	Col int
}

// InBounds reports whether the coordinate addresses a real grid cell.
func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < MaxRows && c.Col >= 0 && c.Col < MaxCols
}

// Less orders coordinates row-major: by row, then by column.
func (c Coord) Less(other Coord) bool {
	if c.Row != other.Row {
		return c.Row < other.Row
	}
	return c.Col < other.Col
}

// A1 renders the coordinate as an A1-style label ("A1", "BC123").
func (c Coord) A1() string {
	return ColName(c.Col) + fmt.Sprintf("%d", c.Row+1)
}

func (c Coord) String() string {
	return c.A1()
}

// ColName converts a zero-based column index to its letter label
// (0 → "A", 25 → "Z", 26 → "AA").
func ColName(col int) string {
	var b [8]byte
	i := len(b)
	n := col + 1
	for n > 0 {
		n--
		i--
		b[i] = byte('A' + n%26)
		n /= 26
	}
	return string(b[i:])
}

// ParseA1 parses an A1-style label into a Coord. The label must be
// column letters followed by a 1-based row number, with nothing else.
// Lowercase letters are accepted.
func ParseA1(label string) (Coord, error) {
	s := strings.ToUpper(strings.TrimSpace(label))
	i := 0
	col := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A') + 1
		i++
	}
	if i == 0 {
		return Coord{}, fmt.Errorf("invalid cell label %q: missing column letters", label)
	}
	if i == len(s) {
		return Coord{}, fmt.Errorf("invalid cell label %q: missing row number", label)
	}
	row := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Coord{}, fmt.Errorf("invalid cell label %q: unexpected character %q", label, s[i])
		}
		row = row*10 + int(s[i]-'0')
		if row > MaxRows {
			return Coord{}, fmt.Errorf("invalid cell label %q: row out of range", label)
		}
	}
	if row == 0 {
		return Coord{}, fmt.Errorf("invalid cell label %q: row numbers start at 1", label)
	}
	c := Coord{Row: row - 1, Col: col - 1}
	if !c.InBounds() {
		return Coord{}, fmt.Errorf("invalid cell label %q: outside grid bounds", label)
	}
	return c, nil
}
