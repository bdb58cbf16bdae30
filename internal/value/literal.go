package value

import (
	"math"
	"strconv"
	"strings"
)

// ParseLiteral types a raw non-formula cell input: numbers, TRUE/FALSE,
// error constants such as #REF!, otherwise text. The empty string is
// the absent value, nil. A leading apostrophe forces the rest of the
// input to be text, so "'7" enters the text "7". Surrounding whitespace
// is ignored for typing but preserved when the input lands as text.
func ParseLiteral(s string) Value {
	if s == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(s, "'"); ok {
		return NewText(rest)
	}
	t := strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(t, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
		return Number(n)
	}
	switch strings.ToUpper(t) {
	case "TRUE":
		return Bool(true)
	case "FALSE":
		return Bool(false)
	}
	if tag, ok := ParseErrorLiteral(t); ok {
		return NewError(tag)
	}
	return NewText(s)
}
