// Package value defines the closed set of results a cell can hold.
//
// A cell's computed value is exactly one of: a number, a text string, a
// boolean, or an error. Errors are ordinary values that flow through
// computation, not Go errors; a formula referencing an errored cell
// produces that same error value rather than failing.
package value

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Value is the closed set of cell results. The only implementations are
// Number, Text, Bool, and Error; the unexported method keeps the set
// closed so evaluation can switch over variants exhaustively.
type Value interface {
	isValue()

	// Display renders the value the way a cell shows it.
	Display() string
}

// Number is a floating-point cell value.
type Number float64

// Text is a string cell value. Construct via NewText so comparisons and
// persistence see one canonical Unicode form.
type Text string

// Bool is a boolean cell value.
type Bool bool

// Error is an error cell value carrying its classification tag.
type Error struct {
	Tag ErrorTag
}

func (Number) isValue() {}
func (Text) isValue()   {}
func (Bool) isValue()   {}
func (Error) isValue()  {}

// NewText builds a Text value normalized to Unicode NFC.
func NewText(s string) Text {
	return Text(norm.NFC.String(s))
}

// NewError builds an Error value with the given tag.
func NewError(tag ErrorTag) Error {
	return Error{Tag: tag}
}

// Display renders the number without a trailing ".0" for integers,
// matching how cells show numeric results.
func (n Number) Display() string {
	f := float64(n)
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (t Text) Display() string { return string(t) }

func (b Bool) Display() string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (e Error) Display() string { return e.Tag.Display() }

// Equal reports whether two values are indistinguishable to an observer.
// Numbers compare numerically, text byte-wise in canonical form, errors
// by tag. nil equals nil (an empty cell).
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Error:
		bv, ok := b.(Error)
		return ok && av.Tag == bv.Tag
	}
	return false
}

// IsError reports whether v is an error value, returning its tag.
func IsError(v Value) (ErrorTag, bool) {
	e, ok := v.(Error)
	if !ok {
		return "", false
	}
	return e.Tag, true
}

// ErrorTag classifies an error value.
type ErrorTag string

const (
	// TagError marks a formula whose source text failed to parse.
	TagError ErrorTag = "ERROR"
	// TagName marks a call to an unknown function.
	TagName ErrorTag = "NAME"
	// TagValue marks an operand of the wrong type, or a bad argument count.
	TagValue ErrorTag = "VALUE"
	// TagDiv0 marks division (or modulo) by zero.
	TagDiv0 ErrorTag = "DIV0"
	// TagRef marks a reference outside the grid bounds.
	TagRef ErrorTag = "REF"
	// TagCircular marks a cell on, or downstream of, a dependency cycle.
	TagCircular ErrorTag = "CIRCULAR"
)

// Display renders the tag the way a cell shows it.
func (t ErrorTag) Display() string {
	switch t {
	case TagError:
		return "#ERROR!"
	case TagName:
		return "#NAME?"
	case TagValue:
		return "#VALUE!"
	case TagDiv0:
		return "#DIV/0!"
	case TagRef:
		return "#REF!"
	case TagCircular:
		return "#CIRCULAR!"
	}
	return "#" + string(t) + "!"
}

// ParseErrorLiteral recognizes an error display string ("#DIV/0!") and
// returns its tag. Used by the formula parser, which accepts error
// literals as constants.
func ParseErrorLiteral(s string) (ErrorTag, bool) {
	switch strings.ToUpper(s) {
	case "#ERROR!":
		return TagError, true
	case "#NAME?":
		return TagName, true
	case "#VALUE!":
		return TagValue, true
	case "#DIV/0!":
		return TagDiv0, true
	case "#REF!":
		return TagRef, true
	case "#CIRCULAR!":
		return TagCircular, true
	}
	return "", false
}
