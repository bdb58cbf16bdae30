package value

import (
	"strconv"
	"strings"
)

// Coercion between variants. Each helper returns the converted result
// and a nil second value on success; on failure the second value is the
// Error to propagate. An error input always propagates unchanged, and a
// nil input (an empty cell) converts to the context's zero: 0 as a
// number, "" as text, FALSE as a boolean.

// AsNumber converts v for use in arithmetic.
func AsNumber(v Value) (float64, Value) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case Number:
		return float64(t), nil
	case Bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case Text:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		if err != nil {
			return 0, NewError(TagValue)
		}
		return f, nil
	case Error:
		return 0, t
	}
	return 0, NewError(TagValue)
}

// AsText converts v for use in concatenation.
func AsText(v Value) (string, Value) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case Text:
		return string(t), nil
	case Number, Bool:
		return v.Display(), nil
	case Error:
		return "", t
	}
	return "", NewError(TagValue)
}

// AsBool converts v for use in a logical context. Text converts only
// from the literal spellings "TRUE" and "FALSE" (case-insensitive).
func AsBool(v Value) (bool, Value) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case Bool:
		return bool(t), nil
	case Number:
		return t != 0, nil
	case Text:
		switch strings.ToUpper(strings.TrimSpace(string(t))) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
		return false, NewError(TagValue)
	case Error:
		return false, t
	}
	return false, NewError(TagValue)
}
