package engine

import (
	"errors"
	"fmt"

	"github.com/cellgrid/cellgrid/internal/sheet"
)

// ErrUnknownSubscription is returned by Unsubscribe for an id that was
// never issued or was already cancelled.
var ErrUnknownSubscription = errors.New("unknown subscription id")

// InputError reports an engine operation rejected before any state
// changed. It is a Go error: data-dependent evaluation failures are
// never returned this way, they become error values in cells.
type InputError struct {
	// Code identifies the rejection category.
	Code InputErrorCode

	// Coord is the cell the operation addressed.
	Coord sheet.Coord

	// Message is a human-readable description.
	Message string
}

// InputErrorCode categorizes rejected operations.
type InputErrorCode string

const (
	// ErrCodeOutOfGrid indicates the target coordinate lies outside the
	// workbook's addressable area.
	ErrCodeOutOfGrid InputErrorCode = "OUT_OF_GRID"
)

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s (cell=%s)", e.Code, e.Message, e.Coord.A1())
}

// IsOutOfGrid reports whether err is an out-of-grid rejection.
// Uses errors.As to handle wrapped errors.
func IsOutOfGrid(err error) bool {
	var ie *InputError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeOutOfGrid
	}
	return false
}

func newOutOfGridError(c sheet.Coord, rows, cols int) *InputError {
	return &InputError{
		Code:    ErrCodeOutOfGrid,
		Coord:   c,
		Message: fmt.Sprintf("coordinate outside the %dx%d grid", rows, cols),
	}
}
