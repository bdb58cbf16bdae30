package cli

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/cellgrid/cellgrid/internal/engine"
)

// defaultTableWidth is used when the writer is not a terminal.
const defaultTableWidth = 100

// minRawWidth keeps the raw column readable on narrow terminals.
const minRawWidth = 8

// writerWidth returns the terminal width of w, or defaultTableWidth
// when w is not a terminal.
func writerWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultTableWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 1 {
		return defaultTableWidth
	}
	return width
}

// renderCellTable writes cells as aligned CELL / RAW / VALUE columns,
// shrinking the raw column so rows fit within width.
func renderCellTable(w io.Writer, cells []engine.CellView, width int) {
	cellW := utf8.RuneCountInString("CELL")
	rawW := utf8.RuneCountInString("RAW")
	for _, cv := range cells {
		cellW = max(cellW, utf8.RuneCountInString(cv.Coord.A1()))
		rawW = max(rawW, utf8.RuneCountInString(cv.Raw))
	}
	// Two 2-space gutters and a trailing value column share the width.
	if spare := width - cellW - utf8.RuneCountInString("VALUE") - 4; rawW > spare {
		rawW = max(spare, minRawWidth)
	}

	fmt.Fprintf(w, "%-*s  %-*s  %s\n", cellW, "CELL", rawW, "RAW", "VALUE")
	for _, cv := range cells {
		fmt.Fprintf(w, "%-*s  %-*s  %s\n", cellW, cv.Coord.A1(), rawW, truncate(cv.Raw, rawW), displayValue(cv.Value))
	}
}

// truncate cuts s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
