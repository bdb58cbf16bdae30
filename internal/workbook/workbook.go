// Package workbook loads workbook definitions from CUE.
//
// A workbook file declares a name, optional engine settings and the
// cell contents by A1 address:
//
//	name: "budget"
//	settings: {
//		workers: 4
//		mode:    "automatic"
//	}
//	cells: {
//		A1: "5"
//		B1: "=A1*2"
//	}
//
// Entries are raw cell inputs: a leading "=" makes a formula,
// anything else is typed as a literal.
package workbook

import (
	"fmt"
	"strings"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/sheet"
)

// Settings carries the engine configuration a workbook asks for. The
// zero value means engine defaults: serial evaluation, automatic
// recalculation.
type Settings struct {
	Workers int
	Mode    engine.CalcMode
}

// CellEntry is one declared cell: its address and raw input.
type CellEntry struct {
	Coord sheet.Coord
	Raw   string
}

// Workbook is a compiled workbook definition.
type Workbook struct {
	Name     string
	Settings Settings

	// Cells is sorted by (row, col).
	Cells []CellEntry
}

// Apply feeds the workbook's cells into e: literals first, then
// formulas, then one recompute pass, so every formula settles against
// fully loaded inputs regardless of declaration order.
func (w *Workbook) Apply(e *engine.Engine) error {
	prev := e.Mode()
	e.SetMode(engine.Manual)
	defer e.SetMode(prev)

	formula := func(entry CellEntry) bool { return strings.HasPrefix(entry.Raw, "=") }
	for _, entry := range w.Cells {
		if formula(entry) {
			continue
		}
		if err := e.Input(entry.Coord, entry.Raw); err != nil {
			return fmt.Errorf("apply cell %s: %w", entry.Coord.A1(), err)
		}
	}
	for _, entry := range w.Cells {
		if !formula(entry) {
			continue
		}
		if err := e.Input(entry.Coord, entry.Raw); err != nil {
			return fmt.Errorf("apply cell %s: %w", entry.Coord.A1(), err)
		}
	}
	e.Recalculate()
	return nil
}
