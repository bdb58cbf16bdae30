package workbook

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/sheet"
)

// Compile parses a CUE value into a Workbook.
//
// The value should be the workbook struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`{name: "budget", cells: {A1: "5"}}`)
//	wb, err := workbook.Compile(v)
func Compile(v cue.Value) (*Workbook, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	wb := &Workbook{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	wb.Name = name

	wb.Settings, err = parseSettings(v)
	if err != nil {
		return nil, err
	}
	wb.Cells, err = parseCells(v)
	if err != nil {
		return nil, err
	}
	return wb, nil
}

// CompileFile reads and compiles one workbook CUE file.
func CompileFile(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workbook file: %w", err)
	}
	ctx := cuecontext.New()
	return Compile(ctx.CompileBytes(data, cue.Filename(path)))
}

func parseSettings(v cue.Value) (Settings, error) {
	var s Settings
	sv := v.LookupPath(cue.ParsePath("settings"))
	if !sv.Exists() {
		return s, nil
	}

	if wv := sv.LookupPath(cue.ParsePath("workers")); wv.Exists() {
		n, err := wv.Int64()
		if err != nil {
			return s, formatCUEError(err)
		}
		if n < 0 {
			return s, &CompileError{
				Field:   "settings.workers",
				Message: fmt.Sprintf("workers must not be negative, got %d", n),
				Pos:     wv.Pos(),
			}
		}
		s.Workers = int(n)
	}

	if mv := sv.LookupPath(cue.ParsePath("mode")); mv.Exists() {
		mode, err := mv.String()
		if err != nil {
			return s, formatCUEError(err)
		}
		switch mode {
		case "automatic":
			s.Mode = engine.Automatic
		case "manual":
			s.Mode = engine.Manual
		default:
			return s, &CompileError{
				Field:   "settings.mode",
				Message: fmt.Sprintf("unknown mode %q (want \"automatic\" or \"manual\")", mode),
				Pos:     mv.Pos(),
			}
		}
	}
	return s, nil
}

func parseCells(v cue.Value) ([]CellEntry, error) {
	cv := v.LookupPath(cue.ParsePath("cells"))
	if !cv.Exists() {
		return nil, nil
	}
	iter, err := cv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cells []CellEntry
	for iter.Next() {
		label := iter.Label()
		entry := iter.Value()

		c, err := sheet.ParseA1(label)
		if err != nil {
			return nil, &CompileError{
				Field:   "cells." + label,
				Message: "not a cell address",
				Pos:     entry.Pos(),
			}
		}
		raw, err := entry.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if raw == "" {
			return nil, &CompileError{
				Field:   "cells." + label,
				Message: "empty entry (omit the cell instead)",
				Pos:     entry.Pos(),
			}
		}
		cells = append(cells, CellEntry{Coord: c, Raw: raw})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Coord.Less(cells[j].Coord) })
	return cells, nil
}

// CompileError reports a workbook compilation failure with source
// position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
