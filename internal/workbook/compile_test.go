package workbook

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/fn"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/testutil"
	"github.com/cellgrid/cellgrid/internal/value"
)

func compile(t *testing.T, src string) (*Workbook, error) {
	t.Helper()
	return Compile(cuecontext.New().CompileString(src))
}

func coord(t *testing.T, label string) sheet.Coord {
	t.Helper()
	c, err := sheet.ParseA1(label)
	require.NoError(t, err)
	return c
}

func TestCompileBasic(t *testing.T) {
	wb, err := compile(t, `
		name: "budget"
		settings: {
			workers: 4
			mode:    "manual"
		}
		cells: {
			B1: "=A1*2"
			A1: "5"
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, "budget", wb.Name)
	assert.Equal(t, 4, wb.Settings.Workers)
	assert.Equal(t, engine.Manual, wb.Settings.Mode)

	// Entries come back in (row, col) order regardless of declaration
	// order.
	require.Len(t, wb.Cells, 2)
	assert.Equal(t, CellEntry{Coord: coord(t, "A1"), Raw: "5"}, wb.Cells[0])
	assert.Equal(t, CellEntry{Coord: coord(t, "B1"), Raw: "=A1*2"}, wb.Cells[1])
}

func TestCompileDefaults(t *testing.T) {
	wb, err := compile(t, `name: "empty"`)
	require.NoError(t, err)
	assert.Equal(t, 0, wb.Settings.Workers)
	assert.Equal(t, engine.Automatic, wb.Settings.Mode)
	assert.Empty(t, wb.Cells)
}

func TestCompileMissingName(t *testing.T) {
	_, err := compile(t, `cells: {A1: "5"}`)
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "name", cerr.Field)
}

func TestCompileBadCellLabel(t *testing.T) {
	_, err := compile(t, `
		name: "bad"
		cells: {XX: "5"}
	`)
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "cells.XX", cerr.Field)
	assert.Contains(t, cerr.Message, "not a cell address")
}

func TestCompileBadMode(t *testing.T) {
	_, err := compile(t, `
		name: "bad"
		settings: mode: "eager"
	`)
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "settings.mode", cerr.Field)
}

func TestCompileNegativeWorkers(t *testing.T) {
	_, err := compile(t, `
		name: "bad"
		settings: workers: -1
	`)
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "settings.workers", cerr.Field)
}

func TestCompileNonStringEntry(t *testing.T) {
	_, err := compile(t, `
		name: "bad"
		cells: {A1: 5}
	`)
	require.Error(t, err)
}

func TestCompileEmptyEntry(t *testing.T) {
	_, err := compile(t, `
		name: "bad"
		cells: {A1: ""}
	`)
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "cells.A1", cerr.Field)
}

func TestCompileModeDefaultDisjunction(t *testing.T) {
	wb, err := compile(t, `
		name: "defaults"
		settings: mode: *"automatic" | "manual"
	`)
	require.NoError(t, err)
	assert.Equal(t, engine.Automatic, wb.Settings.Mode)
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.cue")
	src := `
		name: "budget"
		cells: {
			A1: "5"
			B1: "=A1*2"
		}
	`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	wb, err := CompileFile(path)
	require.NoError(t, err)
	assert.Equal(t, "budget", wb.Name)
	assert.Len(t, wb.Cells, 2)
}

func TestCompileFileMissing(t *testing.T) {
	_, err := CompileFile(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "name", Message: "name is required"}
	assert.Equal(t, "name: name is required", err.Error())
}

func TestApplySettlesDeclarationOrder(t *testing.T) {
	wb, err := compile(t, `
		name: "ordered"
		cells: {
			A1: "=B1*2"
			B1: "3"
			C1: "=SUM(A1:B1)"
		}
	`)
	require.NoError(t, err)

	clock := testutil.NewFixedClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	e := engine.New(engine.Config{Registry: fn.Builtins(clock, testutil.NewSeqRNG(0.25))})
	require.NoError(t, wb.Apply(e))

	// The formula preceding its input in the file still settles,
	// because literals load first and one pass runs at the end.
	assert.Equal(t, value.Number(6), e.Value(coord(t, "A1")))
	assert.Equal(t, value.Number(9), e.Value(coord(t, "C1")))
	assert.Equal(t, engine.Automatic, e.Mode())
}

func TestApplyOutOfGrid(t *testing.T) {
	wb, err := compile(t, `
		name: "big"
		cells: {A10: "1"}
	`)
	require.NoError(t, err)

	e := engine.New(engine.Config{MaxRows: 5})
	err = wb.Apply(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A10")
	assert.True(t, engine.IsOutOfGrid(err))
}
