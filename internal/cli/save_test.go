package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

func TestSaveCommandStdout(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "book.db")
	rootOpts := &RootOptions{Format: "text"}

	for _, args := range [][]string{
		{"--db", dbPath, "A1", "5"},
		{"--db", dbPath, "B1", "=A1*2"},
	} {
		cmd := NewSetCommand(rootOpts)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
	}

	buf := &bytes.Buffer{}
	cmd := NewSaveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, `name: "workbook"`)
	assert.Contains(t, output, "cells: {")
	assert.Contains(t, output, `A1: "5"`)
	assert.Contains(t, output, `B1: "=A1*2"`)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "book.db")
	cuePath := filepath.Join(tmpDir, "export.cue")
	otherDB := filepath.Join(tmpDir, "other.db")
	rootOpts := &RootOptions{Format: "text"}

	for _, args := range [][]string{
		{"--db", dbPath, "A1", "5"},
		{"--db", dbPath, "A2", "hello world"},
		{"--db", dbPath, "B1", "=A1*2"},
	} {
		cmd := NewSetCommand(rootOpts)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
	}

	buf := &bytes.Buffer{}
	cmd := NewSaveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "-o", cuePath, "--name", "export"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "saved 3 cells to "+cuePath+"\n", buf.String())

	loadCmd := NewLoadCommand(rootOpts)
	loadCmd.SetOut(&bytes.Buffer{})
	loadCmd.SetArgs([]string{"--db", otherDB, cuePath})
	require.NoError(t, loadCmd.Execute())

	for cell, want := range map[string]string{
		"A1": "5\n",
		"A2": "hello world\n",
		"B1": "10\n",
	} {
		buf = &bytes.Buffer{}
		getCmd := NewGetCommand(rootOpts)
		getCmd.SetOut(buf)
		getCmd.SetArgs([]string{"--db", otherDB, cell})
		require.NoError(t, getCmd.Execute())
		assert.Equal(t, want, buf.String(), "cell %s", cell)
	}
}

func TestSaveCommandMissingDatabase(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSaveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "missing.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSaveCommandWritesFile(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "book.db")
	cuePath := filepath.Join(tmpDir, "out.cue")
	rootOpts := &RootOptions{Format: "text"}

	cmd := NewSetCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "A1", "1"})
	require.NoError(t, cmd.Execute())

	saveCmd := NewSaveCommand(rootOpts)
	saveCmd.SetOut(&bytes.Buffer{})
	saveCmd.SetArgs([]string{"--db", dbPath, "-o", cuePath})
	require.NoError(t, saveCmd.Execute())

	data, err := os.ReadFile(cuePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `A1: "1"`)
}

func TestRenderCUE(t *testing.T) {
	cells := []engine.CellView{
		{Coord: coord(t, "A1"), Raw: "5", Value: value.Number(5)},
		{Coord: coord(t, "B2"), Raw: `say "hi"`, Value: value.Text(`say "hi"`)},
	}

	src := renderCUE("demo", cells)
	assert.Equal(t, "name: \"demo\"\ncells: {\n\tA1: \"5\"\n\tB2: \"say \\\"hi\\\"\"\n}\n", src)
}

func coord(t *testing.T, label string) sheet.Coord {
	t.Helper()
	c, err := sheet.ParseA1(label)
	require.NoError(t, err)
	return c
}
