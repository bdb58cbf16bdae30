package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "book.db")
	rootOpts := &RootOptions{Format: "text"}

	buf := &bytes.Buffer{}
	cmd := NewSetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "A1", "5"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "A1 = 5\n", buf.String())

	buf = &bytes.Buffer{}
	cmd = NewSetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "B1", "=A1*2"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "B1 = 10\n", buf.String())

	buf = &bytes.Buffer{}
	cmd = NewGetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "B1"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "10\n", buf.String())
}

func TestGetWholeSheet(t *testing.T) {
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
	cmd := NewGetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})
	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "CELL")
	assert.Contains(t, output, "RAW")
	assert.Contains(t, output, "VALUE")
	assert.Contains(t, output, "=A1*2")
	assert.Contains(t, output, "2 cells, used range A1:B1")
}

func TestGetEmptyWorkbook(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "book.db")
	rootOpts := &RootOptions{Format: "text"}

	// Stage then delete so the database exists but holds nothing.
	cmd := NewSetCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "--no-recalc", "A1", "1"})
	require.NoError(t, cmd.Execute())

	cmd = NewClearCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "--no-recalc", "A1"})
	require.NoError(t, cmd.Execute())

	buf := &bytes.Buffer{}
	cmd = NewGetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "empty workbook\n", buf.String())
}

func TestGetUnsetCell(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "book.db")
	rootOpts := &RootOptions{Format: "text"}

	cmd := NewSetCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "A1", "1"})
	require.NoError(t, cmd.Execute())

	buf := &bytes.Buffer{}
	cmd = NewGetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "Z99"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "\n", buf.String())
}

func TestClearRecomputesDependents(t *testing.T) {
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
	cmd := NewClearCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "A1"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "cleared A1\n", buf.String())

	// Empty A1 coerces to zero in arithmetic.
	buf = &bytes.Buffer{}
	cmd = NewGetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "B1"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "0\n", buf.String())
}

func TestSetNoRecalcSettlesOnLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "book.db")
	rootOpts := &RootOptions{Format: "text"}

	cmd := NewSetCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "A1", "5"})
	require.NoError(t, cmd.Execute())

	buf := &bytes.Buffer{}
	cmd = NewSetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--no-recalc", "C1", "=A1*3"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "staged C1\n", buf.String())

	buf = &bytes.Buffer{}
	cmd = NewGetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "C1"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "15\n", buf.String())
}

func TestGetMissingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "A1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestClearMissingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewClearCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "A1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSetInvalidCell(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "book.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSetCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "9X", "1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cell")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetCellJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "book.db")

	cmd := NewSetCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "A1", "=6*7"})
	require.NoError(t, cmd.Execute())

	buf := &bytes.Buffer{}
	cmd = NewGetCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "A1"})
	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A1", data["cell"])
	assert.Equal(t, "=6*7", data["raw"])
	assert.Equal(t, "42", data["value"])
	assert.Equal(t, true, data["formula"])
}

func TestSetJSONReportsPass(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "book.db")

	buf := &bytes.Buffer{}
	cmd := NewSetCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "A1", "=3+4"})
	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A1", data["cell"])
	assert.Equal(t, "7", data["value"])
	assert.Equal(t, float64(1), data["evaluated"])
	assert.Equal(t, float64(1), data["changed"])
}
