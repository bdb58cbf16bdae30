package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: ripple
description: "values ripple"
cells:
  A1: "5"
  B1: "=A1*2"
steps:
  - set: A1
    to: "7"
  - clear: B2
assertions:
  - cell: B1
    value: "14"
  - used_range: "A1:B1"
golden: true
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "ripple", s.Name)
	assert.Len(t, s.Cells, 2)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, "A1", s.Steps[0].Set)
	assert.Equal(t, "7", s.Steps[0].To)
	assert.Equal(t, "B2", s.Steps[1].Clear)
	require.Len(t, s.Assertions, 2)
	require.NotNil(t, s.Assertions[0].Value)
	assert.Equal(t, "14", *s.Assertions[0].Value)
	require.NotNil(t, s.Assertions[1].UsedRange)
	assert.True(t, s.Golden)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
assertion:
  - cell: A1
    value: "1"
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_MissingName(t *testing.T) {
	path := writeScenario(t, `
cells:
  A1: "1"
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_StepValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"neither set nor clear",
			"name: s\nsteps:\n  - to: \"1\"\n",
			"needs set or clear",
		},
		{
			"both set and clear",
			"name: s\nsteps:\n  - set: A1\n    to: \"1\"\n    clear: B1\n",
			"mutually exclusive",
		},
		{
			"to with clear",
			"name: s\nsteps:\n  - clear: A1\n    to: \"1\"\n",
			"only valid with set",
		},
		{
			"bad label",
			"name: s\nsteps:\n  - set: NOPE\n    to: \"1\"\n",
			"step 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_AssertionValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"no expectation",
			"name: s\nassertions:\n  - cell: A1\n",
			"exactly one",
		},
		{
			"value and error",
			"name: s\nassertions:\n  - cell: A1\n    value: \"1\"\n    error: \"#REF!\"\n",
			"exactly one",
		},
		{
			"missing cell",
			"name: s\nassertions:\n  - value: \"1\"\n",
			"cell is required",
		},
		{
			"cell with used_range",
			"name: s\nassertions:\n  - cell: A1\n    used_range: \"A1:B1\"\n",
			"not valid with used_range",
		},
		{
			"bad range",
			"name: s\nassertions:\n  - used_range: \"A1:\"\n",
			"assertion 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_WorkbookCellsConflict(t *testing.T) {
	path := writeScenario(t, `
name: s
workbook: wb.cue
cells:
  A1: "1"
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestLoadScenario_ResolvesWorkbookPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: s\nworkbook: wb.cue\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "wb.cue"), s.Workbook)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
