package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cellgrid/cellgrid/internal/sheet"
)

// Scenario defines one conformance test: a starting sheet, edits to
// apply and the expected outcome.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are named
	// after it.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty"`

	// Workbook is a path to a workbook CUE file seeding the sheet.
	// Relative paths resolve against the scenario file's directory.
	// Mutually exclusive with Cells.
	Workbook string `yaml:"workbook,omitempty"`

	// Cells seeds the sheet inline: A1 label to raw input.
	Cells map[string]string `yaml:"cells,omitempty"`

	// Steps are the edits to apply, in order.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions validate the final sheet.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Golden snapshots the final used range and change log against
	// testdata/golden/{Name}.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// Step is one edit: exactly one of Set or Clear names a cell.
type Step struct {
	// Set names the cell to write; To carries the raw input.
	Set string `yaml:"set,omitempty"`
	To  string `yaml:"to,omitempty"`

	// Clear names the cell to empty.
	Clear string `yaml:"clear,omitempty"`
}

// Assertion checks one fact about the final sheet. Exactly one of
// Value, Error or UsedRange is set.
type Assertion struct {
	// Cell names the cell Value or Error applies to.
	Cell string `yaml:"cell,omitempty"`

	// Value is the expected display form ("" asserts an empty cell).
	Value *string `yaml:"value,omitempty"`

	// Error is the expected error literal, e.g. "#DIV/0!".
	Error *string `yaml:"error,omitempty"`

	// UsedRange is the expected used range in A1 form ("" asserts an
	// empty sheet).
	UsedRange *string `yaml:"used_range,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected, so typos like "assertion:" fail loudly instead of
// silently skipping checks. Relative workbook paths resolve against
// the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if scenario.Workbook != "" && !filepath.IsAbs(scenario.Workbook) {
		scenario.Workbook = filepath.Join(filepath.Dir(path), scenario.Workbook)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Workbook != "" && len(s.Cells) > 0 {
		return fmt.Errorf("workbook and cells are mutually exclusive")
	}
	for label := range s.Cells {
		if _, err := sheet.ParseA1(label); err != nil {
			return fmt.Errorf("cells: %w", err)
		}
	}

	for i, step := range s.Steps {
		switch {
		case step.Set != "" && step.Clear != "":
			return fmt.Errorf("step %d: set and clear are mutually exclusive", i)
		case step.Set == "" && step.Clear == "":
			return fmt.Errorf("step %d: needs set or clear", i)
		case step.Clear != "" && step.To != "":
			return fmt.Errorf("step %d: to is only valid with set", i)
		}
		label := step.Set
		if label == "" {
			label = step.Clear
		}
		if _, err := sheet.ParseA1(label); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		set := 0
		for _, present := range []bool{a.Value != nil, a.Error != nil, a.UsedRange != nil} {
			if present {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("assertion %d: needs exactly one of value, error, used_range", i)
		}
		if a.UsedRange != nil {
			if a.Cell != "" {
				return fmt.Errorf("assertion %d: cell is not valid with used_range", i)
			}
			if *a.UsedRange != "" {
				if _, err := sheet.ParseRangeA1(*a.UsedRange); err != nil {
					return fmt.Errorf("assertion %d: %w", i, err)
				}
			}
			continue
		}
		if a.Cell == "" {
			return fmt.Errorf("assertion %d: cell is required", i)
		}
		if _, err := sheet.ParseA1(a.Cell); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}
