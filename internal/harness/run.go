package harness

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/fn"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/testutil"
	"github.com/cellgrid/cellgrid/internal/value"
	"github.com/cellgrid/cellgrid/internal/workbook"
)

// Result exposes the engine, the collected change batches, and any
// assertion failures after a scenario run.
type Result struct {
	Engine   *engine.Engine
	Batches  [][]engine.Change
	Failures []string
}

// Passed reports whether every assertion held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

// Execute runs a scenario against a fresh deterministic engine: it
// seeds the sheet, applies each step, then checks every assertion.
// Change batches are collected from the steps only; seeding is not
// recorded. Setup and step errors abort the run; assertion failures
// are collected in Result.Failures.
func Execute(s *Scenario) (*Result, error) {
	clock := testutil.NewFixedClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	reg := fn.Builtins(clock, testutil.NewSeqRNG(0.25))
	e := engine.New(engine.Config{Registry: reg})

	if err := seed(e, s); err != nil {
		return nil, err
	}

	res := &Result{Engine: e}
	e.Subscribe(func(batch []engine.Change) {
		res.Batches = append(res.Batches, batch)
	})

	for i, step := range s.Steps {
		if err := applyStep(e, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		failure, err := checkAssertion(e, i, a)
		if err != nil {
			return nil, fmt.Errorf("assertion %d: %w", i, err)
		}
		if failure != "" {
			res.Failures = append(res.Failures, failure)
		}
	}
	return res, nil
}

// Run executes a scenario inside a test, reporting assertion failures
// through t. With Golden set the final state is compared against the
// scenario's golden file.
func Run(t *testing.T, s *Scenario) *Result {
	t.Helper()

	res, err := Execute(s)
	require.NoError(t, err)
	for _, failure := range res.Failures {
		t.Error(failure)
	}
	if s.Golden {
		assertGolden(t, s.Name, res)
	}
	return res
}

func seed(e *engine.Engine, s *Scenario) error {
	if s.Workbook != "" {
		wb, err := workbook.CompileFile(s.Workbook)
		if err != nil {
			return err
		}
		return wb.Apply(e)
	}
	if len(s.Cells) == 0 {
		return nil
	}
	entries := make([]workbook.CellEntry, 0, len(s.Cells))
	for label, raw := range s.Cells {
		c, err := sheet.ParseA1(label)
		if err != nil {
			return fmt.Errorf("cell %s: %w", label, err)
		}
		entries = append(entries, workbook.CellEntry{Coord: c, Raw: raw})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Coord.Less(entries[j].Coord) })
	wb := &workbook.Workbook{Name: s.Name, Cells: entries}
	return wb.Apply(e)
}

func applyStep(e *engine.Engine, step Step) error {
	if step.Clear != "" {
		c, err := sheet.ParseA1(step.Clear)
		if err != nil {
			return err
		}
		return e.Clear(c)
	}
	c, err := sheet.ParseA1(step.Set)
	if err != nil {
		return err
	}
	return e.Input(c, step.To)
}

// checkAssertion returns a failure message when the assertion does not
// hold, or an error when the assertion itself cannot be evaluated.
func checkAssertion(e *engine.Engine, i int, a Assertion) (string, error) {
	if a.UsedRange != nil {
		r, ok := e.UsedRange()
		switch {
		case *a.UsedRange == "" && ok:
			return fmt.Sprintf("assertion %d: expected an empty sheet, used range is %s", i, r.A1()), nil
		case *a.UsedRange != "" && !ok:
			return fmt.Sprintf("assertion %d: sheet is empty, expected used range %s", i, *a.UsedRange), nil
		case *a.UsedRange != "" && r.A1() != *a.UsedRange:
			return fmt.Sprintf("assertion %d: used range is %s, expected %s", i, r.A1(), *a.UsedRange), nil
		}
		return "", nil
	}

	c, err := sheet.ParseA1(a.Cell)
	if err != nil {
		return "", err
	}
	got := e.Value(c)

	if a.Error != nil {
		if _, ok := value.IsError(got); !ok {
			return fmt.Sprintf("assertion %d: cell %s = %q, expected error %s", i, a.Cell, display(got), *a.Error), nil
		}
		if got.Display() != *a.Error {
			return fmt.Sprintf("assertion %d: cell %s is %s, expected %s", i, a.Cell, got.Display(), *a.Error), nil
		}
		return "", nil
	}
	if display(got) != *a.Value {
		return fmt.Sprintf("assertion %d: cell %s = %q, expected %q", i, a.Cell, display(got), *a.Value), nil
	}
	return "", nil
}

// display renders a value the way the sheet shows it; empty cells
// render as "".
func display(v value.Value) string {
	if v == nil {
		return ""
	}
	return v.Display()
}
