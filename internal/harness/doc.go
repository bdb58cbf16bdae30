// Package harness provides scenario-driven conformance testing for the
// formula engine.
//
// Scenarios are YAML files describing a starting sheet, a sequence of
// edits and the expected outcome:
//
//	name: budget_ripple
//	description: "Editing an input ripples through dependents"
//	cells:
//	  A1: "5"
//	  B1: "=A1*2"
//	steps:
//	  - set: A1
//	    to: "7"
//	assertions:
//	  - cell: B1
//	    value: "14"
//	  - used_range: "A1:B1"
//	golden: true
//
// A scenario seeds the sheet from an inline cells map or a workbook CUE
// file, applies the steps in order, then checks the assertions. With
// golden set, the final used range and the change log of every
// recompute pass are snapshotted and compared against
// testdata/golden/{name}.golden.
//
// # Deterministic Execution
//
// Scenarios run with a pinned clock and a replayed random sequence, so
// volatile functions (NOW, TODAY, RAND) produce identical values on
// every run. Golden comparison depends on this.
package harness
