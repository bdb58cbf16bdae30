// Package engine orchestrates the spreadsheet recompute cycle.
//
// The engine owns the cell store, the dependency graph and the
// evaluator, and exposes the workbook boundary: set a value or a
// formula, clear a cell, read settled values, subscribe to change
// batches.
//
// ARCHITECTURE:
//
// Single-writer recompute pass:
// Every mutation runs one pass to completion under the engine mutex
// (parse, edge update, cycle check, layered evaluation, store writes,
// change dispatch). Concurrent readers see settled per-cell snapshots
// through the store's own lock; they never observe a torn cell.
//
// Pass flow:
//  1. Roots are collected (the mutated cell, pending dirty cells in
//     manual mode, every volatile cell).
//  2. Cycle members reachable from the roots settle to #CIRCULAR!
//     without evaluation.
//  3. The remaining affected set is partitioned into topological
//     layers; cells within a layer are independent and may be
//     evaluated by a bounded worker pool.
//  4. Results are written back layer by layer, so every evaluation
//     reads only settled values: earlier layers or pre-pass state.
//  5. Cells whose value actually changed are reported to subscribers
//     in (row, col) order.
//
// Evaluation never aborts a pass: data-dependent failures are error
// values stored in cells, and a pass always reaches a terminal state
// for every affected cell.
//
// Determinism:
// Pass order is a function of the dependency graph alone. Ties are
// broken ascending (row, col), layers are joined before the next one
// starts, and change batches are sorted. Two engines fed the same
// inputs report the same batches in the same order.
package engine
