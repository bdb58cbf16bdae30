// Package persist provides SQLite-backed snapshots of a workbook.
//
// The stored form is the list of (coordinate, raw_input) pairs plus a
// small metadata table. Computed values, parsed formulas and the
// dependency graph are never persisted: Load feeds the raw inputs back
// through the engine, which rebuilds all derived state by re-parsing
// and running one recompute pass. That keeps the file format
// independent of evaluation internals and makes a snapshot readable by
// any engine version that accepts the same raw inputs.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//   - MaxOpenConns(1): SQLite has one writer; a single connection
//     avoids SQLITE_BUSY churn
//
// Reads order by (row, col) so snapshots and replays are byte-for-byte
// reproducible.
package persist
