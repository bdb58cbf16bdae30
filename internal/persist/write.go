package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/sheet"
)

// metaPassSeq records the engine's pass sequence at save time, so a
// reloaded workbook continues its pass numbering instead of restarting
// at zero.
const metaPassSeq = "pass_seq"

// Save replaces the stored snapshot with the engine's current cells.
// The whole snapshot is written in one transaction; a failed save
// leaves the previous snapshot intact.
func (s *Store) Save(ctx context.Context, e *engine.Engine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cells"); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (row, col, raw_input) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	defer stmt.Close()

	for _, cv := range e.Cells() {
		if _, err := stmt.ExecContext(ctx, cv.Coord.Row, cv.Coord.Col, cv.Raw); err != nil {
			return fmt.Errorf("save cell %s: %w", cv.Coord.A1(), err)
		}
	}

	seq := strconv.FormatInt(e.LastPassStats().Seq, 10)
	if err := setMeta(ctx, tx, metaPassSeq, seq); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// WriteCell upserts one cell's raw input without touching the rest of
// the snapshot.
func (s *Store) WriteCell(ctx context.Context, c sheet.Coord, raw string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cells (row, col, raw_input) VALUES (?, ?, ?)
		ON CONFLICT(row, col) DO UPDATE SET raw_input = excluded.raw_input
	`, c.Row, c.Col, raw)
	if err != nil {
		return fmt.Errorf("write cell %s: %w", c.A1(), err)
	}
	return nil
}

// DeleteCell removes one cell from the snapshot. Deleting an absent
// cell is a no-op.
func (s *Store) DeleteCell(ctx context.Context, c sheet.Coord) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cells WHERE row = ? AND col = ?", c.Row, c.Col)
	if err != nil {
		return fmt.Errorf("delete cell %s: %w", c.A1(), err)
	}
	return nil
}

// execer covers *sql.DB and *sql.Tx for the meta helpers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, db execer, key, val string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO workbook_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, val)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}
