package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/sheet"
)

// CellRecord is one stored (coordinate, raw_input) pair.
type CellRecord struct {
	Coord sheet.Coord
	Raw   string
}

// Cells returns every stored cell in (row, col) order.
func (s *Store) Cells(ctx context.Context) ([]CellRecord, error) {
	return s.queryCells(ctx, `
		SELECT row, col, raw_input FROM cells
		ORDER BY row ASC, col ASC
	`)
}

// CellsInRange returns the stored cells inside r in (row, col) order.
func (s *Store) CellsInRange(ctx context.Context, r sheet.Range) ([]CellRecord, error) {
	return s.queryCells(ctx, `
		SELECT row, col, raw_input FROM cells
		WHERE row BETWEEN ? AND ? AND col BETWEEN ? AND ?
		ORDER BY row ASC, col ASC
	`, r.Start.Row, r.End.Row, r.Start.Col, r.End.Col)
}

func (s *Store) queryCells(ctx context.Context, query string, args ...any) ([]CellRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	var out []CellRecord
	for rows.Next() {
		var rec CellRecord
		if err := rows.Scan(&rec.Coord.Row, &rec.Coord.Col, &rec.Raw); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return out, nil
}

// PassSeq returns the pass sequence recorded by the last Save, zero
// for a fresh database. Feed it to engine.NewClockAt so a reloaded
// engine continues the saved numbering.
func (s *Store) PassSeq(ctx context.Context) (int64, error) {
	val, ok, err := s.meta(ctx, metaPassSeq)
	if err != nil || !ok {
		return 0, err
	}
	seq, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse meta %q: %w", metaPassSeq, err)
	}
	return seq, nil
}

func (s *Store) meta(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM workbook_meta WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return val, true, nil
}

// Load replays the snapshot into e: literal inputs first, then
// formulas, then one recompute pass over the whole batch. The engine
// rebuilds values and the dependency graph by re-parsing; nothing
// derived is read from the database.
func (s *Store) Load(ctx context.Context, e *engine.Engine) error {
	records, err := s.Cells(ctx)
	if err != nil {
		return fmt.Errorf("load workbook: %w", err)
	}

	prev := e.Mode()
	e.SetMode(engine.Manual)
	defer e.SetMode(prev)

	formula := func(rec CellRecord) bool { return strings.HasPrefix(rec.Raw, "=") }
	for _, rec := range records {
		if formula(rec) {
			continue
		}
		if err := e.Input(rec.Coord, rec.Raw); err != nil {
			return fmt.Errorf("load cell %s: %w", rec.Coord.A1(), err)
		}
	}
	for _, rec := range records {
		if !formula(rec) {
			continue
		}
		if err := e.Input(rec.Coord, rec.Raw); err != nil {
			return fmt.Errorf("load cell %s: %w", rec.Coord.A1(), err)
		}
	}
	e.Recalculate()
	return nil
}
