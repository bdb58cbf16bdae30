package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/persist"
)

// openWorkbook opens the database at path and replays it into a fresh
// engine whose pass clock resumes from the saved sequence. The caller
// owns the returned store.
func openWorkbook(ctx context.Context, path string) (*persist.Store, *engine.Engine, error) {
	st, err := persist.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	seq, err := st.PassSeq(ctx)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to read pass sequence", err)
	}
	e := engine.New(engine.Config{}, engine.WithClock(engine.NewClockAt(seq)))
	if err := st.Load(ctx, e); err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to load workbook", err)
	}
	return st, e, nil
}

// requireDatabase rejects paths that do not exist yet, for commands
// that only read an existing workbook.
func requireDatabase(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	return nil
}
