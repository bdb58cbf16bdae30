package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/persist"
	"github.com/cellgrid/cellgrid/internal/workbook"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database string
}

// LoadResult is the JSON shape for a completed load.
type LoadResult struct {
	Workbook  string `json:"workbook"`
	Name      string `json:"name"`
	Cells     int    `json:"cells"`
	UsedRange string `json:"used_range,omitempty"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <workbook.cue>",
		Short: "Compile a CUE workbook into a database",
		Long: `Compile a CUE workbook file, settle its cells, and save the result.

The workbook's settings (workers, calculation mode) drive the engine
that settles it. The database is created when missing and its previous
cells are replaced.

Example:
  cellgrid load --db book.db budget.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return loadWorkbook(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func loadWorkbook(opts *LoadOptions, path string, cmd *cobra.Command) error {
	slog.Info("compiling workbook", "path", path)
	wb, err := workbook.CompileFile(path)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compile workbook", err)
	}

	e := engine.New(engine.Config{
		Workers: wb.Settings.Workers,
		Mode:    wb.Settings.Mode,
	})
	if err := wb.Apply(e); err != nil {
		return WrapExitError(ExitFailure, "failed to apply workbook", err)
	}
	slog.Info("workbook settled", "name", wb.Name, "cells", e.CellCount())

	st, err := persist.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if err := st.Save(cmd.Context(), e); err != nil {
		return WrapExitError(ExitCommandError, "failed to save workbook", err)
	}

	res := LoadResult{Workbook: path, Name: wb.Name, Cells: e.CellCount()}
	if r, ok := e.UsedRange(); ok {
		res.UsedRange = r.A1()
	}
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		return f.Success(res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d cells from %s into %s\n", res.Cells, path, opts.Database)
	return nil
}
