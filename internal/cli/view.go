package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cellgrid/cellgrid/internal/tui"
)

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	*RootOptions
	Database string
	ReadOnly bool
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse a workbook in the terminal",
		Long: `Open a workbook database in an interactive terminal viewer.

Arrow keys move the cursor and the formula bar shows the selected
cell's raw input. Enter edits the cell, x clears it, r recomputes
volatile functions. Edits are saved back to the database on quit
unless --readonly is set.

Example:
  cellgrid view --db book.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viewWorkbook(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to workbook database (required)")
	cmd.Flags().BoolVar(&opts.ReadOnly, "readonly", false, "discard edits on quit")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func viewWorkbook(opts *ViewOptions, cmd *cobra.Command) error {
	if err := requireDatabase(opts.Database); err != nil {
		return err
	}
	st, e, err := openWorkbook(cmd.Context(), opts.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	m := tui.New(e, filepath.Base(opts.Database))
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return WrapExitError(ExitFailure, "viewer failed", err)
	}

	if opts.ReadOnly {
		return nil
	}
	if fm, ok := final.(*tui.Model); ok && fm.Dirty() {
		if err := st.Save(cmd.Context(), e); err != nil {
			return WrapExitError(ExitCommandError, "failed to save workbook", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", opts.Database)
	}
	return nil
}
