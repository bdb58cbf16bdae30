package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cellgrid CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cellgrid",
		Short: "cellgrid - reactive spreadsheet formula engine",
		Long: `A spreadsheet formula engine with dependency-driven recalculation.

Cells hold literals or formulas over A1-style references; edits recompute
exactly the affected cells. Workbooks persist to SQLite and can be seeded
from CUE files.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// configureLogging routes engine logs to stderr, at debug level when
// verbose is set.
func configureLogging(verbose bool) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
