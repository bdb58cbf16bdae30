package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/cobra"

	"github.com/cellgrid/cellgrid/internal/engine"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Database string
	Name     string
	Output   string
}

// SaveResult is the JSON shape for a completed export.
type SaveResult struct {
	Database string `json:"database"`
	Output   string `json:"output"`
	Cells    int    `json:"cells"`
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Export a database as a CUE workbook",
		Long: `Export the stored cells of a database as a CUE workbook file.

The output is the same shape load compiles, so save and load round
trip. Without --output the CUE source goes to stdout.

Examples:
  cellgrid save --db book.db -o budget.cue --name budget
  cellgrid save --db book.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveWorkbook(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to workbook database (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Name, "name", "workbook", "workbook name in the exported file")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func saveWorkbook(opts *SaveOptions, cmd *cobra.Command) error {
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

	cells := e.Cells()
	src := renderCUE(opts.Name, cells)

	// Raw inputs become CUE string literals; recompiling catches any
	// input the quoting cannot represent.
	if v := cuecontext.New().CompileString(src); v.Err() != nil {
		return WrapExitError(ExitFailure, "exported workbook is not valid CUE", v.Err())
	}

	if opts.Output == "" {
		fmt.Fprint(cmd.OutOrStdout(), src)
		return nil
	}
	if err := os.WriteFile(opts.Output, []byte(src), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write workbook", err)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		return f.Success(SaveResult{Database: opts.Database, Output: opts.Output, Cells: len(cells)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %d cells to %s\n", len(cells), opts.Output)
	return nil
}

// renderCUE renders stored cells as CUE source in the shape the load
// command compiles.
func renderCUE(name string, cells []engine.CellView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", strconv.Quote(name))
	b.WriteString("cells: {\n")
	for _, cv := range cells {
		fmt.Fprintf(&b, "\t%s: %s\n", cv.Coord.A1(), strconv.Quote(cv.Raw))
	}
	b.WriteString("}\n")
	return b.String()
}
