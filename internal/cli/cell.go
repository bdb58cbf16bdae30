package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cellgrid/cellgrid/internal/persist"
	"github.com/cellgrid/cellgrid/internal/sheet"
)

// CellOptions holds flags shared by the cell commands.
type CellOptions struct {
	*RootOptions
	Database string
	NoRecalc bool
}

// CellInfo is the JSON shape for a single cell.
type CellInfo struct {
	Cell    string `json:"cell"`
	Raw     string `json:"raw,omitempty"`
	Value   string `json:"value"`
	Formula bool   `json:"formula,omitempty"`
}

// SheetInfo is the JSON shape for a whole-sheet listing.
type SheetInfo struct {
	UsedRange string     `json:"used_range,omitempty"`
	Count     int        `json:"count"`
	Cells     []CellInfo `json:"cells"`
}

// EditResult is the JSON shape for a completed edit.
type EditResult struct {
	Cell      string `json:"cell"`
	Raw       string `json:"raw,omitempty"`
	Value     string `json:"value,omitempty"`
	Evaluated int    `json:"evaluated"`
	Changed   int    `json:"changed"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get [cell]",
		Short: "Read cells from a workbook database",
		Long: `Read the computed value of one cell, or list the whole sheet.

With a cell address the command prints its display value. Without one
it prints every stored cell with its raw input and value.

Examples:
  cellgrid get --db book.db B2
  cellgrid get --db book.db
  cellgrid get --db book.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getCells(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to workbook database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func getCells(opts *CellOptions, args []string, cmd *cobra.Command) error {
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

	out := cmd.OutOrStdout()
	f := &OutputFormatter{Format: opts.Format, Writer: out, Verbose: opts.Verbose}

	if len(args) == 1 {
		c, err := sheet.ParseA1(args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid cell %q", args[0]), err)
		}
		cv, ok := e.Cell(c)
		if opts.Format == "json" {
			info := CellInfo{Cell: c.A1()}
			if ok {
				info.Raw, info.Value, info.Formula = cv.Raw, displayValue(cv.Value), cv.Formula
			}
			return f.Success(info)
		}
		fmt.Fprintln(out, displayValue(cv.Value))
		return nil
	}

	cells := e.Cells()
	if opts.Format == "json" {
		info := SheetInfo{Count: len(cells), Cells: make([]CellInfo, len(cells))}
		if r, ok := e.UsedRange(); ok {
			info.UsedRange = r.A1()
		}
		for i, cv := range cells {
			info.Cells[i] = CellInfo{
				Cell:    cv.Coord.A1(),
				Raw:     cv.Raw,
				Value:   displayValue(cv.Value),
				Formula: cv.Formula,
			}
		}
		return f.Success(info)
	}

	if len(cells) == 0 {
		fmt.Fprintln(out, "empty workbook")
		return nil
	}
	renderCellTable(out, cells, writerWidth(out))
	if r, ok := e.UsedRange(); ok {
		fmt.Fprintf(out, "\n%d cells, used range %s\n", len(cells), r.A1())
	}
	return nil
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <cell> <input>",
		Short: "Write a cell and recompute",
		Long: `Write raw input to a cell and recompute its dependents.

Input starting with "=" stores a formula; anything else is typed the
way sheet entry types it (number, boolean, error, text; a leading
apostrophe forces text). The database is created when missing.

With --no-recalc the raw input is written straight to the database
without loading the workbook; values settle on the next load.

Examples:
  cellgrid set --db book.db A1 42
  cellgrid set --db book.db B2 '=SUM(A1:A9)'
  cellgrid set --db book.db --no-recalc C1 '=A1*2'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setCell(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to workbook database (required)")
	cmd.Flags().BoolVar(&opts.NoRecalc, "no-recalc", false, "write the raw input without recomputing")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func setCell(opts *CellOptions, label, input string, cmd *cobra.Command) error {
	c, err := sheet.ParseA1(label)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid cell %q", label), err)
	}
	out := cmd.OutOrStdout()
	f := &OutputFormatter{Format: opts.Format, Writer: out, Verbose: opts.Verbose}

	if opts.NoRecalc {
		st, err := persist.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		if err := st.WriteCell(cmd.Context(), c, input); err != nil {
			return WrapExitError(ExitCommandError, "failed to write cell", err)
		}
		if opts.Format == "json" {
			return f.Success(EditResult{Cell: c.A1(), Raw: input})
		}
		fmt.Fprintf(out, "staged %s\n", c.A1())
		return nil
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

	if err := e.Input(c, input); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("set %s", c.A1()), err)
	}
	if err := st.Save(cmd.Context(), e); err != nil {
		return WrapExitError(ExitCommandError, "failed to save workbook", err)
	}

	stats := e.LastPassStats()
	cv, _ := e.Cell(c)
	if opts.Format == "json" {
		return f.Success(EditResult{
			Cell:      c.A1(),
			Raw:       cv.Raw,
			Value:     displayValue(cv.Value),
			Evaluated: stats.CellsEvaluated,
			Changed:   stats.Changed,
		})
	}
	fmt.Fprintf(out, "%s = %s\n", c.A1(), displayValue(cv.Value))
	if opts.Verbose {
		fmt.Fprintf(out, "pass %d: %d evaluated, %d changed\n", stats.Seq, stats.CellsEvaluated, stats.Changed)
	}
	return nil
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear <cell>",
		Short: "Clear a cell and recompute",
		Long: `Clear a cell and recompute its dependents.

Formulas that referenced the cell see it as empty afterwards. Clearing
a cell that is not set is a no-op.

Examples:
  cellgrid clear --db book.db B2
  cellgrid clear --db book.db --no-recalc B2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearCell(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to workbook database (required)")
	cmd.Flags().BoolVar(&opts.NoRecalc, "no-recalc", false, "delete the stored input without recomputing")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func clearCell(opts *CellOptions, label string, cmd *cobra.Command) error {
	if err := requireDatabase(opts.Database); err != nil {
		return err
	}
	c, err := sheet.ParseA1(label)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid cell %q", label), err)
	}
	out := cmd.OutOrStdout()
	f := &OutputFormatter{Format: opts.Format, Writer: out, Verbose: opts.Verbose}

	if opts.NoRecalc {
		st, err := persist.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		if err := st.DeleteCell(cmd.Context(), c); err != nil {
			return WrapExitError(ExitCommandError, "failed to delete cell", err)
		}
		if opts.Format == "json" {
			return f.Success(EditResult{Cell: c.A1()})
		}
		fmt.Fprintf(out, "cleared %s\n", c.A1())
		return nil
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

	if err := e.Clear(c); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("clear %s", c.A1()), err)
	}
	if err := st.Save(cmd.Context(), e); err != nil {
		return WrapExitError(ExitCommandError, "failed to save workbook", err)
	}

	stats := e.LastPassStats()
	if opts.Format == "json" {
		return f.Success(EditResult{
			Cell:      c.A1(),
			Evaluated: stats.CellsEvaluated,
			Changed:   stats.Changed,
		})
	}
	fmt.Fprintf(out, "cleared %s\n", c.A1())
	if opts.Verbose {
		fmt.Fprintf(out, "pass %d: %d evaluated, %d changed\n", stats.Seq, stats.CellsEvaluated, stats.Changed)
	}
	return nil
}
