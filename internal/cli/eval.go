package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/sheet"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Cells []string // seed cells, "A1=value"
}

// EvalResult is the JSON shape for a one-shot evaluation.
type EvalResult struct {
	Formula string `json:"formula"`
	Value   string `json:"value"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a formula in a scratch sheet",
		Long: `Evaluate a formula once without storing it anywhere.

The formula runs against an empty sheet unless --cell seeds values
first. Extra arguments are joined with spaces, so quoting the whole
formula is optional. Evaluation failures print as error values
(#DIV/0!, #REF!, ...); only unparseable input fails the command.

Examples:
  cellgrid eval '=SUM(1, 2, 3)'
  cellgrid eval --cell A1=10 --cell A2=4 '=A1/A2'
  cellgrid eval --format json '=IF(2 > 1, "yes", "no")'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return evalFormula(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Cells, "cell", nil, "seed a cell before evaluating (A1=value, repeatable)")

	return cmd
}

func evalFormula(opts *EvalOptions, formula string, cmd *cobra.Command) error {
	e := engine.New(engine.Config{})

	for _, spec := range opts.Cells {
		label, raw, ok := strings.Cut(spec, "=")
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --cell %q: want A1=value", spec))
		}
		c, err := sheet.ParseA1(label)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --cell %q", spec), err)
		}
		if err := e.Input(c, raw); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("seed cell %s", label), err)
		}
	}

	v, err := e.Evaluate(formula)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("cannot parse %q", formula), err)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		return f.Success(EvalResult{Formula: formula, Value: displayValue(v)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), displayValue(v))
	return nil
}
