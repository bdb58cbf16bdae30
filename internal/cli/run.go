package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cellgrid/cellgrid/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// RunReport holds the overall run result.
type RunReport struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>...",
		Short: "Run scenario files",
		Long: `Run YAML scenario files against a deterministic engine.

Each scenario seeds a sheet, applies its steps, and checks its
assertions. Scenarios marked golden are also compared against
golden/<name>.golden next to the scenario file.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  cellgrid run ./scenarios
  cellgrid run ./scenarios --filter "budget-*"
  cellgrid run ./scenarios/ripple.yaml --update
  cellgrid run ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to stat scenario path", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := findScenarioFiles(path, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return outputRunJSON(cmd, RunReport{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	report := RunReport{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		res := runScenarioFile(file, opts, cmd)
		report.Scenarios = append(report.Scenarios, res)
		if res.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, report)
	}
	return outputRunText(cmd, report)
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Golden files live under golden/ subdirectories.
			if info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenarioFile executes a single scenario file and returns its result.
func runScenarioFile(file string, opts *RunOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()

	fail := func(name string, errs ...string) ScenarioResult {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}
	pass := func(name, note string) ScenarioResult {
		if opts.Format != "json" {
			if note != "" {
				fmt.Fprintf(w, "✓ %s (%s)\n", name, note)
			} else {
				fmt.Fprintf(w, "✓ %s\n", name)
			}
		}
		return ScenarioResult{Name: name, Pass: true}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	res, err := harness.Execute(scenario)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}
	if !res.Passed() {
		return fail(scenario.Name, res.Failures...)
	}

	if !scenario.Golden {
		return pass(scenario.Name, "")
	}

	snap, err := harness.Snapshot(scenario.Name, res)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("snapshot failed: %v", err))
	}
	goldenPath := goldenFilePath(file)

	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return fail(scenario.Name, fmt.Sprintf("failed to create golden directory: %v", err))
		}
		if err := os.WriteFile(goldenPath, snap, 0o644); err != nil {
			return fail(scenario.Name, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return pass(scenario.Name, "golden updated")
	}

	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("failed to read golden file: %v", err))
	}
	if string(golden) != string(snap) {
		return fail(scenario.Name, "state does not match golden file (run with --update to regenerate)")
	}
	return pass(scenario.Name, "")
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// outputRunJSON outputs the run report as JSON.
func outputRunJSON(cmd *cobra.Command, report RunReport) error {
	response := Response{Status: "ok", Data: report}
	if report.Failed > 0 {
		response.Status = "error"
		response.Error = &ResponseError{
			Message: fmt.Sprintf("%d scenario(s) failed", report.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
	}
	return nil
}

// outputRunText outputs the run report as text.
func outputRunText(cmd *cobra.Command, report RunReport) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
