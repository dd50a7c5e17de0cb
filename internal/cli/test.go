package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/todocheck/internal/harness"
	"github.com/roach88/todocheck/internal/logging"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern on the file name)
	Cases  string // case filter passed to the runner
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML suites with golden traces",
		Long: `Run declarative YAML suites against the in-process application.

Each scenario runs its cases, checks its assertions and, when
golden/<file>.golden exists next to it, compares the canonical trace.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  todocheck test ./scenarios
  todocheck test ./scenarios --filter "routing*"
  todocheck test ./scenarios --update
  todocheck test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Cases, "cases", "", "run only cases whose full name matches")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	out := newFormatter(cmd, opts.RootOptions)
	p := newPainter(out.Writer, opts.NoColor)
	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}

	if len(files) == 0 && out.Format != "json" {
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}

	for _, file := range files {
		res := runScenarioFile(cmd, opts, file)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if out.Format != "json" {
			writeScenarioText(out, p, res)
		}
	}

	if out.Format == "json" {
		var failed *CLIError
		if result.Failed > 0 {
			failed = &CLIError{Code: "E_TEST_FAILED", Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
		}
		if err := out.Result(result, failed, ""); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out.Writer)
		fmt.Fprintf(out.Writer, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles lists the scenario files in dir whose base name (without
// extension) matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	files, err := harness.ScenarioFiles(dir)
	if err != nil || filter == "" {
		return files, err
	}
	if _, err := filepath.Match(filter, ""); err != nil {
		return nil, fmt.Errorf("invalid filter pattern: %w", err)
	}
	var matched []string
	for _, f := range files {
		if ok, _ := filepath.Match(filter, scenarioBase(f)); ok {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

func scenarioBase(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioBase(scenarioFile)+".golden")
}

// runScenarioFile executes one scenario file and returns the result.
func runScenarioFile(cmd *cobra.Command, opts *TestOptions, file string) ScenarioResult {
	res := ScenarioResult{Name: scenarioBase(file), File: file}
	fail := func(format string, args ...any) ScenarioResult {
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
		return res
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	res.Name = scenario.Name

	result, err := harness.Run(commandContext(cmd), scenario, harness.Options{
		Filter: opts.Cases,
		Logger: logging.New(cmd.ErrOrStderr(), opts.Verbose),
	})
	if err != nil {
		return fail("execution failed: %v", err)
	}
	res.Pass = result.Pass
	res.Errors = append(res.Errors, result.Errors...)

	lines, err := result.Trace.MarshalLines()
	if err != nil {
		return fail("failed to marshal trace: %v", err)
	}

	goldenPath := goldenFilePath(file)
	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return fail("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, lines, 0o644); err != nil {
			return fail("failed to update golden file: %v", err)
		}
		res.Golden = "updated"
		return res
	}

	want, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.Golden = "missing"
	case err != nil:
		return fail("failed to read golden file: %v", err)
	case !bytes.Equal(want, lines):
		res.Golden = "mismatch"
		return fail("trace does not match %s (run with --update to regenerate)", goldenPath)
	default:
		res.Golden = "match"
	}
	return res
}

func writeScenarioText(out *OutputFormatter, p *painter, res ScenarioResult) {
	mark := p.pass("PASS")
	if !res.Pass {
		mark = p.fail("FAIL")
	}
	line := fmt.Sprintf("%s %s", mark, res.Name)
	switch res.Golden {
	case "updated":
		line += " (golden updated)"
	case "missing":
		line += p.faint(" (no golden file)")
	}
	fmt.Fprintln(out.Writer, line)
	for _, e := range res.Errors {
		fmt.Fprintf(out.Writer, "     %s\n", indent(e, "     "))
	}
	out.VerboseLog("scenario %s: %s", res.Name, res.File)
}
