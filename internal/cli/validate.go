package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/todocheck/internal/compiler"
	"github.com/roach88/todocheck/internal/harness"
)

// Codes of file-level problems reported by validate.
const (
	ErrCodeRead   = "E001" // file unreadable
	ErrCodeSchema = "E002" // CUE schema violation
	ErrCodeParse  = "E003" // YAML or scenario field error
)

// FileValidation is the outcome for one suite file.
type FileValidation struct {
	File   string                     `json:"file"`
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file-or-dir>",
		Short: "Check YAML suites without running them",
		Long: `Check YAML suites against the suite schema, then compile every step.

Reports every problem in every file rather than stopping at the first.

Examples:
  todocheck validate ./scenarios
  todocheck validate ./scenarios/routing.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	files, err := suiteFiles(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find suites", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no .yaml or .yml files in %s", path))
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, f := range files {
		formatter.VerboseLog("validating %s", f)
		fv := validateFile(f)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.Format == "json" {
		var failed *CLIError
		if !result.Valid {
			failed = &CLIError{Code: "E_INVALID", Message: "one or more suites are invalid"}
		}
		if err := formatter.Result(result, failed, ""); err != nil {
			return err
		}
	} else {
		p := newPainter(formatter.Writer, opts.NoColor)
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(formatter.Writer, "%s %s\n", p.pass("ok  "), fv.File)
				continue
			}
			fmt.Fprintf(formatter.Writer, "%s %s\n", p.fail("FAIL"), fv.File)
			for _, e := range fv.Errors {
				fmt.Fprintf(formatter.Writer, "     %s\n", e.Error())
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// suiteFiles resolves path to one file or the sorted suite files of a
// directory.
func suiteFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return harness.ScenarioFiles(path)
	}
	return []string{path}, nil
}

// validateFile runs the three checks in order. A schema violation stops
// there, since parsing would only restate it less precisely.
func validateFile(path string) FileValidation {
	fv := FileValidation{File: path}
	add := func(e compiler.ValidationError) {
		fv.Errors = append(fv.Errors, e)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		add(compiler.ValidationError{Field: "file", Message: err.Error(), Code: ErrCodeRead})
		return fv
	}

	if err := harness.ValidateSchema(filepath.Base(path), data); err != nil {
		add(schemaValidationError(err))
		return fv
	}

	scenario, err := harness.ParseScenario(data)
	if err != nil {
		add(compiler.ValidationError{Field: "scenario", Message: err.Error(), Code: ErrCodeParse})
		return fv
	}

	for _, e := range compiler.Validate(scenario.Root()) {
		add(e)
	}
	fv.Valid = len(fv.Errors) == 0
	return fv
}

func schemaValidationError(err error) compiler.ValidationError {
	var se *harness.SchemaError
	if errors.As(err, &se) {
		ve := compiler.ValidationError{Field: se.Field, Message: se.Message, Code: ErrCodeSchema}
		if se.Pos.IsValid() {
			ve.Line = se.Pos.Line()
		}
		return ve
	}
	return compiler.ValidationError{Field: "schema", Message: err.Error(), Code: ErrCodeSchema}
}
