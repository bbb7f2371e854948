package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/nbsim/internal/document"
	"github.com/roach88/nbsim/internal/harness"
)

// Kinds of file accepted by validate.
const (
	FileKindNotebook = "notebook"
	FileKindScenario = "scenario"
)

// ValidationError is one problem found in a file.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	File   string            `json:"file"`
	Kind   string            `json:"kind"`
	Valid  bool              `json:"valid"`
	Cells  int               `json:"cells,omitempty"`
	Steps  int               `json:"steps,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a notebook document or scenario",
		Long: `Validate a notebook document (.yaml, .yml, .cue) or a harness scenario.

A YAML file with a top-level "steps" key is validated as a scenario,
including the notebook it seeds from. Anything else is validated as a
notebook document against the embedded schema.

Exit codes:
  0 - File is valid
  1 - File is invalid
  2 - Command error (file not found, etc.)

Examples:
  nbsim validate ./notebooks/welcome.yaml
  nbsim validate ./scenarios/run_all_basic.yaml --format json`,
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
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path))
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}

	result := ValidationResult{File: path, Kind: detectFileKind(path, data)}
	formatter.VerboseLog("Validating %s as %s", path, result.Kind)

	switch result.Kind {
	case FileKindScenario:
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			result.Errors = append(result.Errors, toValidationError(err))
		} else {
			result.Steps = len(scenario.Steps)
		}
	default:
		doc, err := document.Load(path)
		if err != nil {
			result.Errors = append(result.Errors, toValidationError(err))
		} else {
			result.Cells = len(doc.Cells)
		}
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// detectFileKind reports whether a file is a scenario or a notebook document.
// Unparseable YAML is treated as a notebook so the loader reports the error.
func detectFileKind(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return FileKindNotebook
	}
	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return FileKindNotebook
	}
	if _, ok := probe["steps"]; ok {
		return FileKindScenario
	}
	return FileKindNotebook
}

// toValidationError extracts the position of a document load error when
// there is one.
func toValidationError(err error) ValidationError {
	verr := ValidationError{Code: ErrCodeInvalid, Message: err.Error()}
	var loadErr *document.LoadError
	if errors.As(err, &loadErr) {
		verr.Message = loadErr.Message
		if loadErr.Pos.IsValid() {
			verr.Line = loadErr.Pos.Line()
			verr.Column = loadErr.Pos.Column()
		}
	}
	return verr
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	switch result.Kind {
	case FileKindScenario:
		fmt.Fprintf(formatter.Writer, "✓ %s is a valid scenario (%d steps)\n", result.File, result.Steps)
	default:
		fmt.Fprintf(formatter.Writer, "✓ %s is a valid notebook (%d cells)\n", result.File, result.Cells)
	}
	return nil
}

// outputValidateError outputs an error that stopped validation altogether.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs the problems found in an invalid file.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	if formatter.JSON() {
		if err := formatter.Failure(result.Errors[0].Code, result.Errors[0].Message, result); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintf(formatter.Writer, "✗ %s is not a valid %s\n", result.File, result.Kind)
	fmt.Fprintln(formatter.Writer)

	for _, err := range result.Errors {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d, column %d\n", err.Line, err.Column)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return failed
}
