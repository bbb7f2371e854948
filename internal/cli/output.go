package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a check failed: invalid file, failing scenario, replay divergence
	ExitCommandError = 2 // the command could not run: bad flags, missing file or database
)

// Machine-readable codes for CLIError.Code.
const (
	ErrCodeGeneric    = "E_GENERIC"
	ErrCodeNotFound   = "E_NOT_FOUND"
	ErrCodeInvalid    = "E_INVALID"
	ErrCodeDiverged   = "E_DIVERGED"
	ErrCodeTestFailed = "E_TEST_FAILED"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried anywhere in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every --format json result.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// CLIError describes why a command reported status "error".
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as CLIResponse JSON.
// Diagnostics go to ErrWriter so they never interleave with a JSON document.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// JSON reports whether results are written as JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Respond writes resp as indented JSON.
func (f *OutputFormatter) Respond(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Success writes data: as an "ok" envelope in JSON, or on its own line.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return f.Respond(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Failure writes an "error" envelope that still carries the command's
// result, so callers can see which items failed. Text output is left to the
// caller.
func (f *OutputFormatter) Failure(code, message string, data any) error {
	return f.Respond(CLIResponse{
		Status: "error",
		Data:   data,
		Error:  &CLIError{Code: code, Message: message},
	})
}

// Error reports a command that produced no result.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.Respond(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line under --verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
