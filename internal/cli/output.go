package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cellgrid/cellgrid/internal/value"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Evaluation or scenario failure
	ExitCommandError = 2 // Command error (invalid cells, database not found, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// Response is the standard JSON envelope for CLI output.
type Response struct {
	Status string         `json:"status"`          // "ok" or "error"
	Data   any            `json:"data,omitempty"`  // success payload
	Error  *ResponseError `json:"error,omitempty"` // error details
}

// ResponseError is the error structure for CLI responses.
type ResponseError struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Failure outputs an error in the configured format.
func (f *OutputFormatter) Failure(message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error: &ResponseError{
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error: %s\n", message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// displayValue renders a cell value the way the sheet shows it; empty
// cells render as "".
func displayValue(v value.Value) string {
	if v == nil {
		return ""
	}
	return v.Display()
}
