package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/phasetrack/internal/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation rejected (validation, not found, conflict, restricted, bad credentials)
	ExitCommandError = 2 // Command error (bad config, database unavailable, storage failure)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeConfig          = "E002" // Configuration could not be loaded
	ErrCodeStoreOpen       = "E003" // Database could not be opened
	ErrCodeInput           = "E004" // Malformed command input
	ErrCodePlan            = "E005" // Plan file could not be loaded
	ErrCodeValidation      = "E010"
	ErrCodeNotFound        = "E011"
	ErrCodeConflict        = "E012"
	ErrCodeRestricted      = "E013"
	ErrCodeUnauthenticated = "E014"
	ErrCodeStoreFailure    = "E015"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// ErrCode is the E-code reported to the user. Empty means derive it
	// from Err.
	ErrCode string
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
	if domain.IsStoreFailure(err) {
		return ExitCommandError
	}
	return ExitFailure
}

// classifyError returns the E-code and exit code for err.
func classifyError(err error) (string, int) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.ErrCode != "" {
		return exitErr.ErrCode, exitErr.Code
	}

	code := ErrCodeGeneric
	switch domain.KindOf(err) {
	case domain.KindValidation:
		code = ErrCodeValidation
	case domain.KindNotFound:
		code = ErrCodeNotFound
	case domain.KindConflict:
		code = ErrCodeConflict
	case domain.KindRestricted:
		code = ErrCodeRestricted
	case domain.KindUnauthenticated:
		code = ErrCodeUnauthenticated
	case domain.KindStoreFailure:
		code = ErrCodeStoreFailure
	}
	return code, GetExitCode(err)
}

// errorMessage returns the user-facing text for err. Domain errors carry
// their own message; storage causes are never shown.
func errorMessage(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err == nil {
			return exitErr.Message
		}
		return exitErr.Message + ": " + errorMessage(exitErr.Err)
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Kind    string `json:"kind,omitempty"`    // domain error kind, if any
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Emit writes data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Emit(data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	return text(f.Writer)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err through the formatter and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(err error) error {
	code, exit := classifyError(err)
	message := errorMessage(err)

	if f.Format == "json" {
		resp := CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		}
		if k := domain.KindOf(err); k != "" {
			resp.Error.Kind = string(k)
		}
		if encErr := json.NewEncoder(f.Writer).Encode(resp); encErr != nil {
			return WrapExitError(ExitCommandError, "writing output", encErr)
		}
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	}

	return &ExitError{Code: exit, Message: message, Err: err, ErrCode: code}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
