package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/roach88/peerdb/internal/sqlerr"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the statement reached the database and failed
	ExitCommandError = 2 // bad flags, configuration, or unknown database or table
)

// ExitError carries the process exit code for a failed command. Commands
// have already reported it, so main only exits with Code.
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
	return WrapExitError(code, message, nil)
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the ExitError in err's chain, ExitSuccess
// for nil and ExitFailure for any other error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes reported in CLIError.Code, one per error kind.
const (
	ErrCodeGeneric       = "E001" // Unclassified error
	ErrCodeConfiguration = "E002" // Missing or invalid configuration
	ErrCodeContract      = "E003" // API misuse, bad arguments
	ErrCodeConstraint    = "E101" // Constraint violation
	ErrCodeDeadlock      = "E102" // Deadlock
	ErrCodeTooManyRows   = "E103" // More rows than expected
	ErrCodePersistence   = "E104" // Other engine error
)

// ErrorCode maps err to an error code by its kind.
func ErrorCode(err error) string {
	switch sqlerr.KindOf(err) {
	case sqlerr.KindConfiguration:
		return ErrCodeConfiguration
	case sqlerr.KindContract:
		return ErrCodeContract
	case sqlerr.KindConstraintViolation:
		return ErrCodeConstraint
	case sqlerr.KindDeadlock:
		return ErrCodeDeadlock
	case sqlerr.KindTooManyRows:
		return ErrCodeTooManyRows
	case sqlerr.KindPersistence:
		return ErrCodePersistence
	default:
		return ErrCodeGeneric
	}
}

// exitCodeFor maps err to ExitCommandError for usage and configuration
// problems and ExitFailure for everything else.
func exitCodeFor(err error) int {
	switch sqlerr.KindOf(err) {
	case sqlerr.KindConfiguration, sqlerr.KindContract:
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// OutputFormatter writes command results and failures as text or as a
// CLIResponse JSON document.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; Writer when nil
	Verbose   bool
}

// CLIResponse is the JSON document written for every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" | "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failure inside a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // one of the ErrCode constants
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success writes data. Text output uses WriteText when data provides it.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if tw, ok := data.(textWriter); ok {
		return tw.WriteText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure. Text output shows details only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		resp := CLIResponse{Status: "error", Error: &CLIError{Code: code, Message: message, Details: details}}
		return json.NewEncoder(f.Writer).Encode(resp)
	}
	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", details)
		return err
	}
	return nil
}

// Fail reports err and returns it wrapped in an ExitError whose code
// follows the error kind.
func (f *OutputFormatter) Fail(message string, err error) error {
	var details any
	var se *sqlerr.Error
	if errors.As(err, &se) && (se.SQLState != "" || se.VendorCode != 0) {
		details = map[string]any{"sqlstate": se.SQLState, "vendor_code": se.VendorCode}
	}
	if outErr := f.Error(ErrorCode(err), fmt.Sprintf("%s: %v", message, err), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exitCodeFor(err), message, err)
}

// VerboseLog writes a diagnostic line with --verbose. It never goes to
// Writer when ErrWriter is set, so JSON output stays parseable.
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

// textWriter is implemented by results with a custom text rendering.
type textWriter interface {
	WriteText(w io.Writer) error
}
