package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nlstn/go-rql"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitQueryError   = 1 // The query was rejected
	ExitCommandError = 2 // Bad flags, unreadable or invalid config
)

// ExitError carries the exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitQueryError if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitQueryError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// JSON reports whether output is machine readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data wrapped in an ok envelope. Text output is written by
// the commands themselves.
func (f *OutputFormatter) Success(data any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes err in the configured format. A *rql.ValidationError lists
// each of its problems as a detail.
func (f *OutputFormatter) Error(err error) {
	cliErr := &CLIError{Kind: rql.ErrorKind(err), Message: err.Error()}
	var verr *rql.ValidationError
	if errors.As(err, &verr) {
		cliErr.Message = fmt.Sprintf("invalid rules for model '%s'", verr.Model)
		for _, e := range verr.Errors {
			cliErr.Details = append(cliErr.Details, e.Error())
		}
	}

	if f.JSON() {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		_ = enc.Encode(CLIResponse{Status: "error", Error: cliErr})
		return
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", cliErr.Kind, cliErr.Message)
	for _, d := range cliErr.Details {
		fmt.Fprintf(f.Writer, "  - %s\n", d)
	}
}

// fail reports err and converts it into an ExitError with code.
func (f *OutputFormatter) fail(code int, err error) error {
	f.Error(err)
	return WrapExitError(code, rql.ErrorKind(err), err)
}
