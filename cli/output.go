package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes of the commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // validation errors or a failed commit
	ExitCommandError = 2 // bad arguments, unreadable files, unknown dialect
)

// ExitError is an error carrying the exit code of a command.
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode returns the exit code for the error returned by a command.
// Errors that are not an ExitError exit with ExitCommandError, as cobra
// reports flag and argument errors that way.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope of command results.
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success writes data. In text mode, data is printed with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprint(f.Writer, data)
	return err
}

// Failure writes a failed result and returns it as an ExitError with the
// given code.
func (f *OutputFormatter) Failure(code int, data any, err error) error {
	if f.Format == "json" {
		if werr := json.NewEncoder(f.Writer).Encode(Response{Status: "error", Data: data, Error: err.Error()}); werr != nil {
			return werr
		}
	} else if data != nil {
		if _, werr := fmt.Fprint(f.Writer, data); werr != nil {
			return werr
		}
	}
	return WrapExitError(code, "failed", err)
}
