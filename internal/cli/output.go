package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a remote refused us or the store failed
	ExitCommandError = 2 // bad invocation: flags, config, missing token, unreadable file
)

// ExitError carries the process exit code next to the error itself.
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode finds the ExitError in err's chain. Plain errors exit with
// ExitFailure.
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

// Response is the one document a command prints under --format json.
type Response struct {
	Status string         `json:"status"` // "ok" | "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    string `json:"code"` // AUTH_FAILED, REMOTE, COMMAND, FAILURE
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter prints command results as plain lines or as a Response.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // rejected input lines, and batch feedback under json
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) encode(r Response) error {
	return json.NewEncoder(f.Writer).Encode(r)
}

// Emit prints data as the JSON payload, or text as one line.
func (f *OutputFormatter) Emit(data any, text string) error {
	if f.isJSON() {
		return f.encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Error prints a failure. Text mode shows details only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message, Details: details},
		})
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

// FeedbackWriter is where drivers report each phone. Under json that is
// the diagnostic writer, so stdout holds nothing but the Response.
func (f *OutputFormatter) FeedbackWriter() io.Writer {
	if f.isJSON() {
		return f.Diag()
	}
	return f.Writer
}

// Diag returns ErrWriter, falling back to Writer.
func (f *OutputFormatter) Diag() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
