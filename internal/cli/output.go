package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/backend"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // non-success outcome, failed scenario
	ExitCommandError = 2 // bad configuration, unreadable file, unknown resource
)

// Codes reported in CLIError for command errors.
const (
	ErrCodeGeneric  = "E001"
	ErrCodeConfig   = "E002"
	ErrCodeCatalog  = "E003"
	ErrCodeRequest  = "E004"
	ErrCodeDatabase = "E005"
)

// ExitError carries the process exit code for a failed command. Commands
// return it; main hands it to GetExitCode.
type ExitError struct {
	Code    int
	Message string
	Err     error

	// ErrCode classifies the failure in CLIError. Empty means ErrCodeGeneric.
	ErrCode string

	// reported is set once the failure has been written to the output, as
	// for outcomes and scenario summaries.
	reported bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// WithErrCode sets the CLIError code reported for e.
func (e *ExitError) WithErrCode(code string) *ExitError {
	e.ErrCode = code
	return e
}

func (e *ExitError) errCode() string {
	if e.ErrCode == "" {
		return ErrCodeGeneric
	}
	return e.ErrCode
}

// reportedFailure returns an ExitFailure whose details are already on the
// output.
func reportedFailure(message string) *ExitError {
	e := NewExitError(ExitFailure, message)
	e.reported = true
	return e
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return WrapExitError(code, message, nil)
}

// WrapExitError returns an ExitError that wraps err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps an error returned by a command to a process exit code.
// Errors that are not ExitErrors, such as cobra usage errors, exit with
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// OutputFormatter renders command results as text or as one CLIResponse
// JSON object per line.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// CLIResponse is the envelope of every JSON result.
type CLIResponse struct {
	Status  string    `json:"status"` // "ok" or "error"
	Data    any       `json:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// CLIError describes a failed command or a non-success outcome.
type CLIError struct {
	Code    string `json:"code"` // E00x, or the outcome's response code
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) emit(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success writes data. Text output uses data's String method when it has one.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.emit(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a command error. Details are shown in text output only when
// verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.emit(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if details != nil && f.Verbose {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Outcome writes a backend outcome and returns an ExitError with
// ExitFailure for any non-success response.
//
// JSON output wraps the summary in a CLIResponse. Text output renders the
// summary as YAML followed by the document of a successful read.
func (f *OutputFormatter) Outcome(outcome backend.Outcome, traceId string) error {
	summary := outcome.Summary()
	ok := backend.IsSuccess(summary.Response)

	if err := f.writeSummary(summary, ok, traceId); err != nil {
		return err
	}
	if !ok {
		return reportedFailure(string(summary.Response))
	}
	return nil
}

func (f *OutputFormatter) writeSummary(summary backend.Summary, ok bool, traceId string) error {
	if f.isJSON() {
		if ok {
			return f.emit(CLIResponse{Status: "ok", Data: summary, TraceID: traceId})
		}
		return f.emit(CLIResponse{
			Status:  "error",
			TraceID: traceId,
			Error: &CLIError{
				Code:    string(summary.Response),
				Message: summary.FailureMessage,
				Details: summary,
			},
		})
	}

	data, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}
	if _, err := f.Writer.Write(data); err != nil {
		return err
	}
	if len(summary.Document) > 0 {
		_, err = fmt.Fprintf(f.Writer, "document: %s\n", summary.Document)
	}
	return err
}

// VerboseLog writes a diagnostic line to the error writer when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns the writer for diagnostics, which keeps JSON on
// Writer parseable.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
