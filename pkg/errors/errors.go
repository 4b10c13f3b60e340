// Package errors provides the coded error type used across mrtbatch.
// Every failure carries a Kind (argument, validation, parse, io) so the
// driver can decide what to report and how to exit.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Kind groups error codes into the four failure families.
type Kind string

const (
	KindArgument   Kind = "argument"
	KindValidation Kind = "validation"
	KindParse      Kind = "parse"
	KindIO         Kind = "io"
	KindUnknown    Kind = "unknown"
)

// Code identifies an error for programmatic handling.
type Code string

const (
	// Argument errors (1xx)
	CodeMissingArgument   Code = "E101"
	CodeInvalidArgument   Code = "E102"
	CodeConflictingInputs Code = "E103"
	CodeMissingInput      Code = "E104"

	// Validation errors (2xx)
	CodeNotFound         Code = "E201"
	CodeWrongType        Code = "E202"
	CodeMissingMarker    Code = "E203"
	CodeInvalidExtension Code = "E204"
	CodeInvalidSpectral  Code = "E205"
	CodeEmptyCatalog     Code = "E206"
	CodeInvalidConfig    Code = "E207"

	// Parse errors (3xx)
	CodeBadFilename Code = "E301"
	CodeBadListFile Code = "E302"

	// I/O errors (4xx)
	CodeReadFailed  Code = "E401"
	CodeWriteFailed Code = "E402"
	CodeCreateDir   Code = "E403"
	CodeCloseFailed Code = "E404"

	CodeUnknown Code = "E999"
)

// Kind returns the family a code belongs to.
func (c Code) Kind() Kind {
	if len(c) < 2 {
		return KindUnknown
	}
	switch c[1] {
	case '1':
		return KindArgument
	case '2':
		return KindValidation
	case '3':
		return KindParse
	case '4':
		return KindIO
	default:
		return KindUnknown
	}
}

// MRTError is the base error type for all mrtbatch errors.
type MRTError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *MRTError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		if msg := e.Cause.Error(); msg != "" {
			sb.WriteString(": ")
			sb.WriteString(msg)
		}
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *MRTError) Unwrap() error {
	return e.Cause
}

// Is matches another MRTError by code.
func (e *MRTError) Is(target error) bool {
	if t, ok := target.(*MRTError); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the failure family of the error.
func (e *MRTError) Kind() Kind {
	return e.Code.Kind()
}

// WithContext adds context to the error.
func (e *MRTError) WithContext(key string, value interface{}) *MRTError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new MRTError.
func New(code Code, message string) *MRTError {
	return &MRTError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Newf creates a new MRTError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *MRTError {
	return &MRTError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *MRTError {
	if err == nil {
		return nil
	}

	return &MRTError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *MRTError {
	if err == nil {
		return nil
	}

	return &MRTError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *MRTError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// NotFound reports a path that does not exist.
func NotFound(what, path string) *MRTError {
	return Newf(CodeNotFound, "could not find %s %q", what, path)
}

// WriteFailed reports a failed write with the cause text of the underlying error.
func WriteFailed(path string, err error) *MRTError {
	return Newf(CodeWriteFailed, "error writing to %s: %s", path, CauseText(err)).withCause(err)
}

// ReadFailed reports a failed read with the cause text of the underlying error.
func ReadFailed(path string, err error) *MRTError {
	return Newf(CodeReadFailed, "error reading from %s: %s", path, CauseText(err)).withCause(err)
}

// withCause records the cause without repeating it in Error().
func (e *MRTError) withCause(err error) *MRTError {
	e.Cause = silentCause{err}
	return e
}

// silentCause keeps errors.Is/As working while Error() already carries the text.
type silentCause struct{ err error }

func (s silentCause) Error() string { return "" }
func (s silentCause) Unwrap() error { return s.err }

// CauseText returns the message of err, or "unknown" when there is none.
func CauseText(err error) string {
	if err == nil {
		return "unknown"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	if inner := errors.Unwrap(err); inner != nil {
		return CauseText(inner)
	}
	return "unknown"
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var mErr *MRTError
	if errors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var mErr *MRTError
	if errors.As(err, &mErr) {
		return mErr.Code
	}
	return CodeUnknown
}

// KindOf extracts the failure family from an error.
func KindOf(err error) Kind {
	return GetCode(err).Kind()
}

// IsKind reports whether err belongs to the given family.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
