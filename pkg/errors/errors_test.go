package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestCode_Kind(t *testing.T) {
	tests := []struct {
		code Code
		want Kind
	}{
		{CodeMissingArgument, KindArgument},
		{CodeMissingMarker, KindValidation},
		{CodeBadFilename, KindParse},
		{CodeCloseFailed, KindIO},
		{CodeUnknown, KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		if got := tt.code.Kind(); got != tt.want {
			t.Errorf("%q.Kind() = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestMRTError_Error(t *testing.T) {
	err := New(CodeMissingMarker, "could not find OUTPUT_FILENAME").
		WithContext("line", 4).
		WithContext("file", "t.prm")
	if got := err.Error(); got != "could not find OUTPUT_FILENAME (file=t.prm, line=4)" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(fs.ErrPermission, CodeCreateDir, "could not create directory: /x")
	if !strings.HasSuffix(wrapped.Error(), ": permission denied") {
		t.Errorf("wrapped Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, fs.ErrPermission) {
		t.Error("cause should be reachable with errors.Is")
	}
	if Wrap(nil, CodeCreateDir, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWriteFailed(t *testing.T) {
	err := WriteFailed("/out/mrtbatch", fs.ErrPermission)
	if err.Error() != "error writing to /out/mrtbatch: permission denied" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("cause lost")
	}

	if got := ReadFailed("/in", errors.New("")).Error(); got != "error reading from /in: unknown" {
		t.Errorf("empty cause = %q", got)
	}
}

func TestCodeHelpers(t *testing.T) {
	err := fmt.Errorf("stage: %w", NotFound("prm file", "t.prm"))

	if !IsCode(err, CodeNotFound) || IsCode(err, CodeWrongType) {
		t.Error("IsCode should see through wrapping")
	}
	if !IsKind(err, KindValidation) {
		t.Errorf("KindOf = %s", KindOf(err))
	}
	if GetCode(errors.New("plain")) != CodeUnknown {
		t.Error("plain errors have no code")
	}
	if !errors.Is(err, &MRTError{Code: CodeNotFound}) {
		t.Error("errors.Is should match by code")
	}
	if !strings.Contains(err.Error(), `could not find prm file "t.prm"`) {
		t.Errorf("message = %q", err.Error())
	}
}

func TestCauseText(t *testing.T) {
	if CauseText(nil) != "unknown" {
		t.Error("nil cause should be unknown")
	}
	if CauseText(fmt.Errorf("%w", errors.New("disk full"))) != "disk full" {
		t.Error("message not used")
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.HasErrors() || m.Combined() != nil {
		t.Fatal("empty MultiError should combine to nil")
	}

	first := New(CodeCloseFailed, "error closing file: a")
	m.Add(first)
	m.Add(nil)
	if m.Combined() != first {
		t.Error("single error should be returned as is")
	}

	m.Add(New(CodeCloseFailed, "error closing file: b"))
	if !strings.HasPrefix(m.Combined().Error(), "2 errors occurred:") {
		t.Errorf("Combined() = %q", m.Combined().Error())
	}
}

func TestFormatStack(t *testing.T) {
	err := New(CodeUnknown, "boom")
	if !strings.Contains(err.FormatStack(), "TestFormatStack") {
		t.Errorf("stack should include the caller:\n%s", err.FormatStack())
	}
}
