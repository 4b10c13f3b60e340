// Package validation checks the files and directories a run refers to
// before anything is parsed.
package validation

import (
	"os"
	"path/filepath"

	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
)

// MaxPathLength is the maximum allowed path length.
const MaxPathLength = 4096

// Inputs names the paths of one run. Exactly one of ListFile and Directory
// is expected to be set.
type Inputs struct {
	ListFile  string
	Directory string
	Template  string
	OutputDir string
}

// ValidateFilePath rejects empty and overlong paths and returns the
// cleaned form.
func ValidateFilePath(path string) (string, error) {
	if path == "" {
		return "", mrterrors.New(mrterrors.CodeMissingArgument, "empty file path")
	}

	if len(path) > MaxPathLength {
		return "", mrterrors.New(mrterrors.CodeInvalidArgument, "path too long").
			WithContext("maxLength", MaxPathLength)
	}

	return filepath.Clean(path), nil
}

// ValidateInputFile checks that path exists and is a regular file. what
// names the file in messages, e.g. "file" or "prm file".
func ValidateInputFile(what, path string) error {
	clean, err := ValidateFilePath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(clean)
	if os.IsNotExist(err) {
		return mrterrors.NotFound(what, path)
	}
	if err != nil {
		return mrterrors.ReadFailed(path, err)
	}

	if !info.Mode().IsRegular() {
		return mrterrors.Newf(mrterrors.CodeWrongType, "%q is not a file", path).
			WithContext("expected", what)
	}
	return nil
}

// ValidateInputDir checks that path exists and is a directory.
func ValidateInputDir(path string) error {
	clean, err := ValidateFilePath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(clean)
	if os.IsNotExist(err) {
		return mrterrors.NotFound("directory", path)
	}
	if err != nil {
		return mrterrors.ReadFailed(path, err)
	}

	if !info.IsDir() {
		return mrterrors.Newf(mrterrors.CodeWrongType, "%q is not a directory", path)
	}
	return nil
}

// ValidateOutputDir accepts a missing directory, which is created later,
// but rejects an existing path that is not a directory.
func ValidateOutputDir(path string) error {
	if path == "" {
		return nil
	}

	clean, err := ValidateFilePath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(clean)
	if err == nil && !info.IsDir() {
		return mrterrors.Newf(mrterrors.CodeWrongType,
			"the output directory %q already exists but it is not a directory", path)
	}
	return nil
}

// ValidateInputs checks every path of a run and stops at the first failure.
func ValidateInputs(in Inputs) error {
	if in.ListFile != "" {
		if err := ValidateInputFile("file", in.ListFile); err != nil {
			return err
		}
	}

	if in.Directory != "" {
		if err := ValidateInputDir(in.Directory); err != nil {
			return err
		}
	}

	if err := ValidateInputFile("prm file", in.Template); err != nil {
		return err
	}

	return ValidateOutputDir(in.OutputDir)
}
