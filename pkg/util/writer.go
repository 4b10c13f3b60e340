package util

import (
	"bufio"
	"os"

	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
)

// WriteLines creates path and writes each line followed by eol.
//
// A failure to create or write the file is returned as a write error. If
// the content was written but the file could not be closed, the returned
// error has code CodeCloseFailed and callers should treat it as a warning.
func WriteLines(path string, lines []string, eol string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return mrterrors.WriteFailed(path, err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = mrterrors.Wrapf(cerr, mrterrors.CodeCloseFailed, "error closing file: %s", path)
		}
	}()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return mrterrors.WriteFailed(path, err)
		}
		if _, err := w.WriteString(eol); err != nil {
			return mrterrors.WriteFailed(path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return mrterrors.WriteFailed(path, err)
	}
	return nil
}

// IsCloseWarning reports whether err only signals a failed close after a
// successful write.
func IsCloseWarning(err error) bool {
	return mrterrors.IsCode(err, mrterrors.CodeCloseFailed)
}
