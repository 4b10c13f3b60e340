// Package pathconv rewrites file system paths between Windows, Cygwin and
// POSIX conventions and picks the line ending and delete command for each
// kind of generated script.
//
// Every function here is a pure string transform: malformed input is passed
// through unchanged rather than rejected.
package pathconv

import (
	"fmt"
	"runtime"
	"strings"
)

const cygdrivePrefix = "/cygdrive/"

// ScriptType selects the flavor of the generated command script.
type ScriptType int

const (
	// ScriptNotDefined means the host default has not been applied yet.
	ScriptNotDefined ScriptType = iota
	// ScriptBatch is a Windows .bat file: drive letters, backslashes, CRLF.
	ScriptBatch
	// ScriptScript is a POSIX shell script: no drive letters, forward slashes.
	ScriptScript
	// ScriptCScript is a shell script that keeps drive letters (Cygwin).
	ScriptCScript
)

func (t ScriptType) String() string {
	switch t {
	case ScriptBatch:
		return "BATCH"
	case ScriptScript:
		return "SCRIPT"
	case ScriptCScript:
		return "CSCRIPT"
	default:
		return "NOT_DEFINED"
	}
}

// UsesDriveLetters reports whether paths in this script type keep a drive prefix.
func (t ScriptType) UsesDriveLetters() bool {
	return t == ScriptBatch || t == ScriptCScript
}

// ParseScriptType parses batch, script or cscript, ignoring case.
// The empty string yields ScriptNotDefined.
func ParseScriptType(s string) (ScriptType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ScriptNotDefined, nil
	case "BATCH":
		return ScriptBatch, nil
	case "SCRIPT":
		return ScriptScript, nil
	case "CSCRIPT":
		return ScriptCScript, nil
	default:
		return ScriptNotDefined, fmt.Errorf("valid values are BATCH, SCRIPT, or CSCRIPT, but found %q", s)
	}
}

// Host describes the operating system the generator runs on. It is a value
// rather than a global so that Windows and Mac behavior can be exercised
// from any machine.
type Host struct {
	// OS is a GOOS value such as "windows", "darwin" or "linux".
	OS string
}

// CurrentHost returns the Host for the running process.
func CurrentHost() Host {
	return Host{OS: runtime.GOOS}
}

// IsWindows reports whether the host uses Windows path conventions.
func (h Host) IsWindows() bool {
	return strings.EqualFold(h.OS, "windows")
}

// IsMac reports whether the host is macOS.
func (h Host) IsMac() bool {
	return strings.EqualFold(h.OS, "darwin")
}

// Separator returns the host's path separator.
func (h Host) Separator() string {
	if h.IsWindows() {
		return `\`
	}
	return "/"
}

// DefaultScriptType returns BATCH on Windows and SCRIPT elsewhere.
func (h Host) DefaultScriptType() ScriptType {
	if h.IsWindows() {
		return ScriptBatch
	}
	return ScriptScript
}

// LineEnding returns CRLF for batch files, CR on a Mac host and LF otherwise.
func (h Host) LineEnding(t ScriptType) string {
	if t == ScriptBatch {
		return "\r\n"
	}
	if h.IsMac() {
		return "\r"
	}
	return "\n"
}

// ToOSPath converts path to the host's native form. On Windows a Cygwin
// /cygdrive/x/ prefix becomes x: and separators become backslashes; elsewhere
// a leading drive letter is dropped.
func (h Host) ToOSPath(path string) string {
	path = NormalizeSlashes(path)
	if h.IsWindows() {
		path = cygdriveToDrive(path)
		return strings.ReplaceAll(path, "/", `\`)
	}
	return stripDrive(path)
}

// EnsureTrailingSeparator appends the host separator unless path already
// ends with either separator.
func (h Host) EnsureTrailingSeparator(path string) string {
	if HasTrailingSeparator(path) {
		return path
	}
	return path + h.Separator()
}

// NormalizeSlashes rewrites backslashes to forward slashes.
func NormalizeSlashes(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

// HasTrailingSeparator reports whether path ends with / or \.
func HasTrailingSeparator(path string) bool {
	return strings.HasSuffix(path, "/") || strings.HasSuffix(path, `\`)
}

// ToScriptPath returns the directory path as it must appear inside a script
// of type t. The result uses forward slashes and always ends with one.
// BATCH and CSCRIPT turn /cygdrive/x/ into x:, SCRIPT drops drive letters
// and the /cygdrive/x prefix.
func ToScriptPath(path string, t ScriptType) string {
	if !HasTrailingSeparator(path) {
		path += "/"
	}
	path = NormalizeSlashes(path)

	switch {
	case t.UsesDriveLetters():
		path = cygdriveToDrive(path)
	case t == ScriptScript:
		path = stripDrive(path)
		path = stripCygdrive(path)
	}
	return path
}

// MosaicPath builds the full path of one input file as written into a mosaic
// parameter file: the script-adapted directory, the file name, backslashes
// for BATCH and CSCRIPT, and quotes when the result contains a space.
func MosaicPath(dir, file string, t ScriptType) string {
	full := ToScriptPath(dir, t) + file
	if t.UsesDriveLetters() {
		full = strings.ReplaceAll(full, "/", `\`)
	}
	return QuoteIfSpaces(full)
}

// QuoteIfSpaces wraps s in double quotes when it contains a space.
func QuoteIfSpaces(s string) string {
	if strings.Contains(s, " ") {
		return `"` + s + `"`
	}
	return s
}

// RemoveCommand returns the shell command that deletes a file.
func RemoveCommand(t ScriptType) string {
	if t == ScriptBatch {
		return "del"
	}
	return "rm"
}

// hasCygdrive reports whether path starts with /cygdrive/ followed by at
// least one character.
func hasCygdrive(path string) bool {
	return len(path) > len(cygdrivePrefix) &&
		strings.EqualFold(path[:len(cygdrivePrefix)], cygdrivePrefix)
}

// cygdriveToDrive turns /cygdrive/c/data into c:/data.
func cygdriveToDrive(path string) string {
	if !hasCygdrive(path) {
		return path
	}
	n := len(cygdrivePrefix)
	return path[n:n+1] + ":" + path[n+1:]
}

// stripCygdrive turns /cygdrive/c/data into /data.
func stripCygdrive(path string) string {
	if !hasCygdrive(path) {
		return path
	}
	rest := path[len(cygdrivePrefix)+1:]
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest
}

// stripDrive drops a leading drive letter such as C:.
func stripDrive(path string) string {
	if hasDrive(path) {
		return path[2:]
	}
	return path
}

func hasDrive(path string) bool {
	if len(path) < 2 || path[1] != ':' {
		return false
	}
	c := path[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
