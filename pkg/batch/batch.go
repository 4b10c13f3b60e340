// Package batch assembles and writes the command script that runs
// mrtmosaic and resample for every interval.
package batch

import (
	"github.com/mrtbatch/mrtbatch/pkg/interval"
	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
	"github.com/mrtbatch/mrtbatch/pkg/util"
)

// Tool names invoked by the generated script.
const (
	MosaicTool   = "mrtmosaic"
	ResampleTool = "resample"
)

// DefaultBaseName is the script name used when none is configured.
const DefaultBaseName = "mrtbatch"

// FileName returns the script file name for base, adding .bat for BATCH.
func FileName(base string, t pathconv.ScriptType) string {
	if base == "" {
		base = DefaultBaseName
	}
	if t == pathconv.ScriptBatch {
		return base + ".bat"
	}
	return base
}

// Commands returns the four script lines for one interval: mosaic, resample,
// delete of the intermediate file and a blank separator. spectralSubset is
// the raw band mask from the template; when set it is passed to mrtmosaic.
func Commands(iv *interval.Interval, spectralSubset string, t pathconv.ScriptType) []string {
	spectralArg := ""
	if spectralSubset != "" {
		spectralArg = `-s "` + spectralSubset + `" `
	}
	return []string{
		MosaicTool + " " + spectralArg + "-i " + iv.MosaicPrmName() + " -o " + iv.InputFileName(),
		ResampleTool + " -p " + iv.ResamplePrmName(),
		pathconv.RemoveCommand(t) + " " + iv.InputFileName(),
		"",
	}
}

// Script accumulates command lines across intervals in generation order.
type Script struct {
	Type  pathconv.ScriptType
	lines []string
}

// NewScript creates an empty script of type t.
func NewScript(t pathconv.ScriptType) *Script {
	return &Script{Type: t}
}

// Add appends the commands for iv.
func (s *Script) Add(iv *interval.Interval, spectralSubset string) {
	s.lines = append(s.lines, Commands(iv, spectralSubset, s.Type)...)
}

// Lines returns the accumulated lines.
func (s *Script) Lines() []string {
	return s.lines
}

// Len returns the number of lines.
func (s *Script) Len() int {
	return len(s.lines)
}

// WriteFile writes the script to path, terminating every line with the
// line ending host uses for the script type. A close failure after a
// successful write is returned as a CodeCloseFailed error; see
// util.IsCloseWarning.
func (s *Script) WriteFile(path string, host pathconv.Host) error {
	return util.WriteLines(path, s.lines, host.LineEnding(s.Type))
}
