// Package prm reads resample parameter templates.
//
// A template is an ordinary resample parameter file in which three lines
// matter: the input file name, the output file name and the optional
// spectral subset. The first two are blanked so each interval can fill in
// its own names; the spectral subset is reduced to the selected-band form
// the resampler expects after mosaicking.
package prm

import (
	"io"
	"os"
	"strings"

	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/util"
)

// Marker names recognized in a template, matched case-insensitively.
const (
	InputMarker        = "INPUT_FILENAME"
	OutputMarker       = "OUTPUT_FILENAME"
	SpectralMarker     = "SPECTRAL_SUBSET"
	OrigSpectralMarker = "#ORIG_SPECTRAL_SUBSET"
)

// LineKind tags a template line with the role it plays when rendered.
type LineKind int

const (
	LinePlain LineKind = iota
	LineInput
	LineOutput
	LineSpectral
	LineOrigSpectral
)

func (k LineKind) String() string {
	switch k {
	case LinePlain:
		return "plain"
	case LineInput:
		return "input"
	case LineOutput:
		return "output"
	case LineSpectral:
		return "spectral"
	case LineOrigSpectral:
		return "orig-spectral"
	default:
		return "unknown"
	}
}

// Line is one template line after marker substitution.
type Line struct {
	Kind LineKind
	Text string
}

// Template is the parsed parameter template. It is immutable once Parse
// returns.
type Template struct {
	Path           string
	Lines          []Line
	OutputExt      string
	SpectralSubset string
}

// ReadFile parses the template at path.
func ReadFile(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mrterrors.NotFound("template file", path)
		}
		return nil, mrterrors.ReadFailed(path, err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		if me, ok := err.(*mrterrors.MRTError); ok {
			return nil, me.WithContext("file", path)
		}
		return nil, err
	}
	t.Path = path
	return t, nil
}

// Parse reads a template from r. It fails if a marker line is malformed or
// if the input or output marker never appears.
func Parse(r io.Reader) (*Template, error) {
	t := &Template{}
	var inputFound, outputFound bool

	sc := util.NewLineScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()

		if strings.HasPrefix(line, "#") {
			t.Lines = append(t.Lines, Line{Kind: LinePlain, Text: line})
			continue
		}

		upper := strings.ToUpper(line)
		switch {
		case strings.Contains(upper, InputMarker):
			t.Lines = append(t.Lines, Line{Kind: LineInput, Text: InputMarker + " = "})
			inputFound = true

		case strings.Contains(upper, OutputMarker):
			ext, err := outputExtension(line)
			if err != nil {
				return nil, err.WithContext("line", lineNo)
			}
			t.OutputExt = ext
			t.Lines = append(t.Lines, Line{Kind: LineOutput, Text: OutputMarker + " = "})
			outputFound = true

		case strings.Contains(upper, SpectralMarker):
			raw, ok := ExtractFromParentheses(line)
			if !ok {
				return nil, mrterrors.Newf(mrterrors.CodeInvalidSpectral,
					"could not determine the %s, possibly invalid format", SpectralMarker).
					WithContext("line", lineNo)
			}
			t.SpectralSubset = raw
			t.Lines = append(t.Lines,
				Line{Kind: LineSpectral, Text: SpectralMarker + " = (" + ReduceSpectralSubset(raw) + ")"},
				Line{Kind: LineOrigSpectral, Text: OrigSpectralMarker + " = (" + raw + ")"},
			)

		default:
			t.Lines = append(t.Lines, Line{Kind: LinePlain, Text: line})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, mrterrors.Wrap(err, mrterrors.CodeReadFailed, "error reading template")
	}

	if !inputFound {
		return nil, mrterrors.Newf(mrterrors.CodeMissingMarker, "could not find %s", InputMarker)
	}
	if !outputFound {
		return nil, mrterrors.Newf(mrterrors.CodeMissingMarker, "could not find %s", OutputMarker)
	}
	return t, nil
}

// outputExtension returns the text after the last '.' of line, which must
// be TIF, HDF or HDR in any case. The extension keeps its original case.
func outputExtension(line string) (string, *mrterrors.MRTError) {
	idx := strings.LastIndex(line, ".")
	if idx == -1 {
		return "", mrterrors.Newf(mrterrors.CodeInvalidExtension,
			"could not find %s's file extension", OutputMarker)
	}
	ext := strings.TrimSpace(line[idx+1:])
	switch strings.ToUpper(ext) {
	case "TIF", "HDF", "HDR":
		return ext, nil
	}
	return "", mrterrors.Newf(mrterrors.CodeInvalidExtension,
		"invalid %s's file extension %q, should be TIF, HDF, or HDR", OutputMarker, ext)
}

// Render returns the template text for one interval: input and output
// marker lines get inputFile and outputFile appended, every other line is
// returned as is.
func (t *Template) Render(inputFile, outputFile string) []string {
	out := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		switch l.Kind {
		case LineInput:
			out[i] = l.Text + inputFile
		case LineOutput:
			out[i] = l.Text + outputFile
		default:
			out[i] = l.Text
		}
	}
	return out
}

// HasSpectralSubset reports whether the template named a spectral subset.
func (t *Template) HasSpectralSubset() bool {
	return t.SpectralSubset != ""
}
