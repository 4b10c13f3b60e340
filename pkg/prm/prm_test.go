package prm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
)

const sampleTemplate = `# resample template
INPUT_FILENAME = /data/in.hdf

SPECTRAL_SUBSET = ( 1 0 1 0 )
SPATIAL_SUBSET_TYPE = INPUT_LAT_LONG
OUTPUT_FILENAME = /data/out.tif
RESAMPLING_TYPE = NEAREST_NEIGHBOR
`

func TestParse(t *testing.T) {
	tmpl, err := Parse(strings.NewReader(sampleTemplate))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if tmpl.OutputExt != "tif" {
		t.Errorf("OutputExt = %q, want tif", tmpl.OutputExt)
	}
	if tmpl.SpectralSubset != "1 0 1 0" {
		t.Errorf("SpectralSubset = %q, want %q", tmpl.SpectralSubset, "1 0 1 0")
	}

	want := []Line{
		{LinePlain, "# resample template"},
		{LineInput, "INPUT_FILENAME = "},
		{LinePlain, ""},
		{LineSpectral, "SPECTRAL_SUBSET = (1 1)"},
		{LineOrigSpectral, "#ORIG_SPECTRAL_SUBSET = (1 0 1 0)"},
		{LinePlain, "SPATIAL_SUBSET_TYPE = INPUT_LAT_LONG"},
		{LineOutput, "OUTPUT_FILENAME = "},
		{LinePlain, "RESAMPLING_TYPE = NEAREST_NEIGHBOR"},
	}
	if len(tmpl.Lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(tmpl.Lines), len(want), tmpl.Lines)
	}
	for i := range want {
		if tmpl.Lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, tmpl.Lines[i], want[i])
		}
	}
}

func TestParse_MarkersIgnoreCase(t *testing.T) {
	tmpl, err := Parse(strings.NewReader("input_filename = x\r\noutput_filename = y.HDR\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tmpl.OutputExt != "HDR" {
		t.Errorf("OutputExt = %q, want HDR", tmpl.OutputExt)
	}
	if tmpl.Lines[0].Text != "INPUT_FILENAME = " {
		t.Errorf("input line = %q", tmpl.Lines[0].Text)
	}
}

func TestParse_CommentedMarkersPassThrough(t *testing.T) {
	src := "#INPUT_FILENAME = old\nINPUT_FILENAME = a\n#OUTPUT_FILENAME = nope\nOUTPUT_FILENAME = b.hdf\n"
	tmpl, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tmpl.Lines[0].Kind != LinePlain || tmpl.Lines[0].Text != "#INPUT_FILENAME = old" {
		t.Errorf("comment line was rewritten: %+v", tmpl.Lines[0])
	}
	if tmpl.Lines[2].Kind != LinePlain {
		t.Errorf("commented output marker should not be substituted")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code mrterrors.Code
	}{
		{"missing output", "INPUT_FILENAME = a\n", mrterrors.CodeMissingMarker},
		{"missing input", "OUTPUT_FILENAME = b.hdf\n", mrterrors.CodeMissingMarker},
		{"empty", "", mrterrors.CodeMissingMarker},
		{"no extension", "INPUT_FILENAME = a\nOUTPUT_FILENAME = b\n", mrterrors.CodeInvalidExtension},
		{"bad extension", "INPUT_FILENAME = a\nOUTPUT_FILENAME = b.jpg\n", mrterrors.CodeInvalidExtension},
		{"no parentheses", "INPUT_FILENAME = a\nSPECTRAL_SUBSET = 1 0\nOUTPUT_FILENAME = b.hdf\n", mrterrors.CodeInvalidSpectral},
		{"unclosed parentheses", "SPECTRAL_SUBSET = ( 1 0\n", mrterrors.CodeInvalidSpectral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			if !mrterrors.IsCode(err, tt.code) {
				t.Errorf("Parse() error = %v, want code %s", err, tt.code)
			}
			if !mrterrors.IsKind(err, mrterrors.KindValidation) {
				t.Errorf("expected a validation error, got %s", mrterrors.KindOf(err))
			}
		})
	}
}

func TestRender(t *testing.T) {
	tmpl, err := Parse(strings.NewReader(sampleTemplate))
	if err != nil {
		t.Fatal(err)
	}

	lines := tmpl.Render("/prm/TmpMosaic.hdf", "/prm/MOD09GA.A2024001.tif")
	if lines[1] != "INPUT_FILENAME = /prm/TmpMosaic.hdf" {
		t.Errorf("input line = %q", lines[1])
	}
	if lines[6] != "OUTPUT_FILENAME = /prm/MOD09GA.A2024001.tif" {
		t.Errorf("output line = %q", lines[6])
	}
	if lines[3] != "SPECTRAL_SUBSET = (1 1)" {
		t.Errorf("spectral line = %q", lines[3])
	}
	if tmpl.Lines[1].Text != "INPUT_FILENAME = " {
		t.Error("Render must not modify the template")
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "template.prm")
	if err := os.WriteFile(path, []byte(sampleTemplate), 0644); err != nil {
		t.Fatal(err)
	}

	tmpl, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tmpl.Path != path || !tmpl.HasSpectralSubset() {
		t.Errorf("unexpected template %+v", tmpl)
	}

	_, err = ReadFile(filepath.Join(dir, "missing.prm"))
	if !mrterrors.IsCode(err, mrterrors.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	bad := filepath.Join(dir, "bad.prm")
	os.WriteFile(bad, []byte("INPUT_FILENAME = a\n"), 0644)
	_, err = ReadFile(bad)
	if err == nil || !strings.Contains(err.Error(), "bad.prm") {
		t.Errorf("error should name the template file: %v", err)
	}
}

func TestReduceSpectralSubset(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"101", "1 1"},
		{"000", ""},
		{"1 0 1 1", "1 1 1"},
		{"1", "1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ReduceSpectralSubset(tt.in); got != tt.want {
			t.Errorf("ReduceSpectralSubset(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractFromParentheses(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"SPECTRAL_SUBSET = ( 1 0 1 )", "1 0 1", true},
		{"x (a) (b)", "a", true},
		{"()", "", true},
		{"no parens", "", false},
		{"open ( only", "", false},
		{") before (", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractFromParentheses(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractFromParentheses(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
