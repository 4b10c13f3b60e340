package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mrtbatch/mrtbatch/internal/logger"
	"github.com/mrtbatch/mrtbatch/pkg/config"
	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
	"github.com/mrtbatch/mrtbatch/pkg/storage"
	"github.com/mrtbatch/mrtbatch/pkg/telemetry"
)

const template = `# resample
INPUT_FILENAME = in.hdf
SPECTRAL_SUBSET = ( 1 0 1 )
OUTPUT_FILENAME = out.tif
`

type fixture struct {
	dataDir string
	workDir string
	list    string
	prm     string
}

func newFixture(t *testing.T, tmpl string) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		dataDir: filepath.Join(root, "data"),
		workDir: filepath.Join(root, "work"),
	}
	for _, d := range []string{f.dataDir, f.workDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	names := []string{
		"MOD09GA.A2024001.h10v05.005.hdf",
		"MOD09GA.A2024001.h11v05.005.hdf",
	}
	var list strings.Builder
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(f.dataDir, n), []byte("hdf"), 0644); err != nil {
			t.Fatal(err)
		}
		list.WriteString(filepath.Join(f.dataDir, n) + "\n")
	}

	f.list = filepath.Join(root, "files.txt")
	f.prm = filepath.Join(root, "template.prm")
	os.WriteFile(f.list, []byte(list.String()), 0644)
	os.WriteFile(f.prm, []byte(tmpl), 0644)
	return f
}

func newTestRunner(f fixture, logs *bytes.Buffer) *Runner {
	r := New(pathconv.Host{OS: "linux"})
	r.WorkDir = f.workDir
	if logs != nil {
		r.Logger = slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return r
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRun_SingleInterval(t *testing.T) {
	f := newFixture(t, template)

	o := config.Default()
	o.ListFile = f.list
	o.Template = f.prm
	o.ScriptType = "script"

	res, err := newTestRunner(f, nil).Run(context.Background(), o)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Intervals) != 1 {
		t.Fatalf("got %d intervals, want 1", len(res.Intervals))
	}
	if res.RunID == "" {
		t.Error("run id not set")
	}

	prmDir := filepath.Join(f.dataDir, "prm")
	mosaic := readLines(t, filepath.Join(prmDir, "MOD09GA.A2024001_mosaic.prm"))
	if len(mosaic) != 2 {
		t.Fatalf("mosaic file has %d lines, want 2: %q", len(mosaic), mosaic)
	}
	if !strings.HasSuffix(mosaic[0], "MOD09GA.A2024001.h10v05.005.hdf") {
		t.Errorf("mosaic line = %q", mosaic[0])
	}

	resample := readLines(t, filepath.Join(prmDir, "MOD09GA.A2024001_resample.prm"))
	wantResample := []string{
		"# resample",
		"INPUT_FILENAME = " + prmDir + "/TmpMosaic.hdf",
		"SPECTRAL_SUBSET = (1 1)",
		"#ORIG_SPECTRAL_SUBSET = (1 0 1)",
		"OUTPUT_FILENAME = " + prmDir + "/MOD09GA.A2024001.tif",
	}
	if strings.Join(resample, "\n") != strings.Join(wantResample, "\n") {
		t.Errorf("resample file =\n%s\nwant\n%s", strings.Join(resample, "\n"), strings.Join(wantResample, "\n"))
	}

	if res.BatchFile != filepath.Join(f.workDir, "mrtbatch") {
		t.Errorf("BatchFile = %q", res.BatchFile)
	}
	script := readLines(t, res.BatchFile)
	if len(script) != 4 {
		t.Fatalf("script has %d lines, want 4: %q", len(script), script)
	}
	want := []string{
		`mrtmosaic -s "1 0 1" -i ` + prmDir + "/MOD09GA.A2024001_mosaic.prm -o " + prmDir + "/TmpMosaic.hdf",
		"resample -p " + prmDir + "/MOD09GA.A2024001_resample.prm",
		"rm " + prmDir + "/TmpMosaic.hdf",
		"",
	}
	for i := range want {
		if script[i] != want[i] {
			t.Errorf("script line %d = %q, want %q", i, script[i], want[i])
		}
	}

	report := res.Report()
	if report.Intervals != 1 || report.Files != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_MissingOutputMarkerWritesNothing(t *testing.T) {
	f := newFixture(t, "INPUT_FILENAME = in.hdf\nSPECTRAL_SUBSET = ( 1 )\n")

	o := config.Default()
	o.ListFile = f.list
	o.Template = f.prm

	_, err := newTestRunner(f, nil).Run(context.Background(), o)
	if !mrterrors.IsCode(err, mrterrors.CodeMissingMarker) {
		t.Fatalf("expected missing marker error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.workDir, "mrtbatch")); !os.IsNotExist(err) {
		t.Error("no script should be written")
	}
	if _, err := os.Stat(filepath.Join(f.dataDir, "prm")); !os.IsNotExist(err) {
		t.Error("no parameter directory should be created")
	}
}

func TestRun_DirectoryWithOutputDirAndManifest(t *testing.T) {
	f := newFixture(t, template)
	out := filepath.Join(t.TempDir(), "out")
	manifest := filepath.Join(f.workDir, "run.yaml")

	o := config.Default()
	o.Directory = f.dataDir
	o.Template = f.prm
	o.ScriptType = "batch"
	o.OutputDir = out
	o.BatchName = "nightly"
	o.Manifest = manifest

	var logs bytes.Buffer
	res, err := newTestRunner(f, &logs).Run(context.Background(), o)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if filepath.Base(res.BatchFile) != "nightly.bat" {
		t.Errorf("BatchFile = %q", res.BatchFile)
	}
	if _, err := os.Stat(filepath.Join(out, "MOD09GA.A2024001_mosaic.prm")); err != nil {
		t.Errorf("mosaic file not in output dir: %v", err)
	}
	data, err := os.ReadFile(res.BatchFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\r\n") || !strings.Contains(string(data), "del ") {
		t.Errorf("BATCH script should use del and CRLF: %q", data)
	}

	m, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	for _, want := range []string{"version: \"1.2\"", "run_id: " + res.RunID, "batch_file:", "short_name: MOD09GA"} {
		if !strings.Contains(string(m), want) {
			t.Errorf("manifest missing %q:\n%s", want, m)
		}
	}

	for _, want := range []string{"run options", "catalog", "intervals created", "creating batch file"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("debug log missing %q", want)
		}
	}
}

func TestRun_ValidationFailures(t *testing.T) {
	f := newFixture(t, template)

	tests := []struct {
		name   string
		modify func(o *config.Options)
		code   mrterrors.Code
	}{
		{"no input", func(o *config.Options) { o.ListFile = "" }, mrterrors.CodeMissingInput},
		{"missing list", func(o *config.Options) { o.ListFile = filepath.Join(f.workDir, "none.txt") }, mrterrors.CodeNotFound},
		{"bad type", func(o *config.Options) { o.ScriptType = "perl" }, mrterrors.CodeInvalidArgument},
		{"output is file", func(o *config.Options) { o.OutputDir = f.list }, mrterrors.CodeWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := config.Default()
			o.ListFile = f.list
			o.Template = f.prm
			tt.modify(o)

			_, err := newTestRunner(f, nil).Run(context.Background(), o)
			if !mrterrors.IsCode(err, tt.code) {
				t.Errorf("Run() = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestRun_SkipBadCountsSkipped(t *testing.T) {
	f := newFixture(t, template)
	data, _ := os.ReadFile(f.list)
	os.WriteFile(f.list, append(data, []byte("/data/garbage.hdf\n")...), 0644)

	o := config.Default()
	o.ListFile = f.list
	o.Template = f.prm

	if _, err := newTestRunner(f, nil).Run(context.Background(), o); !mrterrors.IsCode(err, mrterrors.CodeBadFilename) {
		t.Fatalf("strict run should fail on a bad name, got %v", err)
	}

	o.SkipBad = true
	res, err := newTestRunner(f, nil).Run(context.Background(), o)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
}

func TestRun_StageSpans(t *testing.T) {
	f := newFixture(t, template)
	rec := tracetest.NewSpanRecorder()
	provider := telemetry.FromTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	defer provider.Shutdown(context.Background())

	r := newTestRunner(f, nil)
	r.Tracer = provider.Tracer()

	o := config.Default()
	o.ListFile = f.list
	o.Template = f.prm

	ctx := logger.WithRunID(context.Background(), "fixed-run")
	res, err := r.Run(ctx, o)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID != "fixed-run" {
		t.Errorf("RunID = %q, want the id from the context", res.RunID)
	}

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	got := strings.Join(names, ",")
	want := strings.Join([]string{StageValidate, StageCatalog, StageTemplate, StageIntervals, StageBatch, "mrtbatch.run"}, ",")
	if got != want {
		t.Errorf("spans = %s, want %s", got, want)
	}
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, template)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := config.Default()
	o.ListFile = f.list
	o.Template = f.prm

	if _, err := newTestRunner(f, nil).Run(ctx, o); err != context.Canceled {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	m.objects[bucket+"/"+key] = data
	return nil
}

func TestRun_ManifestToS3(t *testing.T) {
	f := newFixture(t, template)
	store := &memStore{objects: map[string][]byte{}}

	r := newTestRunner(f, nil)
	r.Store = storage.NewWriterWithStore(store)

	o := config.Default()
	o.ListFile = f.list
	o.Template = f.prm
	o.Manifest = "s3://modis-runs/2024/run.parquet"

	res, err := r.Run(context.Background(), o)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Manifest != o.Manifest {
		t.Errorf("Manifest = %q", res.Manifest)
	}
	data := store.objects["modis-runs/2024/run.parquet"]
	if !bytes.HasPrefix(data, []byte("PAR1")) {
		t.Errorf("stored object is not parquet: %d bytes", len(data))
	}
}

func TestRun_BadManifestRejectedEarly(t *testing.T) {
	f := newFixture(t, template)

	o := config.Default()
	o.ListFile = f.list
	o.Template = f.prm
	o.Manifest = filepath.Join(f.workDir, "run.txt")

	_, err := newTestRunner(f, nil).Run(context.Background(), o)
	if !mrterrors.IsCode(err, mrterrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dataDir, "prm")); !os.IsNotExist(err) {
		t.Error("nothing should be written for a bad manifest name")
	}
}
