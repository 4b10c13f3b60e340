package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"gopkg.in/yaml.v3"

	"github.com/mrtbatch/mrtbatch/pkg/catalog"
	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/interval"
	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
	"github.com/mrtbatch/mrtbatch/pkg/storage"
)

func testManifest(withIntervals bool) *Manifest {
	linux := pathconv.Host{OS: "linux"}
	cat := catalog.New(linux)
	cat.Add("MOD09GA", "A2024001", "/a", "MOD09GA.A2024001.h10v05.hdf")
	cat.Add("MOD09GA", "A2024001", "/b", "MOD09GA.A2024001.h11v05.hdf")
	cat.Add("MYD09GA", "A2024002", "/a", "MYD09GA.A2024002.h10v05.hdf")

	var intervals []*interval.Interval
	if withIntervals {
		intervals, _ = interval.NewBuilder(linux, pathconv.ScriptScript, "").Build(cat, "tif")
	}
	return Build("1.2", cat, intervals)
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"run.yaml", FormatYAML},
		{"run.YML", FormatYAML},
		{"run.json", FormatJSON},
		{"run.parquet", FormatParquet},
	}
	for _, tt := range tests {
		if got, err := FormatFor(tt.path); err != nil || got != tt.want {
			t.Errorf("FormatFor(%q) = %q, %v", tt.path, got, err)
		}
	}
	if _, err := FormatFor("run.csv"); !mrterrors.IsCode(err, mrterrors.CodeInvalidArgument) {
		t.Errorf("expected invalid argument for csv, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	m := testManifest(true)

	if len(m.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(m.Groups))
	}
	g := m.Groups[0]
	if g.ShortName != "MOD09GA" || len(g.Paths) != 2 {
		t.Errorf("unexpected first group %+v", g)
	}
	if g.MosaicPrm != "/a/prm/MOD09GA.A2024001_mosaic.prm" || g.Output != "/a/prm/MOD09GA.A2024001.tif" {
		t.Errorf("interval names not attached: %+v", g)
	}
	if rows := m.Rows(); len(rows) != 3 || rows[1].Path != "/b" {
		t.Errorf("Rows() = %+v", rows)
	}

	bare := testManifest(false)
	if bare.Groups[0].PrmDir != "" {
		t.Error("catalog-only manifest should not carry interval names")
	}
}

func TestWrite_YAMLAndJSON(t *testing.T) {
	m := testManifest(true)

	var ybuf bytes.Buffer
	if err := Write(&ybuf, m, FormatYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var fromYAML Manifest
	if err := yaml.Unmarshal(ybuf.Bytes(), &fromYAML); err != nil {
		t.Fatal(err)
	}
	if len(fromYAML.Groups) != 2 || fromYAML.Groups[1].Paths[0].Files[0] != "MYD09GA.A2024002.h10v05.hdf" {
		t.Errorf("yaml manifest = %+v", fromYAML)
	}

	var jbuf bytes.Buffer
	if err := Write(&jbuf, m, FormatJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	var fromJSON Manifest
	if err := json.Unmarshal(jbuf.Bytes(), &fromJSON); err != nil {
		t.Fatal(err)
	}
	if fromJSON.Version != "1.2" || fromJSON.Groups[0].ResamplePrm == "" {
		t.Errorf("json manifest = %+v", fromJSON)
	}
}

func TestWriteFile_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.parquet")
	if err := WriteFile(path, testManifest(false)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	defer tbl.Release()

	if tbl.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", tbl.NumRows())
	}
	if tbl.Schema().Field(3).Name != "file" {
		t.Errorf("column 3 = %s, want file", tbl.Schema().Field(3).Name)
	}

	files := tbl.Column(3).Data().Chunk(0).(*array.String)
	if files.Value(2) != "MYD09GA.A2024002.h10v05.hdf" {
		t.Errorf("file[2] = %q", files.Value(2))
	}
	prmDirs := tbl.Column(4).Data().Chunk(0)
	if !prmDirs.IsNull(0) {
		t.Error("prm_dir should be null without intervals")
	}
}

func TestWriteFile_BadExtension(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "m.txt"), testManifest(false))
	if !mrterrors.IsCode(err, mrterrors.CodeInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

type recordingStore struct {
	key         string
	data        []byte
	contentType string
}

func (r *recordingStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	r.key = bucket + "/" + key
	r.data = data
	r.contentType = contentType
	return nil
}

func TestPublish_S3(t *testing.T) {
	store := &recordingStore{}
	w := storage.NewWriterWithStore(store)

	if err := Publish(context.Background(), w, "s3://modis/runs/run.json", testManifest(true)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if store.key != "modis/runs/run.json" || store.contentType != "application/json" {
		t.Errorf("stored %s as %s", store.key, store.contentType)
	}

	var m Manifest
	if err := json.Unmarshal(store.data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Groups) != 2 {
		t.Errorf("got %d groups, want 2", len(m.Groups))
	}
}
