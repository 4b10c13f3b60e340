// Package export writes a run manifest describing the grouped catalog and
// the parameter files generated for it.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrtbatch/mrtbatch/pkg/catalog"
	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/interval"
	"github.com/mrtbatch/mrtbatch/pkg/storage"
)

// Format is a manifest encoding.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// FormatFor picks the format from the extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".parquet":
		return FormatParquet, nil
	}
	return "", mrterrors.Newf(mrterrors.CodeInvalidArgument,
		"unsupported manifest format %q, use .yaml, .json or .parquet", filepath.Ext(path))
}

// Manifest is the serializable form of one run.
type Manifest struct {
	Version    string  `yaml:"version" json:"version"`
	RunID      string  `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	ScriptType string  `yaml:"script_type,omitempty" json:"script_type,omitempty"`
	BatchFile  string  `yaml:"batch_file,omitempty" json:"batch_file,omitempty"`
	Groups     []Group `yaml:"groups" json:"groups"`
}

// Group is one (short name, date) pair.
type Group struct {
	ShortName   string      `yaml:"short_name" json:"short_name"`
	Date        string      `yaml:"date" json:"date"`
	PrmDir      string      `yaml:"prm_dir,omitempty" json:"prm_dir,omitempty"`
	MosaicPrm   string      `yaml:"mosaic_prm,omitempty" json:"mosaic_prm,omitempty"`
	ResamplePrm string      `yaml:"resample_prm,omitempty" json:"resample_prm,omitempty"`
	Output      string      `yaml:"output,omitempty" json:"output,omitempty"`
	Paths       []PathEntry `yaml:"paths" json:"paths"`
}

// PathEntry is one source directory of a group.
type PathEntry struct {
	Path  string   `yaml:"path" json:"path"`
	Files []string `yaml:"files" json:"files"`
}

// Row is one source file, the unit of the parquet encoding.
type Row struct {
	ShortName string
	Date      string
	Path      string
	File      string
	PrmDir    string
}

// Build describes cat. intervals, when given, must come from the same
// catalog in traversal order; their generated names are added per group.
func Build(version string, cat *catalog.Catalog, intervals []*interval.Interval) *Manifest {
	m := &Manifest{Version: version}

	i := 0
	cat.Walk(func(sn *catalog.ShortName, d *catalog.DateGroup) error {
		g := Group{ShortName: sn.Key, Date: d.Key}
		for _, p := range d.Paths() {
			g.Paths = append(g.Paths, PathEntry{Path: p.Path, Files: append([]string(nil), p.Files()...)})
		}
		if i < len(intervals) {
			iv := intervals[i]
			g.PrmDir = iv.PrmDir
			g.MosaicPrm = iv.MosaicPrmPath()
			g.ResamplePrm = iv.ResamplePrmPath()
			g.Output = iv.OutputFilePath()
		}
		i++
		m.Groups = append(m.Groups, g)
		return nil
	})
	return m
}

// Rows flattens the manifest to one row per source file.
func (m *Manifest) Rows() []Row {
	var rows []Row
	for _, g := range m.Groups {
		for _, p := range g.Paths {
			for _, f := range p.Files {
				rows = append(rows, Row{ShortName: g.ShortName, Date: g.Date, Path: p.Path, File: f, PrmDir: g.PrmDir})
			}
		}
	}
	return rows
}

// Write encodes m to w.
func Write(w io.Writer, m *Manifest, f Format) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case FormatParquet:
		return writeParquet(w, m.Rows())
	}
	return mrterrors.Newf(mrterrors.CodeInvalidArgument, "unsupported manifest format %q", f)
}

// ContentType returns the media type stored with remote manifests.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	}
	return "application/octet-stream"
}

// Publish encodes m using the format implied by the extension of dest and
// stores it through w. dest may be a local path or an s3:// URL.
func Publish(ctx context.Context, w *storage.Writer, dest string, m *Manifest) error {
	f, err := FormatFor(dest)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Write(&buf, m, f); err != nil {
		return mrterrors.WriteFailed(dest, err)
	}
	return w.Write(ctx, dest, buf.Bytes(), f.ContentType())
}

// WriteFile writes m to a local path.
func WriteFile(path string, m *Manifest) error {
	return Publish(context.Background(), storage.NewWriterWithStore(nil), path, m)
}
