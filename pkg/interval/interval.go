// Package interval turns catalog groups into mosaic and resample parameter
// files.
//
// One Interval exists per (short name, date) group. It knows where its
// parameter files live and which source files are mosaicked; the Builder
// writes those files to disk.
package interval

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mrtbatch/mrtbatch/pkg/catalog"
	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
	"github.com/mrtbatch/mrtbatch/pkg/prm"
	"github.com/mrtbatch/mrtbatch/pkg/util"
)

const (
	// MosaicInputName is the intermediate mosaic written by mrtmosaic and
	// read by resample.
	MosaicInputName = "TmpMosaic.hdf"

	// PrmSubdir is appended to the first source directory when no output
	// directory is given.
	PrmSubdir = "prm"

	mosaicSuffix   = "_mosaic.prm"
	resampleSuffix = "_resample.prm"
)

// Interval is one mosaic and resample run.
type Interval struct {
	// PrmDir holds the generated files and always ends in a separator.
	PrmDir    string
	ShortName string
	Date      string
	OutputExt string
	// MosaicFiles are the script-ready source paths, one per mosaic line.
	MosaicFiles []string
}

func (iv *Interval) base() string {
	return iv.PrmDir + iv.ShortName + "." + iv.Date
}

// MosaicPrmPath is the unquoted path of the mosaic parameter file.
func (iv *Interval) MosaicPrmPath() string { return iv.base() + mosaicSuffix }

// ResamplePrmPath is the unquoted path of the resample parameter file.
func (iv *Interval) ResamplePrmPath() string { return iv.base() + resampleSuffix }

// InputFilePath is the unquoted path of the intermediate mosaic.
func (iv *Interval) InputFilePath() string { return iv.PrmDir + MosaicInputName }

// OutputFilePath is the unquoted path of the final resampled product.
func (iv *Interval) OutputFilePath() string { return iv.base() + "." + iv.OutputExt }

// MosaicPrmName is MosaicPrmPath quoted for use in a script.
func (iv *Interval) MosaicPrmName() string { return pathconv.QuoteIfSpaces(iv.MosaicPrmPath()) }

// ResamplePrmName is ResamplePrmPath quoted for use in a script.
func (iv *Interval) ResamplePrmName() string { return pathconv.QuoteIfSpaces(iv.ResamplePrmPath()) }

// InputFileName is InputFilePath quoted for use in a script.
func (iv *Interval) InputFileName() string { return pathconv.QuoteIfSpaces(iv.InputFilePath()) }

// OutputFileName is OutputFilePath quoted for use in a script.
func (iv *Interval) OutputFileName() string { return pathconv.QuoteIfSpaces(iv.OutputFilePath()) }

// Builder creates intervals for one run.
type Builder struct {
	Host       pathconv.Host
	ScriptType pathconv.ScriptType
	// OutputDir, when set, receives every interval's files directly.
	OutputDir string
	Logger    *slog.Logger
	// Getwd is used when a group has no source directory. Defaults to os.Getwd.
	Getwd func() (string, error)
	// Warnings collects files that were written but failed to close.
	Warnings mrterrors.MultiError
}

// NewBuilder creates a Builder with the default logger.
func NewBuilder(host pathconv.Host, st pathconv.ScriptType, outputDir string) *Builder {
	return &Builder{
		Host:       host,
		ScriptType: st,
		OutputDir:  outputDir,
		Logger:     slog.Default(),
		Getwd:      os.Getwd,
	}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// Build returns one interval per (short name, date) group in catalog
// traversal order. Nothing is written to disk.
func (b *Builder) Build(cat *catalog.Catalog, outputExt string) ([]*Interval, error) {
	var intervals []*Interval
	err := cat.Walk(func(sn *catalog.ShortName, d *catalog.DateGroup) error {
		iv, err := b.BuildGroup(sn, d, outputExt)
		if err != nil {
			return err
		}
		intervals = append(intervals, iv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intervals, nil
}

// BuildGroup creates the interval for a single date group. Every file of
// every path group is listed, each under its own directory.
func (b *Builder) BuildGroup(sn *catalog.ShortName, d *catalog.DateGroup, outputExt string) (*Interval, error) {
	prmDir, err := b.prmDir(d)
	if err != nil {
		return nil, err
	}

	iv := &Interval{
		PrmDir:    prmDir,
		ShortName: sn.Key,
		Date:      d.Key,
		OutputExt: outputExt,
	}
	for _, p := range d.Paths() {
		for _, f := range p.Files() {
			iv.MosaicFiles = append(iv.MosaicFiles, pathconv.MosaicPath(p.Path, f, b.ScriptType))
		}
	}
	return iv, nil
}

// prmDir picks the output directory, or the first source directory plus
// "prm", falling back to the working directory.
func (b *Builder) prmDir(d *catalog.DateGroup) (string, error) {
	if b.OutputDir != "" {
		return b.Host.EnsureTrailingSeparator(b.OutputDir), nil
	}

	dir := ""
	if paths := d.Paths(); len(paths) > 0 {
		dir = paths[0].Path
	}
	if dir == "" {
		getwd := b.Getwd
		if getwd == nil {
			getwd = os.Getwd
		}
		wd, err := getwd()
		if err != nil {
			return "", mrterrors.Wrap(err, mrterrors.CodeReadFailed, "could not determine the current directory")
		}
		dir = wd
	}
	return b.Host.EnsureTrailingSeparator(b.Host.EnsureTrailingSeparator(dir) + PrmSubdir), nil
}

// Materialize creates the interval's directory and writes its mosaic and
// resample parameter files. Close failures are logged and do not fail the
// interval.
func (b *Builder) Materialize(iv *Interval, tmpl *prm.Template) error {
	if err := b.ensureDir(iv.PrmDir); err != nil {
		return err
	}

	eol := b.Host.LineEnding(b.ScriptType)

	mosaic := b.Host.ToOSPath(iv.MosaicPrmPath())
	b.logger().Debug("creating mosaic parameter file", "path", mosaic, "files", len(iv.MosaicFiles))
	if err := b.write(mosaic, iv.MosaicFiles, eol); err != nil {
		return err
	}

	resample := b.Host.ToOSPath(iv.ResamplePrmPath())
	b.logger().Debug("creating resample parameter file", "path", resample,
		prm.InputMarker, iv.InputFileName(), prm.OutputMarker, iv.OutputFileName())
	return b.write(resample, tmpl.Render(iv.InputFileName(), iv.OutputFileName()), eol)
}

func (b *Builder) write(path string, lines []string, eol string) error {
	err := util.WriteLines(path, lines, eol)
	if util.IsCloseWarning(err) {
		b.logger().Debug("error closing file", "path", path, "error", err)
		b.Warnings.Add(err)
		return nil
	}
	return err
}

func (b *Builder) ensureDir(dir string) error {
	path := filepath.Clean(b.Host.ToOSPath(dir))
	b.logger().Debug("creating directory if it does not exist", "path", path)

	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return mrterrors.Newf(mrterrors.CodeWrongType, "need %q to be a directory, but it isn't", path)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return mrterrors.ReadFailed(path, err)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return mrterrors.Wrapf(err, mrterrors.CodeCreateDir, "could not create directory: %s", path)
	}
	return nil
}
