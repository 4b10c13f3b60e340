// Package pipeline runs one batch generation: catalog, template, intervals,
// script and an optional manifest, in that order.
package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrtbatch/mrtbatch/internal/logger"
	"github.com/mrtbatch/mrtbatch/pkg/batch"
	"github.com/mrtbatch/mrtbatch/pkg/catalog"
	"github.com/mrtbatch/mrtbatch/pkg/config"
	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/export"
	"github.com/mrtbatch/mrtbatch/pkg/interval"
	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
	"github.com/mrtbatch/mrtbatch/pkg/prm"
	"github.com/mrtbatch/mrtbatch/pkg/storage"
	"github.com/mrtbatch/mrtbatch/pkg/telemetry"
	"github.com/mrtbatch/mrtbatch/pkg/tui"
	"github.com/mrtbatch/mrtbatch/pkg/util"
	"github.com/mrtbatch/mrtbatch/pkg/validation"
)

// Version is the generator version recorded in manifests.
const Version = "1.2"

// Stage names, also used as span names.
const (
	StageValidate  = "validate"
	StageCatalog   = "catalog"
	StageTemplate  = "template"
	StageIntervals = "intervals"
	StageBatch     = "batch"
	StageManifest  = "manifest"
)

// Runner executes generation runs. A Runner may be reused; runs must not
// overlap.
type Runner struct {
	Host   pathconv.Host
	Logger *slog.Logger
	Tracer trace.Tracer
	// Progress receives a progress bar over interval materialization.
	// Nil disables it.
	Progress io.Writer
	// WorkDir is where the script is written. Defaults to the working
	// directory.
	WorkDir string
	// Store receives the manifest. Nil uses local files and an S3 client
	// built from the run options.
	Store *storage.Writer
}

// New creates a Runner for host with the default logger and no tracing.
func New(host pathconv.Host) *Runner {
	return &Runner{
		Host:   host,
		Logger: slog.Default(),
		Tracer: telemetry.Noop().Tracer(),
	}
}

// Result describes a completed run.
type Result struct {
	RunID      string
	ScriptType pathconv.ScriptType
	BatchFile  string
	Catalog    *catalog.Catalog
	Template   *prm.Template
	Intervals  []*interval.Interval
	Skipped    int
	Manifest   string
	// Warnings holds non-fatal failures, such as a file that could not
	// be closed cleanly.
	Warnings mrterrors.MultiError
	Duration time.Duration
}

// Report converts r for terminal output.
func (r *Result) Report() *tui.Report {
	files := 0
	if r.Catalog != nil {
		files = r.Catalog.FileCount()
	}
	return &tui.Report{
		BatchFile: r.BatchFile,
		Intervals: len(r.Intervals),
		Files:     files,
		Skipped:   r.Skipped,
		Manifest:  r.Manifest,
		Duration:  r.Duration,
	}
}

// Run performs one generation. It stops at the first failure; files
// written by earlier stages are left in place.
func (r *Runner) Run(ctx context.Context, o *config.Options) (*Result, error) {
	start := time.Now()

	runID, ok := logger.RunIDFromContext(ctx)
	if !ok {
		runID = logger.NewRunID()
		ctx = logger.WithRunID(ctx, runID)
	}
	log := logger.FromContext(ctx, r.logger())
	res := &Result{RunID: runID}

	ctx, span := telemetry.StartStage(ctx, r.Tracer, "mrtbatch.run", attribute.String(logger.AttrKeyRunID, runID))
	err := r.run(ctx, log, o, res)
	telemetry.EndStage(span, err)
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return res, nil
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, o *config.Options, res *Result) error {
	log.Debug("run options",
		"file", o.ListFile, "dir", o.Directory, "prmfile", o.Template,
		"type", o.ScriptType, "output", o.OutputDir, "batch", o.BatchName,
		"skipbad", o.SkipBad)

	err := r.stage(ctx, StageValidate, func(context.Context) error {
		if err := o.Validate(); err != nil {
			return err
		}
		st, err := o.ResolveScriptType(r.Host)
		if err != nil {
			return err
		}
		res.ScriptType = st
		if o.Manifest != "" {
			if err := checkManifest(o.Manifest); err != nil {
				return err
			}
		}
		return validation.ValidateInputs(validation.Inputs{
			ListFile:  o.ListFile,
			Directory: o.Directory,
			Template:  o.Template,
			OutputDir: o.OutputDir,
		})
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageCatalog, func(context.Context) error {
		reader := catalog.NewReader(r.Host, res.ScriptType, catalog.PolicyFor(o.SkipBad))
		reader.Logger = log

		var cat *catalog.Catalog
		var err error
		if o.ListFile != "" {
			cat, err = reader.ParseListFile(o.ListFile)
		} else {
			cat, err = reader.ParseDirectory(o.Directory)
		}
		if err != nil {
			return err
		}
		res.Catalog = cat
		res.Skipped = reader.Skipped()

		if log.Enabled(ctx, slog.LevelDebug) {
			var buf bytes.Buffer
			cat.WriteTree(&buf, true)
			log.Debug("catalog", "groups", cat.GroupCount(), "files", cat.FileCount(), "tree", buf.String())
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageTemplate, func(context.Context) error {
		tmpl, err := prm.ReadFile(o.Template)
		if err != nil {
			return err
		}
		res.Template = tmpl

		if log.Enabled(ctx, slog.LevelDebug) {
			lines := make([]string, len(tmpl.Lines))
			for i, l := range tmpl.Lines {
				lines[i] = l.Text
			}
			log.Debug("template", "path", tmpl.Path, "ext", tmpl.OutputExt,
				"spectral_subset", tmpl.SpectralSubset, "lines", strings.Join(lines, "\n"))
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageIntervals, func(ctx context.Context) error {
		return r.materialize(ctx, log, o, res)
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageBatch, func(context.Context) error {
		return r.writeScript(log, o, res)
	})
	if err != nil {
		return err
	}

	if o.Manifest == "" {
		return nil
	}
	return r.stage(ctx, StageManifest, func(ctx context.Context) error {
		m := export.Build(Version, res.Catalog, res.Intervals)
		m.RunID = res.RunID
		m.ScriptType = res.ScriptType.String()
		m.BatchFile = res.BatchFile
		store := r.Store
		if store == nil {
			store = storage.NewWriter(storage.DefaultS3Config(o.S3Region, o.S3Endpoint))
		}
		if err := export.Publish(ctx, store, o.Manifest, m); err != nil {
			return err
		}
		res.Manifest = o.Manifest
		log.Debug("manifest written", "path", o.Manifest, "groups", len(m.Groups))
		return nil
	})
}

func (r *Runner) materialize(ctx context.Context, log *slog.Logger, o *config.Options, res *Result) error {
	b := interval.NewBuilder(r.Host, res.ScriptType, o.OutputDir)
	b.Logger = log

	intervals, err := b.Build(res.Catalog, res.Template.OutputExt)
	if err != nil {
		return err
	}
	log.Debug("intervals created", "count", len(intervals))

	var bar interface{ Add(int) error }
	if r.Progress != nil && len(intervals) > 0 {
		pb := tui.ShowProgress(len(intervals), "Writing parameter files", r.Progress)
		defer pb.Finish()
		bar = pb
	}

	defer func() {
		for _, w := range b.Warnings.Errors {
			res.Warnings.Add(w)
		}
	}()

	for _, iv := range intervals {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Materialize(iv, res.Template); err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	res.Intervals = intervals
	return nil
}

func (r *Runner) writeScript(log *slog.Logger, o *config.Options, res *Result) error {
	script := batch.NewScript(res.ScriptType)
	for _, iv := range res.Intervals {
		script.Add(iv, res.Template.SpectralSubset)
	}

	name := o.BatchFileName(res.ScriptType)
	path := name
	if r.WorkDir != "" {
		path = filepath.Join(r.WorkDir, name)
	}
	log.Debug("creating batch file", "path", path, "lines", script.Len())

	err := script.WriteFile(path, r.Host)
	if util.IsCloseWarning(err) {
		log.Debug("error closing file", "path", path, "error", err)
		res.Warnings.Add(err)
		err = nil
	}
	if err != nil {
		return err
	}
	res.BatchFile = path
	return nil
}

// checkManifest rejects a manifest destination before any file is written.
func checkManifest(dest string) error {
	if _, err := storage.ParseDestination(dest); err != nil {
		return err
	}
	_, err := export.FormatFor(dest)
	return err
}

// stage runs fn inside a span named after the stage.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := telemetry.StartStage(ctx, r.Tracer, name)
	err := fn(ctx)
	telemetry.EndStage(span, err)
	return err
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
