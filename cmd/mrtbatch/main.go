// MRTBatch - batch generator for the MODIS Reprojection Tool.
// Groups HDF tiles by short name and acquisition date and writes the
// mosaic and resample parameter files plus a script that runs them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrtbatch/mrtbatch/internal/logger"
	"github.com/mrtbatch/mrtbatch/pkg/config"
	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
	"github.com/mrtbatch/mrtbatch/pkg/pipeline"
	"github.com/mrtbatch/mrtbatch/pkg/telemetry"
	"github.com/mrtbatch/mrtbatch/pkg/tui"
)

var version = pipeline.Version

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	root := app.rootCmd()
	root.SetArgs(normalizeArgs(args))
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		app.printer.Error(err)
		var mErr *mrterrors.MRTError
		if app.flags.debug && errors.As(err, &mErr) {
			fmt.Fprintf(stderr, "[%s] %s error\n%s", mErr.Code, mErr.Kind(), mErr.FormatStack())
		}
		return 1
	}
	return 0
}

// normalizeArgs accepts -? as an alias for --help.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "-?" {
			a = "--help"
		}
		out[i] = a
	}
	return out
}

// runFlags holds the command-line switches shared by all commands.
type runFlags struct {
	file          string
	dir           string
	prmFile       string
	output        string
	scriptType    string
	batch         string
	manifest      string
	traceEndpoint string
	logFormat     string
	configFile    string
	debug         bool
	skipBad       bool
}

type app struct {
	stdout  io.Writer
	stderr  io.Writer
	printer *tui.Printer
	flags   runFlags
	host    pathconv.Host
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:  stdout,
		stderr:  stderr,
		printer: tui.NewPrinter(stdout, stderr),
		host:    pathconv.CurrentHost(),
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mrtbatch",
		Short: "MRTBatch - generate MRT mosaic and resample batch scripts",
		Long: `MRTBatch reads a list of HDF files, or scans a directory for them, groups the
files by short name and acquisition date, and writes for each group a mosaic
parameter file and a resample parameter file derived from a template. A
script running mrtmosaic and resample for every group is written to the
current directory.

Examples:
  mrtbatch -d /data/modis -p template.prm
  mrtbatch -f files.txt -p template.prm -t batch -b nightly
  mrtbatch -f files.xlsx -p template.prm -o /data/prm --manifest run.yaml`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          a.runGenerate,
	}
	root.SetVersionTemplate("MRTBatch v{{.Version}}\n")

	f := root.PersistentFlags()
	f.StringVarP(&a.flags.file, "file", "f", "", "File containing the list of HDF files to process")
	f.StringVarP(&a.flags.dir, "dir", "d", "", "Directory containing the HDF files to process")
	f.StringVarP(&a.flags.prmFile, "prmfile", "p", "", "Parameter template file")
	f.StringVarP(&a.flags.output, "output", "o", "", "Directory receiving the parameter files (default <input dir>/prm)")
	f.StringVarP(&a.flags.scriptType, "type", "t", "", "Script type: BATCH, SCRIPT or CSCRIPT (default depends on the OS)")
	f.StringVarP(&a.flags.batch, "batch", "b", "", "Script base name (default mrtbatch)")
	f.BoolVarP(&a.flags.skipBad, "skipbad", "s", false, "Skip files that do not match the expected name pattern")
	f.BoolVarP(&a.flags.debug, "debug", "D", false, "Print debug information")
	f.StringVar(&a.flags.manifest, "manifest", "", "Write a run manifest (.yaml, .json or .parquet)")
	f.StringVar(&a.flags.traceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint for traces (host:port)")
	f.StringVar(&a.flags.logFormat, "log-format", "", "Log format: text or json")
	f.StringVar(&a.flags.configFile, "config", "", "Config file (default ~/.mrtbatch/config.yaml and ./.mrtbatch.yaml)")

	root.AddCommand(a.watchCmd())
	root.AddCommand(a.catalogCmd())
	root.AddCommand(a.configCmd())
	return root
}

// loadOptions layers the command-line switches over the config files and
// the environment.
func (a *app) loadOptions(cmd *cobra.Command) (*config.Options, error) {
	var m *config.Manager
	if a.flags.configFile != "" {
		m = config.NewManager(a.flags.configFile)
	} else {
		m = config.NewManager()
	}
	if err := m.Load(); err != nil {
		return nil, err
	}

	o := m.Get()
	o.ListFile = a.flags.file
	o.Directory = a.flags.dir
	o.Template = a.flags.prmFile
	o.Manifest = a.flags.manifest

	changed := cmd.Flags().Changed
	if changed("output") {
		o.OutputDir = a.flags.output
	}
	if changed("type") {
		o.ScriptType = a.flags.scriptType
	}
	if changed("batch") {
		o.BatchName = a.flags.batch
	}
	if changed("skipbad") {
		o.SkipBad = a.flags.skipBad
	}
	if changed("debug") {
		o.Debug = a.flags.debug
	}
	if changed("trace-endpoint") {
		o.TraceEndpoint = a.flags.traceEndpoint
	}
	if changed("log-format") {
		o.LogFormat = a.flags.logFormat
	}
	return o, nil
}

// newRunner configures logging and tracing for o. The returned function
// flushes pending spans.
func (a *app) newRunner(ctx context.Context, o *config.Options) (*pipeline.Runner, func(), error) {
	log := a.initLogger(o)

	provider, err := telemetry.Init(ctx, telemetry.DefaultOTLPConfig(o.TraceEndpoint, version))
	if err != nil {
		return nil, nil, err
	}

	r := pipeline.New(a.host)
	r.Logger = log
	r.Tracer = provider.Tracer()
	if !o.Debug && isTerminal(a.stderr) {
		r.Progress = a.stderr
	}

	shutdown := func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.Warn("trace shutdown failed", "error", err)
		}
	}
	return r, shutdown, nil
}

// initLogger installs the process logger for o.
func (a *app) initLogger(o *config.Options) *slog.Logger {
	return logger.Init(logger.Config{
		Debug:   o.Debug,
		Format:  o.LogFormat,
		Version: version,
	}, a.stderr)
}

// generate runs the pipeline once and prints the outcome.
func (a *app) generate(ctx context.Context, r *pipeline.Runner, o *config.Options) error {
	res, err := r.Run(ctx, o)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings.Errors {
		a.printer.Warning("%v", w)
	}
	a.printer.PrintReport(res.Report())
	return nil
}

func (a *app) runGenerate(cmd *cobra.Command, args []string) error {
	if cmd.Flags().NFlag() == 0 {
		return cmd.Help()
	}

	o, err := a.loadOptions(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, shutdown, err := a.newRunner(ctx, o)
	if err != nil {
		return err
	}
	defer shutdown()

	return a.generate(ctx, r, o)
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
