package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrtbatch/mrtbatch/pkg/catalog"
	"github.com/mrtbatch/mrtbatch/pkg/watch"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the batch whenever the inputs change",
		Long: `Run the generator once, then again every time the list file, the input
directory or the template changes. Press Ctrl+C to stop.

Examples:
  mrtbatch watch -d /data/modis -p template.prm
  mrtbatch watch -f files.txt -p template.prm --manifest run.json`,
		RunE: a.runWatch,
	}
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	o, err := a.loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := o.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	r, shutdown, err := a.newRunner(ctx, o)
	if err != nil {
		return err
	}
	defer shutdown()

	w, err := watch.NewWatcher(o.WatchDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.WatchFile(o.Template); err != nil {
		return err
	}
	if o.ListFile != "" {
		err = w.WatchFile(o.ListFile)
	} else {
		w.Filter = func(path string) bool { return catalog.LooksLikeHDF(filepath.Base(path)) }
		err = w.WatchDir(o.Directory)
	}
	if err != nil {
		return err
	}
	st, err := o.ResolveScriptType(a.host)
	if err != nil {
		return err
	}
	w.Ignore(o.BatchFileName(st))
	if o.Manifest != "" {
		w.Ignore(o.Manifest)
	}

	w.OnChange = func(path string) error {
		fmt.Fprintf(a.stdout, "Change detected: %s\n", path)
		return a.generate(ctx, r, o)
	}
	w.OnError = func(path string, err error) {
		a.printer.Error(err)
	}

	// The first run reports its error but does not stop watching.
	if err := a.generate(ctx, r, o); err != nil {
		a.printer.Error(err)
	}
	fmt.Fprintln(a.stdout, "Watching for changes (Ctrl+C to stop)...")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(ctx)
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case <-sigChan:
			fmt.Fprintln(a.stdout, "\nStopping watch...")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
