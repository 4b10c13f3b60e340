package main

import (
	"github.com/spf13/cobra"

	"github.com/mrtbatch/mrtbatch/pkg/catalog"
	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/export"
	"github.com/mrtbatch/mrtbatch/pkg/storage"
	"github.com/mrtbatch/mrtbatch/pkg/validation"
)

func (a *app) catalogCmd() *cobra.Command {
	var normalized bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print how the input files are grouped",
		Long: `Read the list file or input directory and print the short name, date and
path groups without writing any parameter files. With --manifest the grouping
is also exported.

Examples:
  mrtbatch catalog -d /data/modis
  mrtbatch catalog -f files.txt --normalized
  mrtbatch catalog -f files.txt --manifest groups.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCatalog(cmd, normalized)
		},
	}
	cmd.Flags().BoolVar(&normalized, "normalized", false, "Print the comparison keys instead of the names as read")
	return cmd
}

func (a *app) runCatalog(cmd *cobra.Command, normalized bool) error {
	o, err := a.loadOptions(cmd)
	if err != nil {
		return err
	}

	switch {
	case o.ListFile == "" && o.Directory == "":
		return mrterrors.New(mrterrors.CodeMissingInput,
			"either the -f,--file switch or the -d,--dir switch is required")
	case o.ListFile != "" && o.Directory != "":
		return mrterrors.New(mrterrors.CodeConflictingInputs,
			"both the -f,--file and -d,--dir switch cannot be used together, please use one or the other")
	}

	st, err := o.ResolveScriptType(a.host)
	if err != nil {
		return err
	}

	log := a.initLogger(o)
	reader := catalog.NewReader(a.host, st, catalog.PolicyFor(o.SkipBad))
	reader.Logger = log

	var cat *catalog.Catalog
	if o.ListFile != "" {
		if err := validation.ValidateInputFile("file", o.ListFile); err != nil {
			return err
		}
		cat, err = reader.ParseListFile(o.ListFile)
	} else {
		if err := validation.ValidateInputDir(o.Directory); err != nil {
			return err
		}
		cat, err = reader.ParseDirectory(o.Directory)
	}
	if err != nil {
		return err
	}

	if err := cat.WriteTree(a.stdout, normalized); err != nil {
		return err
	}

	if o.Manifest == "" {
		return nil
	}
	m := export.Build(version, cat, nil)
	m.ScriptType = st.String()
	store := storage.NewWriter(storage.DefaultS3Config(o.S3Region, o.S3Endpoint))
	return export.Publish(cmd.Context(), store, o.Manifest, m)
}
