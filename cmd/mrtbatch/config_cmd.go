package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrtbatch/mrtbatch/pkg/config"
)

func (a *app) configCmd() *cobra.Command {
	var save string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective settings",
		Long: `Print the settings obtained from the config files, the environment and the
command line. With --save they are written to a config file.

Examples:
  mrtbatch config
  mrtbatch config -t cscript -o /data/prm --save .mrtbatch.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.loadOptions(cmd)
			if err != nil {
				return err
			}
			if err := o.ValidateSettings(); err != nil {
				return err
			}

			if save != "" {
				if err := config.Save(save, o); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Saved settings to %s\n", save)
				return nil
			}

			data, err := yaml.Marshal(o)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "Write the settings to this file")
	return cmd
}
