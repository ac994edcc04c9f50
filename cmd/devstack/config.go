package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/devstack"
)

func configCmd() *cobra.Command {
	var (
		flags    devFlags
		declared bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the app configuration after defaults, DEVSTACK_* variables
and flags have been applied.

By default the resolved routers and bundlers are printed as JSON.
With --declared the configuration is printed as YAML in the form it
is declared in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd.Flags().Changed("env-file"))
			if err != nil {
				return err
			}

			if declared {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			}

			app, err := devstack.CreateAppFromConfig(cfg)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(app.Config())
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&declared, "declared", false, "Print the declared configuration as YAML")

	return cmd
}
