package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/rcnneval/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "init [file]",
		Short: "Write a configuration file with every default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.GenerateDefaultConfigFile(path); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return err
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if used := a.v.ConfigFileUsed(); used != "" {
				if _, err := fmt.Fprintf(out, "# %s\n", used); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintf(out, "dataset: %s\nis_rpn: %t\noracle: %s\noutput_dir: %s\n",
				a.cfg.Dataset, a.cfg.IsRPN, a.cfg.Oracle.Backend, a.cfg.OutputDir)
			return err
		},
	})
	return configCmd
}
