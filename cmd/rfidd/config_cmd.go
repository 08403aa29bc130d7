package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rfidd/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	var format string
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration (file, env and defaults merged)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			b, err := config.Marshal(cfg, format)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	printCmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml|json|toml")
	cmd.AddCommand(printCmd)
	return cmd
}
