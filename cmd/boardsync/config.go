package main

import (
	"github.com/spf13/cobra"

	"github.com/ritualarchive/boardsync/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: "maint",
		Short:   "Inspect the effective configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, config file, environment and flags
are applied. The output is a valid config file; the source password is
redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return a.cfg.Dump(cmd.OutOrStdout(), format)
		},
	}
	show.Flags().String("format", config.FormatTOML, "Output format: toml or yaml")

	cmd.AddCommand(show)
	return cmd
}
