package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "***"

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			if cfg.Notifications.Telegram.BotToken != "" {
				cfg.Notifications.Telegram.BotToken = redacted
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK: %d sources (%d enabled), %s storage\n",
				len(cfg.Sources), len(cfg.EnabledSources()), cfg.Database.Driver)
			return nil
		},
	})
	return cmd
}
