package main

import (
	"github.com/spf13/cobra"

	"github.com/bdobrica/Hikari/common/environment"
	"github.com/bdobrica/Hikari/internal/hikari/config"
	"github.com/bdobrica/Hikari/internal/hikari/observability"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hikari",
		Short:         "Modular Telegram assistant: email, chat with memory, transcription",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().String("config", environment.StringOr("HIKARI_CONFIG", ""), "YAML config file (optional; env vars override it)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMemoryCmd())
	cmd.AddCommand(newSettingsCmd())
	cmd.AddCommand(newMailCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

// loadConfig loads and validates the config and installs the logger.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return cfg, err
	}
	observability.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
