package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Hikari/internal/hikari/app"
	"github.com/bdobrica/Hikari/internal/hikari/config"
	"github.com/bdobrica/Hikari/internal/hikari/memory"
	"github.com/bdobrica/Hikari/internal/hikari/settings"
	"github.com/bdobrica/Hikari/internal/hikari/store"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or flip the chat memory mode",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the persisted memory mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withModeController(cmd, func(cfg config.Config, mc *memory.ModeController) error {
				fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\nbackend: %s\nsettings: %s\n",
					modeName(mc.Enabled()), cfg.Memory.Backend, cfg.Settings.Backend)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Switch between hybrid and session-only memory",
		Long: "Switch between hybrid and session-only memory. A running bot picks the change up " +
			"within 30 seconds, or at once on SIGHUP.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withModeController(cmd, func(_ config.Config, mc *memory.ModeController) error {
				enabled, err := mc.Toggle(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\n", modeName(enabled))
				return nil
			})
		},
	})
	return cmd
}

func withModeController(cmd *cobra.Command, fn func(config.Config, *memory.ModeController) error) error {
	return withSettings(cmd, func(cfg config.Config, ss settings.Store) error {
		return fn(cfg, memory.NewModeController(cmd.Context(), ss, cfg.Memory.HybridDefault, nil))
	})
}

// withSettings opens the settings store the server uses. The database is
// only opened for the sqlite backend.
func withSettings(cmd *cobra.Command, fn func(config.Config, settings.Store) error) error {
	cfg, err := config.Read(configPath(cmd))
	if err != nil {
		return err
	}
	var st *store.Store
	if cfg.Settings.Backend != config.SettingsFile {
		st, err = store.New(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()
	}
	ss, err := app.OpenSettings(cfg, st)
	if err != nil {
		return err
	}
	return fn(cfg, ss)
}

func modeName(hybrid bool) string {
	if hybrid {
		return string(memory.SourceHybrid)
	}
	return string(memory.SourceSession)
}
