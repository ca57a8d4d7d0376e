package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Hikari/common/version"
	"github.com/bdobrica/Hikari/internal/hikari/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			slog.Info("starting hikari", "version", version.Version, "commit", version.GitCommit)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, app.Deps{}, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-hup:
						slog.Info("SIGHUP: reloading memory mode")
						a.ReloadMode(ctx)
					}
				}
			}()

			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			slog.Info("shutting down")
			return nil
		},
	}
}

