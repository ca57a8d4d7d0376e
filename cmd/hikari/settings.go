package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Hikari/internal/hikari/config"
	"github.com/bdobrica/Hikari/internal/hikari/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "List or clear persisted runtime settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every stored key and value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSettings(cmd, func(_ config.Config, ss settings.Store) error {
				values, err := ss.List(cmd.Context())
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(values))
				for k := range values {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, values[k])
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a stored setting so its configured default applies again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, func(_ config.Config, ss settings.Store) error {
				if err := ss.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unset %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}
