package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Hikari/internal/hikari/config"
	"github.com/bdobrica/Hikari/internal/hikari/store"
)

func newMailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Inspect the outgoing email audit trail",
	}
	history := &cobra.Command{
		Use:   "history USER_ID",
		Short: "Show the newest email sends of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cfg, err := config.Read(configPath(cmd))
			if err != nil {
				return err
			}
			st, err := store.New(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			sends, err := st.ListEmailSends(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(sends) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no emails sent by %s\n", args[0])
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SENT\tSTATUS\tTO\tFILES\tSUBJECT")
			for _, e := range sends {
				status := e.Status
				if e.Error != "" {
					status += " (" + e.Error + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					e.SentAt.Local().Format(time.DateTime), status, e.Recipient, e.Attachments, e.Subject)
			}
			return w.Flush()
		},
	}
	history.Flags().Int("limit", 20, "number of sends to show")
	cmd.AddCommand(history)
	return cmd
}
