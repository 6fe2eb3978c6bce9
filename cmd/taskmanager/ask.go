package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DhimiMohamed/taskmanager/activity"
	"github.com/DhimiMohamed/taskmanager/comms"
)

func newAskCmd(opts *options) *cobra.Command {
	var (
		email  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask --user <email> <prompt...>",
		Short: "Send a prompt to the assistant on behalf of a user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.accounts.Store.GetUserByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("user %s: %w", email, err)
			}
			// Changes made from the CLI land in the activity log like API changes.
			a.bus.Subscribe(comms.AllTopics, func(ctx context.Context, ev *comms.Event) error {
				return a.activity.Insert(ctx, activity.FromEvent(ev))
			})

			resp := a.assistant.Respond(ctx, u.ID, strings.Join(args, " "))
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(out, resp.UserMessage)
			for _, d := range resp.Details {
				fmt.Fprintf(out, "  - %s\n", d)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "user", "u", "", "email of the acting user")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
