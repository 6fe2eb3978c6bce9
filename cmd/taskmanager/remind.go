package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DhimiMohamed/taskmanager/reminder"
)

func newRemindCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Deliver every due reminder once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			d := reminder.NewDispatcher(a.reminders, a.notifier(), a.bus, a.logger, cfg.Reminders.Interval)
			n, err := d.Sweep(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep reminders: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d reminder(s)\n", n)
			return nil
		},
	}
}
