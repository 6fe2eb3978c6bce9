package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DhimiMohamed/taskmanager/provider"
)

type modelLister interface {
	ListModels(ctx context.Context) ([]provider.ModelInfo, error)
}

func newModelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models served by the configured AI provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			p, err := newProvider(cmd.Context(), cfg.AI)
			if err != nil {
				return err
			}
			lister, ok := p.(modelLister)
			if !ok {
				return fmt.Errorf("provider %q cannot list models", p.Name())
			}
			models, err := lister.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCONTEXT")
			for _, m := range models {
				marker := ""
				if m.ID == cfg.AI.Model {
					marker = " *"
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%d\n", m.ID, marker, m.Name, m.ContextWindow)
			}
			return tw.Flush()
		},
	}
}
