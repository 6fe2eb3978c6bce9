package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DhimiMohamed/taskmanager/config"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "taskmanager",
		Short:         "Task management server with an AI assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("TASKMANAGER_CONFIG"),
		"path to a YAML config file (defaults, .env and TASKMANAGER_* variables apply without one)")

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newRemindCmd(opts),
		newUserCmd(opts),
		newModelsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
