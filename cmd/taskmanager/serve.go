package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DhimiMohamed/taskmanager/activity"
	"github.com/DhimiMohamed/taskmanager/internal/version"
	"github.com/DhimiMohamed/taskmanager/reminder"
	"github.com/DhimiMohamed/taskmanager/server"
	"github.com/DhimiMohamed/taskmanager/server/ws"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event stream and reminder dispatcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	logger := a.logger
	logger.Info("starting taskmanager",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("ai_provider", a.provider.Name()),
	)

	hub := ws.NewHub(logger, a.access.SeesEvent)
	defer hub.Attach(a.bus)()

	recorder := activity.NewRecorder(a.activity, logger, 0)
	defer recorder.Attach(a.bus)()

	srv := server.New(*a.cfg, version.Version, logger, a.handlers())
	srv.SetHub(hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Stop(sctx)
	})
	g.Go(func() error { return recorder.Run(gctx) })
	if a.cfg.Reminders.Enabled {
		d := reminder.NewDispatcher(a.reminders, a.notifier(), a.bus, logger, a.cfg.Reminders.Interval)
		g.Go(func() error { return d.Run(gctx) })
	}

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}
