package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wallpaperhub/sessions/core/config"
	"github.com/wallpaperhub/sessions/core/logger"
	"github.com/wallpaperhub/sessions/core/server"
	"github.com/wallpaperhub/sessions/core/session"
	"github.com/wallpaperhub/sessions/core/sessiontransport"
)

func serveCmd() *cobra.Command {
	var (
		memory     bool
		gcInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session service",
		Long: `Run the HTTP service: the admin API under /admin/sessions, Prometheus
metrics on /metrics, health checks under /health and the session endpoint
on /session.

With --gc-interval the process also acts as the garbage collection
scheduler and removes expired sessions periodically.

Examples:
  sessiond serve
  sessiond serve --memory
  sessiond serve --gc-interval=5m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withDeps(ctx, memory, func(d *deps) error {
				return runServe(ctx, d, gcInterval)
			})
		},
	}

	cmd.Flags().BoolVar(&memory, "memory", false, "Keep sessions in memory instead of PostgreSQL")
	cmd.Flags().DurationVar(&gcInterval, "gc-interval", 0, "Run garbage collection at this interval (0 disables)")

	return cmd
}

func runServe(ctx context.Context, d *deps, gcInterval time.Duration) error {
	var srvCfg server.Config
	if err := config.Load(&srvCfg); err != nil {
		return err
	}
	var cookieCfg sessiontransport.Config
	if err := config.Load(&cookieCfg); err != nil {
		return err
	}
	cookie, err := sessiontransport.NewCookie(cookieCfg)
	if err != nil {
		return err
	}
	srv, err := server.New(srvCfg, server.WithLogger(d.log))
	if err != nil {
		return err
	}

	d.log.InfoContext(ctx, "starting sessiond", logger.Version(version), slog.Bool("gc_scheduler", gcInterval > 0))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, newRouter(d, cookie))
	})
	if gcInterval > 0 {
		g.Go(func() error {
			runGCLoop(ctx, d.manager, gcInterval, d.log.With(logger.Component("gc_scheduler")))
			return nil
		})
	}
	return g.Wait()
}

// runGCLoop collects expired sessions every interval until ctx is done.
// Failures are logged and retried on the next tick.
func runGCLoop(ctx context.Context, mgr *session.Manager, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := mgr.GC(ctx)
			if err != nil {
				log.ErrorContext(ctx, "scheduled gc failed", logger.Error(err))
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "scheduled gc", logger.Count("removed", n))
			}
		}
	}
}
