package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"coffeetea/internal/cache"
	"coffeetea/internal/cli"
	apphttp "coffeetea/internal/http"
	"coffeetea/internal/log"
	"coffeetea/internal/scheduler"
)

const cacheCleanupInterval = time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the midnight rollover",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := cli.ShutdownContext(context.Background())
			defer stop()

			app, err := loadApp(ctx, log.ComponentApp)
			if err != nil {
				return err
			}
			defer app.Close()
			return serve(ctx, app)
		},
	}
}

func serve(ctx context.Context, app *cli.App) error {
	logger := app.Logger

	srv := apphttp.NewServer(":"+app.Config.Port, app.Service, apphttp.ServerOptions{
		Logger: logger,
		Ready:  app.Backend.Ready,
	})

	caches := cache.NewManager(logger)
	caches.Register(app.StatsCache)

	rollover := scheduler.NewRollover(app.Service.Calendar(), logger, app.Service.Rollover)

	logger.Info("Starting coffeetea server",
		"port", app.Config.Port,
		"backend", app.Backend.Type.String(),
		"timezone", app.Service.Calendar().Location.String(),
		"warning_threshold", app.Config.WarningThreshold)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return rollover.Run(gctx) })
	g.Go(func() error { return caches.Run(gctx, cacheCleanupInterval) })

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
