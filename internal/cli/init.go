// Package cli provides common CLI initialization utilities shared by
// cmd/coffeetea and cmd/coffeetea-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"coffeetea/internal/amqp"
	"coffeetea/internal/backend"
	"coffeetea/internal/cache"
	"coffeetea/internal/config"
	"coffeetea/internal/log"
	"coffeetea/internal/services"
)

const statsCacheSize = 128

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig reads the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from the configured level and
// installs it as the slog default. Output goes to stderr so command output
// on stdout stays clean.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	lc := log.DefaultConfig()
	lc.Level = level
	lc.Component = component
	lc.Output = os.Stderr
	logger := log.New(lc)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	log.SetDefault(logger)
	return logger
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// App bundles the wired dependencies of a coffeetea process.
type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Backend    *backend.BackendResult
	StatsCache *cache.LRUCache[services.StatsReport]
	Publisher  *amqp.Client
	Service    *services.BeverageService
}

// NewApp creates the backend, the optional AMQP publisher and the beverage
// service. A publisher that cannot connect is logged and skipped.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	cal, err := cfg.Calendar()
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Backend:    be,
		StatsCache: cache.NewLRUCache[services.StatsReport](statsCacheSize, cfg.CacheTTL),
	}

	opts := services.Options{
		Calendar:         cal,
		WarningThreshold: cfg.WarningThreshold,
		Cache:            app.StatsCache,
		Logger:           logger,
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			app.Publisher = client
			opts.Publisher = client
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	app.Service = services.NewBeverageService(be.Store, opts)
	return app, nil
}

// Close releases the publisher and the backend.
func (a *App) Close() error {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}
	if a.Backend != nil && a.Backend.Cleanup != nil {
		return a.Backend.Cleanup()
	}
	return nil
}
