package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"coffeetea/internal/amqp"
	"coffeetea/internal/backend"
	"coffeetea/internal/cli"
	"coffeetea/internal/config"
	"coffeetea/internal/log"
	"coffeetea/internal/records"
	gsheet "coffeetea/internal/sheets/google"
	"coffeetea/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	ctx, stop := cli.ShutdownContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	logger.Info("Starting coffeetea-worker")

	if cfg.GoogleSpreadsheetID == "" {
		return errors.New("GOOGLE_SPREADSHEET_ID is required for the export worker")
	}
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required for the export worker")
	}

	cal, err := cfg.Calendar()
	if err != nil {
		return err
	}

	// Only a shared SQLite file lets the worker see what the server stored.
	// A memory backend lives in the server process, so events carry the data.
	var tracker records.SyncTracker
	if cfg.DataBackend == string(backend.SQLiteBackend) {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
		if err != nil {
			return err
		}
		defer be.Cleanup()
		tracker = be.Tracker
	} else {
		logger.Info("Memory backend configured, exporting from event payloads only")
	}

	sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, cal.Location, logger,
		gsheet.CredentialOptions(cfg.GoogleCredentialsFile)...)
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		return fmt.Errorf("prepare sheet header: %w", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	w := worker.NewExportWorker(tracker, sheetsClient, worker.Config{
		PollInterval: cfg.ExportInterval,
		BatchSize:    cfg.ExportBatchSize,
	}, logger)

	logger.Info("Performing startup export check...")
	if err := w.StartupExport(ctx); err != nil {
		// the poll loop retries
		logger.Error("Failed startup export", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeRecordEvents(gctx, w.HandleRecordEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error { return w.Run(gctx) })
	return g.Wait()
}
