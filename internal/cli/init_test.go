package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"coffeetea/internal/backend"
	"coffeetea/internal/config"
	"coffeetea/internal/core"
	"coffeetea/internal/log"
	"coffeetea/internal/services"
)

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "memory")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Port)
	}

	t.Setenv("DATA_BACKEND", "sheets")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug"}, log.ComponentCLI)
	if logger.Component() != log.ComponentCLI {
		t.Fatalf("unexpected component %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug level should be enabled")
	}
}

func TestNewAppMemory(t *testing.T) {
	cfg := config.Load()
	cfg.DataBackend = "memory"
	cfg.AMQPURL = ""
	cfg.Timezone = "UTC"

	app, err := NewApp(context.Background(), cfg, log.Discard())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	if app.Backend.Type != backend.MemoryBackend {
		t.Fatalf("expected memory backend, got %s", app.Backend.Type)
	}
	if app.Publisher != nil {
		t.Fatal("publisher should be nil without AMQP_URL")
	}

	ctx := context.Background()
	if _, err := app.Service.AddRecord(ctx, services.AddRequest{Type: core.Coffee}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	consumed, threshold, err := app.Service.ConsumedToday(ctx)
	if err != nil || consumed != 1 || threshold != cfg.WarningThreshold {
		t.Fatalf("ConsumedToday = %d, %d, %v", consumed, threshold, err)
	}
}

func TestNewAppSQLite(t *testing.T) {
	cfg := config.Load()
	cfg.DataBackend = "sqlite"
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "app.db")
	cfg.AMQPURL = ""
	cfg.Timezone = "UTC"

	app, err := NewApp(context.Background(), cfg, log.Discard())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := app.Backend.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewAppRejectsBadTimezone(t *testing.T) {
	cfg := config.Load()
	cfg.Timezone = "Mars/Olympus"
	if _, err := NewApp(context.Background(), cfg, log.Discard()); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
