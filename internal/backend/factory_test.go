package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coffeetea/internal/config"
	"coffeetea/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unsupported backend")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"memory with seed", Config{Type: MemoryBackend, SeedFile: "seed.yaml"}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sqlite with seed", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db", SeedFile: "s"}, true},
		{"unknown", Config{Type: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 2 || got[0] != "sqlite" || got[1] != "memory" {
		t.Fatalf("unexpected backend types: %v", got)
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	content := "records:\n  - id: a\n    type: tea\n    quantity: 2\n    timestamp: 2024-03-05T08:00:00Z\n"
	if err := os.WriteFile(seed, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: seed})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if res.Type != MemoryBackend || res.Tracker == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := res.Ready(ctx); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	r, err := res.Store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get seeded record: %v", err)
	}
	if r.Type != core.MilkTea || r.Quantity != 2 {
		t.Fatalf("unexpected seeded record: %+v", r)
	}
}

func TestCreateMemoryBackendMissingSeed(t *testing.T) {
	cfg := Config{Type: MemoryBackend, SeedFile: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := NewFactory(nil).CreateBackend(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "coffeetea.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if err := res.Ready(ctx); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	rec := core.Record{ID: "r1", Type: core.Coffee, Quantity: 1, Timestamp: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)}
	if err := res.Store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	pending, err := res.Tracker.ListUnsynced(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnsynced: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "r1" {
		t.Fatalf("expected r1 pending, got %+v", pending)
	}
}
