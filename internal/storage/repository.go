package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coffeetea/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db            *sql.DB
	now           func() time.Time
	schemaVersion uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now, schemaVersion: version}, nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert implements records.RecordWriter
func (r *SQLiteRepository) Insert(ctx context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO beverage_records (id, consumed_at, beverage_type, quantity, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.Type.String(), rec.Quantity, r.now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite",
		"id", rec.ID,
		"beverage", rec.Type.String(),
		"quantity", rec.Quantity)
	return nil
}

// Delete implements records.RecordDeleter
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM beverage_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return core.ErrRecordNotFound
	}
	return nil
}

const selectColumns = `SELECT id, consumed_at, beverage_type, quantity FROM beverage_records`

// Get implements records.RecordReader
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrRecordNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListRange implements records.RecordReader
func (r *SQLiteRepository) ListRange(ctx context.Context, iv core.Interval) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE consumed_at >= ? AND consumed_at < ? ORDER BY consumed_at, id`,
		iv.Start.UnixNano(), iv.End.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return collect(rows)
}

// ListUnsynced implements records.SyncTracker
func (r *SQLiteRepository) ListUnsynced(ctx context.Context, limit int) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE synced_at IS NULL ORDER BY consumed_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced records: %w", err)
	}
	return collect(rows)
}

// MarkSynced implements records.SyncTracker
func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, at.UnixNano())
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := r.db.ExecContext(ctx,
		`UPDATE beverage_records SET synced_at = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("mark records synced: %w", err)
	}
	slog.InfoContext(ctx, "Records marked as synced", "count", len(ids))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (core.Record, error) {
	var (
		rec        core.Record
		consumedAt int64
		typ        string
	)
	if err := s.Scan(&rec.ID, &consumedAt, &typ, &rec.Quantity); err != nil {
		return core.Record{}, err
	}
	rec.Timestamp = time.Unix(0, consumedAt)
	rec.Type = core.ParseBeverageType(typ)
	return rec, nil
}

func collect(rows *sql.Rows) ([]core.Record, error) {
	defer rows.Close()
	out := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
