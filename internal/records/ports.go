// Package records declares the storage ports the beverage service depends on.
package records

import (
	"context"
	"time"

	"coffeetea/internal/core"
)

// Ports for outbound adapters.
type (
	RecordWriter interface {
		// Insert stores a new record. Records are immutable once stored.
		Insert(ctx context.Context, r core.Record) error
	}

	RecordDeleter interface {
		// Delete removes the record with id, or returns core.ErrRecordNotFound.
		Delete(ctx context.Context, id string) error
	}

	RecordReader interface {
		Get(ctx context.Context, id string) (core.Record, error)
		// ListRange returns records with Start <= timestamp < End, oldest first.
		ListRange(ctx context.Context, iv core.Interval) ([]core.Record, error)
	}

	// SyncTracker is implemented by stores that remember which records have
	// been exported to the spreadsheet.
	SyncTracker interface {
		ListUnsynced(ctx context.Context, limit int) ([]core.Record, error)
		MarkSynced(ctx context.Context, ids []string, at time.Time) error
	}

	// Store is the full persistence surface of the beverage service.
	Store interface {
		RecordWriter
		RecordDeleter
		RecordReader
	}
)
