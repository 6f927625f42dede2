// Package worker exports beverage records to the spreadsheet, either as
// record events arrive or by polling the store for records not yet exported.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coffeetea/internal/amqp"
	"coffeetea/internal/core"
	"coffeetea/internal/log"
	"coffeetea/internal/records"
)

// SheetExporter is the spreadsheet side of the export.
type SheetExporter interface {
	AppendRecords(ctx context.Context, recs []core.Record) (string, error)
	DeleteRecord(ctx context.Context, id string) error
}

// Config holds the export loop settings.
type Config struct {
	// PollInterval is how often unsynced records are looked up (default: 1m)
	PollInterval time.Duration

	// BatchSize is the max number of records appended per cycle (default: 50)
	BatchSize int

	// StartupBatches bounds the catch-up pass run on Start (default: 5)
	StartupBatches int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:   time.Minute,
		BatchSize:      50,
		StartupBatches: 5,
	}
}

// ExportWorker pushes records to the spreadsheet and marks them synced.
type ExportWorker struct {
	tracker records.SyncTracker
	sheets  SheetExporter
	config  Config
	logger  *log.Logger
	now     func() time.Time

	// one export at a time, so an event and a poll never append the same row
	exportMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportWorker builds a worker. tracker may be nil, in which case only
// records carried by events are exported and the poll loop is idle.
func NewExportWorker(tracker records.SyncTracker, sheets SheetExporter, config Config, logger *log.Logger) *ExportWorker {
	def := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.StartupBatches <= 0 {
		config.StartupBatches = def.StartupBatches
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		tracker: tracker,
		sheets:  sheets,
		config:  config,
		logger:  logger.WithComponent(log.ComponentWorker),
		now:     time.Now,
	}
}

// HandleRecordEvent is the AMQP consumer callback.
func (w *ExportWorker) HandleRecordEvent(ctx context.Context, ev *amqp.RecordEvent) error {
	w.logger.InfoContext(ctx, "Processing record event",
		log.FieldMessageType, string(ev.Type),
		log.FieldRecordID, ev.RecordID)

	switch ev.Type {
	case amqp.EventRecordCreated:
		if w.tracker != nil {
			_, err := w.ExportPending(ctx)
			return err
		}
		w.exportMu.Lock()
		defer w.exportMu.Unlock()
		ref, err := w.sheets.AppendRecords(ctx, []core.Record{ev.Record()})
		if err != nil {
			return fmt.Errorf("append record to sheet: %w", err)
		}
		w.logger.InfoContext(ctx, "Record exported",
			log.FieldRecordID, ev.RecordID,
			log.FieldSheetsRef, ref)
		return nil

	case amqp.EventRecordDeleted:
		w.exportMu.Lock()
		defer w.exportMu.Unlock()
		if err := w.sheets.DeleteRecord(ctx, ev.RecordID); err != nil {
			return fmt.Errorf("delete record from sheet: %w", err)
		}
		w.logger.InfoContext(ctx, "Record removed from sheet", log.FieldRecordID, ev.RecordID)
		return nil

	default:
		return fmt.Errorf("unsupported event type %q", ev.Type)
	}
}

// ExportPending appends one batch of unsynced records and marks them synced.
// It returns how many records were exported.
func (w *ExportWorker) ExportPending(ctx context.Context) (int, error) {
	if w.tracker == nil {
		return 0, nil
	}
	w.exportMu.Lock()
	defer w.exportMu.Unlock()

	pending, err := w.tracker.ListUnsynced(ctx, w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unsynced records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ref, err := w.sheets.AppendRecords(ctx, pending)
	if err != nil {
		return 0, fmt.Errorf("append records to sheet: %w", err)
	}

	ids := make([]string, len(pending))
	for i, r := range pending {
		ids[i] = r.ID
	}
	if err := w.tracker.MarkSynced(ctx, ids, w.now()); err != nil {
		// rows are already in the sheet; the next cycle would duplicate them
		w.logger.ErrorContext(ctx, "Failed to mark records as synced",
			log.FieldError, err,
			log.FieldBatchSize, len(ids),
			log.FieldSheetsRef, ref)
		return len(pending), fmt.Errorf("mark synced: %w", err)
	}

	w.logger.InfoContext(ctx, "Exported pending records",
		log.FieldBatchSize, len(pending),
		log.FieldSheetsRef, ref)
	return len(pending), nil
}

// StartupExport drains the backlog left by downtime or lost messages.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	total := 0
	for i := 0; i < w.config.StartupBatches; i++ {
		n, err := w.ExportPending(ctx)
		total += n
		if err != nil {
			return err
		}
		if n < w.config.BatchSize {
			break
		}
	}
	if total == 0 {
		w.logger.InfoContext(ctx, "No pending records found on startup")
		return nil
	}
	w.logger.InfoContext(ctx, "Startup export completed", "exported", total)
	return nil
}

// Start begins the polling loop. Returns an error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("export worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Export worker started",
		"poll_interval", w.config.PollInterval,
		log.FieldBatchSize, w.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Export worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *ExportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Run starts the loop and blocks until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return w.Stop(stopCtx)
}

func (w *ExportWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.ExportPending(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
			}
		}
	}
}
