// Package scheduler runs the daily rollover at local midnight.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"coffeetea/internal/core"
	"coffeetea/internal/log"
)

// MidnightSchedule fires once a day at 00:00 in the scheduler's location.
const MidnightSchedule = "0 0 * * *"

// RolloverFunc is called on each day change.
type RolloverFunc func(ctx context.Context)

// Rollover calls its hooks at every local midnight of the calendar.
type Rollover struct {
	cron    *cron.Cron
	hooks   []RolloverFunc
	timeout time.Duration
	logger  *log.Logger
}

func NewRollover(cal core.Calendar, logger *log.Logger, hooks ...RolloverFunc) *Rollover {
	loc := cal.Location
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Rollover{
		cron:    cron.New(cron.WithLocation(loc)),
		hooks:   hooks,
		timeout: time.Minute,
		logger:  logger.WithComponent(log.ComponentScheduler),
	}
}

// Start registers the midnight job and starts the cron runner.
func (r *Rollover) Start() error {
	if _, err := r.cron.AddFunc(MidnightSchedule, func() { r.Fire(context.Background()) }); err != nil {
		return fmt.Errorf("failed to add rollover job: %w", err)
	}
	r.cron.Start()
	r.logger.Info("Rollover scheduler started", "schedule", MidnightSchedule)
	return nil
}

// Stop waits for a running job to finish.
func (r *Rollover) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("Rollover scheduler stopped")
}

// Next is the time of the next scheduled rollover, zero before Start.
func (r *Rollover) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Fire runs every hook once.
func (r *Rollover) Fire(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	r.logger.InfoContext(ctx, "Running daily rollover", log.FieldOperation, log.OpRollover)
	for _, h := range r.hooks {
		h(ctx)
	}
}

// Run fires once for the current day, then blocks until ctx is cancelled.
func (r *Rollover) Run(ctx context.Context) error {
	r.Fire(ctx)
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}
