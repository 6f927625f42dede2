package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"coffeetea/internal/amqp"
	"coffeetea/internal/cache"
	"coffeetea/internal/core"
	"coffeetea/internal/log"
	"coffeetea/internal/records"
)

var (
	// ErrDrinkWarning is returned (wrapped in a *WarningError) when a record
	// would exceed the daily threshold and the caller did not confirm.
	ErrDrinkWarning = errors.New("daily drink threshold reached")

	ErrFutureNavigation = errors.New("cannot navigate into a future month")
)

// DefaultWarningThreshold is the number of drinks already consumed on a day
// from which the next add asks for confirmation.
const DefaultWarningThreshold = 2

// WarningError carries the numbers behind a drink warning.
type WarningError struct {
	Type      core.BeverageType
	Consumed  int
	Threshold int
}

func (e *WarningError) Error() string {
	return fmt.Sprintf("already had %d drinks today (threshold %d); confirm to add %s", e.Consumed, e.Threshold, e.Type.DisplayName())
}

func (e *WarningError) Unwrap() error { return ErrDrinkWarning }

// EventPublisher announces record changes, typically over AMQP.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, ev *amqp.RecordEvent) error
}

type AddRequest struct {
	Type     core.BeverageType
	Quantity int
	// Timestamp defaults to now when zero.
	Timestamp time.Time
	// Confirm adds the record even past the warning threshold.
	Confirm bool
}

// StatsReport is the aggregated view of one period.
type StatsReport struct {
	Period   core.Period
	Interval core.Interval
	Buckets  []core.DrinkStats
	Totals   map[core.BeverageType]int
}

// Total sums every type in the report.
func (r StatsReport) Total() int {
	n := 0
	for _, v := range r.Totals {
		n += v
	}
	return n
}

type Options struct {
	Calendar         core.Calendar
	WarningThreshold int
	Cache            cache.Cache[StatsReport]
	Publisher        EventPublisher
	Logger           *log.Logger
	Now              func() time.Time
	NewID            func() string
}

// BeverageService owns the record collection. All mutations go through it so
// the stats cache and subscribers stay consistent.
type BeverageService struct {
	store     records.Store
	cal       core.Calendar
	threshold int
	stats     cache.Cache[StatsReport]
	publisher EventPublisher
	logger    *log.Logger
	slog      *log.StructuredLogger
	now       func() time.Time
	newID     func() string

	// serialises the threshold check with the insert
	mu           sync.Mutex
	acknowledged map[string]bool
	// bumped under mu by every mutation; Stats only caches a report whose
	// generation is still current
	generation uint64
}

func NewBeverageService(store records.Store, opts Options) *BeverageService {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewLRUCache[StatsReport](64, 5*time.Minute)
	}
	if opts.Calendar.Location == nil {
		opts.Calendar.Location = time.Local
	}
	logger := opts.Logger.WithComponent(log.ComponentBeverage)
	return &BeverageService{
		store:        store,
		cal:          opts.Calendar,
		threshold:    opts.WarningThreshold,
		stats:        opts.Cache,
		publisher:    opts.Publisher,
		logger:       logger,
		slog:         log.NewStructuredLogger(logger),
		now:          opts.Now,
		newID:        opts.NewID,
		acknowledged: make(map[string]bool),
	}
}

func (s *BeverageService) Calendar() core.Calendar { return s.cal }

func (s *BeverageService) Now() time.Time { return s.cal.In(s.now()) }

// AddRecord validates and stores a new record. When the record's day already
// holds WarningThreshold or more drinks and neither req.Confirm nor an earlier
// confirmation for that day is present, it returns a *WarningError.
func (s *BeverageService) AddRecord(ctx context.Context, req AddRequest) (core.Record, error) {
	if req.Quantity == 0 {
		req.Quantity = core.MinQuantity
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now()
	}
	rec := core.Record{
		ID:        s.newID(),
		Timestamp: req.Timestamp,
		Type:      req.Type,
		Quantity:  req.Quantity,
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.cal.StartOfDay(rec.Timestamp)
	dayKey := day.Format(time.DateOnly)
	if s.threshold > 0 && !s.acknowledged[dayKey] {
		consumed, err := s.consumedOn(ctx, day)
		if err != nil {
			return core.Record{}, err
		}
		if consumed >= s.threshold {
			if !req.Confirm {
				s.logger.InfoContext(ctx, "Drink warning raised",
					log.FieldTodayTotal, consumed,
					log.FieldBeverage, rec.Type.String())
				return core.Record{}, &WarningError{Type: rec.Type, Consumed: consumed, Threshold: s.threshold}
			}
			s.acknowledged[dayKey] = true
		}
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return core.Record{}, fmt.Errorf("save record: %w", err)
	}
	s.generation++
	s.stats.Purge()
	s.slog.LogRecordAdded(ctx, rec.ID, rec.Type.String(), rec.Quantity, rec.Timestamp)

	s.publish(ctx, amqp.NewRecordCreated(rec))
	return rec, nil
}

func (s *BeverageService) consumedOn(ctx context.Context, day time.Time) (int, error) {
	recs, err := s.store.ListRange(ctx, s.cal.PeriodBoundaries(core.PeriodDay, day))
	if err != nil {
		return 0, fmt.Errorf("load day records: %w", err)
	}
	return core.SumQuantity(recs), nil
}

// DeleteRecord removes a record; core.ErrRecordNotFound when absent.
func (s *BeverageService) DeleteRecord(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrEmptyID
	}
	s.mu.Lock()
	err := s.store.Delete(ctx, id)
	if err == nil {
		s.generation++
		s.stats.Purge()
	}
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			return err
		}
		return fmt.Errorf("delete record: %w", err)
	}
	s.logger.InfoContext(ctx, "Record deleted", log.FieldRecordID, id, log.FieldOperation, log.OpDelete)

	s.publish(ctx, amqp.NewRecordDeleted(id))
	return nil
}

// publish is best effort: the record is already stored.
func (s *BeverageService) publish(ctx context.Context, ev *amqp.RecordEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, ev); err != nil {
		s.slog.LogError(ctx, "Failed to publish record event", err, log.ComponentAMQP, log.OpSync,
			log.NewFields().With(log.FieldRecordID, ev.RecordID))
	}
}

// RecordsForDay lists the records of the local day containing day, oldest
// first.
func (s *BeverageService) RecordsForDay(ctx context.Context, day time.Time) ([]core.Record, error) {
	iv := s.cal.PeriodBoundaries(core.PeriodDay, day)
	recs, err := s.store.ListRange(ctx, iv)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return core.FilterRange(recs, iv), nil
}

// Stats aggregates the period containing ref. Results are cached until the
// next mutation or rollover.
func (s *BeverageService) Stats(ctx context.Context, p core.Period, ref time.Time) (StatsReport, error) {
	if !p.Valid() {
		return StatsReport{}, fmt.Errorf("invalid period %q", p)
	}
	iv := s.cal.PeriodBoundaries(p, ref)
	key := string(p) + ":" + strconv.FormatInt(iv.Start.Unix(), 10)
	if r, ok := s.stats.Get(key); ok {
		return r, nil
	}
	gen := s.currentGeneration()

	recs, err := s.store.ListRange(ctx, iv)
	if err != nil {
		return StatsReport{}, fmt.Errorf("list records: %w", err)
	}
	buckets := s.cal.BucketsForPeriod(recs, p, ref)
	report := StatsReport{
		Period:   p,
		Interval: iv,
		Buckets:  buckets,
		Totals:   core.TotalsByType(buckets),
	}
	s.cacheReport(key, report, gen)

	s.logger.DebugContext(ctx, "Stats computed",
		log.FieldPeriod, string(p),
		log.FieldRefDate, ref.Format(time.DateOnly),
		"records", len(recs))
	return report, nil
}

func (s *BeverageService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// cacheReport stores report unless a mutation committed after gen was read.
func (s *BeverageService) cacheReport(key string, report StatsReport, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.stats.Set(key, report)
	}
}

// Navigate moves ref one period in dir. Moving forward into a month after
// the current one fails with ErrFutureNavigation.
func (s *BeverageService) Navigate(p core.Period, ref time.Time, dir core.Direction) (time.Time, error) {
	if !p.Valid() {
		return time.Time{}, fmt.Errorf("invalid period %q", p)
	}
	next := s.cal.AdvancePeriod(p, ref, dir)
	if dir == core.Next && !s.cal.AllowsForward(next, s.now()) {
		return ref, ErrFutureNavigation
	}
	return next, nil
}

// MonthCalendar summarises every day of the month containing month.
func (s *BeverageService) MonthCalendar(ctx context.Context, month time.Time) ([]core.DaySummary, error) {
	iv := s.cal.PeriodBoundaries(core.PeriodMonth, month)
	recs, err := s.store.ListRange(ctx, iv)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return s.cal.MonthDays(recs, month), nil
}

// ConsumedToday returns today's total quantity and the warning threshold.
func (s *BeverageService) ConsumedToday(ctx context.Context) (consumed, threshold int, err error) {
	consumed, err = s.consumedOn(ctx, s.cal.StartOfDay(s.now()))
	return consumed, s.threshold, err
}

// Rollover runs at local midnight: cached reports are dropped and earlier
// warning confirmations are forgotten.
func (s *BeverageService) Rollover(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.stats.Purge()
	today := s.cal.StartOfDay(s.now()).Format(time.DateOnly)
	for day := range s.acknowledged {
		if day < today {
			delete(s.acknowledged, day)
		}
	}
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Daily rollover completed", log.FieldOperation, log.OpRollover)
}
