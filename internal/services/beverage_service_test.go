package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coffeetea/internal/amqp"
	"coffeetea/internal/cache"
	"coffeetea/internal/core"
	"coffeetea/internal/records/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.RecordEvent
	err    error
}

func (p *recordingPublisher) PublishRecordEvent(_ context.Context, ev *amqp.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type fixture struct {
	svc   *BeverageService
	store *memory.Store
	pub   *recordingPublisher
	cache *cache.LRUCache[StatsReport]
	now   *time.Time
}

func newFixture(t *testing.T, seed ...core.Record) *fixture {
	t.Helper()
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		store: memory.New(seed...),
		pub:   &recordingPublisher{},
		cache: cache.NewLRUCache[StatsReport](16, 0),
		now:   &now,
	}
	var n atomic.Int64
	f.svc = NewBeverageService(f.store, Options{
		Calendar:         core.Calendar{Location: time.UTC, FirstWeekday: time.Sunday},
		WarningThreshold: DefaultWarningThreshold,
		Cache:            f.cache,
		Publisher:        f.pub,
		Now:              func() time.Time { return *f.now },
		NewID: func() string {
			return fmt.Sprintf("id-%d", n.Add(1))
		},
	})
	return f
}

func TestAddRecordDefaults(t *testing.T) {
	f := newFixture(t)
	rec, err := f.svc.AddRecord(context.Background(), AddRequest{Type: core.MilkTea})
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if rec.ID != "id-1" || rec.Quantity != 1 || !rec.Timestamp.Equal(*f.now) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].Type != amqp.EventRecordCreated {
		t.Fatalf("expected a created event, got %v", f.pub.events)
	}
}

func TestAddRecordValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddRecord(context.Background(), AddRequest{Type: core.Coffee, Quantity: 11})
	if !errors.Is(err, core.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
	_, err = f.svc.AddRecord(context.Background(), AddRequest{Type: core.BeverageType(9)})
	if !errors.Is(err, core.ErrUnknownBeverage) {
		t.Fatalf("err = %v, want ErrUnknownBeverage", err)
	}
	if f.store.Len() != 0 || len(f.pub.events) != 0 {
		t.Fatal("invalid records must not be stored or published")
	}
}

func TestAddRecordWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.AddRecord(ctx, AddRequest{Type: core.Coffee}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := f.svc.AddRecord(ctx, AddRequest{Type: core.MilkTea}); err != nil {
		t.Fatalf("second add: %v", err)
	}

	_, err := f.svc.AddRecord(ctx, AddRequest{Type: core.Bottled})
	if !errors.Is(err, ErrDrinkWarning) {
		t.Fatalf("third add err = %v, want ErrDrinkWarning", err)
	}
	var w *WarningError
	if !errors.As(err, &w) || w.Consumed != 2 || w.Threshold != 2 || w.Type != core.Bottled {
		t.Fatalf("unexpected warning %+v", w)
	}
	if f.store.Len() != 2 {
		t.Fatal("warned record must not be stored")
	}

	if _, err := f.svc.AddRecord(ctx, AddRequest{Type: core.Bottled, Confirm: true}); err != nil {
		t.Fatalf("confirmed add: %v", err)
	}
	// confirmed once for the day
	if _, err := f.svc.AddRecord(ctx, AddRequest{Type: core.Coffee}); err != nil {
		t.Fatalf("add after confirmation: %v", err)
	}

	// a different day starts from zero
	yesterday := f.now.AddDate(0, 0, -1)
	if _, err := f.svc.AddRecord(ctx, AddRequest{Type: core.Coffee, Timestamp: yesterday}); err != nil {
		t.Fatalf("add yesterday: %v", err)
	}

	// after midnight the confirmation is gone
	*f.now = f.now.AddDate(0, 0, 1)
	f.svc.Rollover(ctx)
	for i := 0; i < 2; i++ {
		if _, err := f.svc.AddRecord(ctx, AddRequest{Type: core.Coffee}); err != nil {
			t.Fatalf("next day add %d: %v", i, err)
		}
	}
	if _, err := f.svc.AddRecord(ctx, AddRequest{Type: core.Coffee}); !errors.Is(err, ErrDrinkWarning) {
		t.Fatalf("next day third add err = %v", err)
	}
}

func TestWarningCountsQuantity(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.AddRecord(context.Background(), AddRequest{Type: core.Coffee, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.svc.AddRecord(context.Background(), AddRequest{Type: core.Coffee}); !errors.Is(err, ErrDrinkWarning) {
		t.Fatalf("err = %v, want warning after quantity 2", err)
	}
	consumed, threshold, err := f.svc.ConsumedToday(context.Background())
	if err != nil || consumed != 2 || threshold != 2 {
		t.Fatalf("ConsumedToday = %d, %d, %v", consumed, threshold, err)
	}
}

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec, _ := f.svc.AddRecord(ctx, AddRequest{Type: core.Coffee})

	if err := f.svc.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if err := f.svc.DeleteRecord(ctx, rec.ID); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if last := f.pub.events[len(f.pub.events)-1]; last.Type != amqp.EventRecordDeleted || last.RecordID != rec.ID {
		t.Fatalf("unexpected last event %+v", last)
	}
}

func TestPublishFailureDoesNotFailAdd(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	if _, err := f.svc.AddRecord(context.Background(), AddRequest{Type: core.Coffee}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if f.store.Len() != 1 {
		t.Fatal("record should be stored")
	}
}

func TestStatsAndCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		core.Record{ID: "a", Timestamp: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), Type: core.Coffee, Quantity: 1},
		core.Record{ID: "b", Timestamp: time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC), Type: core.MilkTea, Quantity: 1},
		core.Record{ID: "c", Timestamp: time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC), Type: core.Coffee, Quantity: 2},
	)

	report, err := f.svc.Stats(ctx, core.PeriodWeek, *f.now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(report.Buckets) != 7 || report.Totals[core.Coffee] != 3 || report.Totals[core.MilkTea] != 1 || report.Total() != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	if f.cache.Size() != 1 {
		t.Fatalf("report should be cached")
	}

	// same week, different reference day hits the cache
	if _, err := f.svc.Stats(ctx, core.PeriodWeek, f.now.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if hits, _ := f.cache.Stats(); hits != 1 {
		t.Fatalf("expected one cache hit, got %d", hits)
	}

	if _, err := f.svc.AddRecord(ctx, AddRequest{Type: core.Bottled, Confirm: true}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if f.cache.Size() != 0 {
		t.Fatal("mutation should purge cached stats")
	}
	report, _ = f.svc.Stats(ctx, core.PeriodWeek, *f.now)
	if report.Totals[core.Bottled] != 1 {
		t.Fatalf("new record missing from stats: %v", report.Totals)
	}

	day, _ := f.svc.Stats(ctx, core.PeriodDay, *f.now)
	if len(day.Buckets) != 2 {
		t.Fatalf("day report should have 2 sparse buckets, got %d", len(day.Buckets))
	}

	if _, err := f.svc.Stats(ctx, core.Period("year"), *f.now); err == nil {
		t.Fatal("invalid period should fail")
	}
}

func TestRecordsForDay(t *testing.T) {
	f := newFixture(t,
		core.Record{ID: "late", Timestamp: time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC), Type: core.Coffee, Quantity: 1},
		core.Record{ID: "early", Timestamp: time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC), Type: core.Coffee, Quantity: 1},
		core.Record{ID: "next", Timestamp: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), Type: core.Coffee, Quantity: 1},
	)
	recs, err := f.svc.RecordsForDay(context.Background(), *f.now)
	if err != nil {
		t.Fatalf("RecordsForDay: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "early" || recs[1].ID != "late" {
		t.Fatalf("unexpected records %v", recs)
	}
}

func TestNavigate(t *testing.T) {
	f := newFixture(t)
	now := *f.now

	tests := []struct {
		name    string
		period  core.Period
		ref     time.Time
		dir     core.Direction
		want    time.Time
		wantErr error
	}{
		{"week back", core.PeriodWeek, now, core.Previous, now.AddDate(0, 0, -7), nil},
		{"week forward within month", core.PeriodWeek, now, core.Next, now.AddDate(0, 0, 7), nil},
		{"day forward in future day same month", core.PeriodDay, now, core.Next, now.AddDate(0, 0, 1), nil},
		{"month forward into future", core.PeriodMonth, now, core.Next, now, ErrFutureNavigation},
		{"month forward from past", core.PeriodMonth, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), core.Next,
			time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), nil},
		{"week forward into next month", core.PeriodWeek, time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC), core.Next,
			time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC), ErrFutureNavigation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Navigate(tt.period, tt.ref, tt.dir)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthCalendar(t *testing.T) {
	f := newFixture(t,
		core.Record{ID: "a", Timestamp: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), Type: core.LemonTea, Quantity: 3},
	)
	days, err := f.svc.MonthCalendar(context.Background(), *f.now)
	if err != nil {
		t.Fatalf("MonthCalendar: %v", err)
	}
	if len(days) != 31 || days[1].Total != 3 || len(days[1].Types) != 1 || days[1].Types[0] != core.LemonTea {
		t.Fatalf("unexpected calendar %+v", days[1])
	}
}

func TestConcurrentAddsRespectThreshold(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	var mu sync.Mutex
	warned := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddRecord(context.Background(), AddRequest{Type: core.Coffee})
			if errors.Is(err, ErrDrinkWarning) {
				mu.Lock()
				warned++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if f.store.Len() != 2 || warned != 8 {
		t.Fatalf("stored=%d warned=%d, want 2 and 8", f.store.Len(), warned)
	}
}

// gatedStore holds the first ListRange call until release is closed.
type gatedStore struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListRange(ctx context.Context, iv core.Interval) ([]core.Record, error) {
	recs, err := g.Store.ListRange(ctx, iv)
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return recs, err
}

func TestStatsDoesNotCacheReportOlderThanMutation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	store := &gatedStore{
		Store:   memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	statsCache := cache.NewLRUCache[StatsReport](16, 0)
	svc := NewBeverageService(store, Options{
		Calendar: core.Calendar{Location: time.UTC, FirstWeekday: time.Sunday},
		Cache:    statsCache,
		Now:      func() time.Time { return now },
	})

	done := make(chan StatsReport)
	go func() {
		report, err := svc.Stats(ctx, core.PeriodWeek, now)
		if err != nil {
			t.Errorf("Stats: %v", err)
		}
		done <- report
	}()

	<-store.entered
	if _, err := svc.AddRecord(ctx, AddRequest{Type: core.Coffee, Quantity: 3}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	close(store.release)

	if stale := <-done; stale.Total() != 0 {
		t.Fatalf("in-flight report should predate the add, got total %d", stale.Total())
	}
	if statsCache.Size() != 0 {
		t.Fatal("report computed before the add must not be cached")
	}

	report, err := svc.Stats(ctx, core.PeriodWeek, now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if report.Total() != 3 {
		t.Fatalf("week total after add = %d, want 3", report.Total())
	}
}

func TestRolloverInvalidatesInFlightStats(t *testing.T) {
	f := newFixture(t)
	gen := f.svc.currentGeneration()
	f.svc.Rollover(context.Background())
	f.svc.cacheReport("week:0", StatsReport{}, gen)
	if f.cache.Size() != 0 {
		t.Fatal("report from before rollover must not be cached")
	}
	f.svc.cacheReport("week:0", StatsReport{}, f.svc.currentGeneration())
	if f.cache.Size() != 1 {
		t.Fatal("current report should be cached")
	}
}
