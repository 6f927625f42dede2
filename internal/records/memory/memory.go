package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"coffeetea/internal/core"
)

// Store keeps records in process memory. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	items  map[string]core.Record
	synced map[string]time.Time
}

func New(seed ...core.Record) *Store {
	s := &Store{
		items:  make(map[string]core.Record, len(seed)),
		synced: make(map[string]time.Time),
	}
	for _, r := range seed {
		s.items[r.ID] = r
	}
	return s
}

type seedFile struct {
	Records []seedRecord `yaml:"records"`
}

type seedRecord struct {
	ID        string    `yaml:"id"`
	Type      string    `yaml:"type"`
	Quantity  int       `yaml:"quantity"`
	Timestamp time.Time `yaml:"timestamp"`
}

// NewFromFile loads a YAML seed of the form
//
//	records:
//	  - type: coffee
//	    quantity: 2
//	    timestamp: 2024-03-05T08:00:00Z
//
// Missing ids are generated and a missing quantity means one. Unknown types
// are read as coffee.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	recs := make([]core.Record, 0, len(f.Records))
	for i, sr := range f.Records {
		r := core.Record{
			ID:        sr.ID,
			Type:      core.ParseBeverageType(sr.Type),
			Quantity:  sr.Quantity,
			Timestamp: sr.Timestamp,
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Quantity == 0 {
			r.Quantity = core.MinQuantity
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
		recs = append(recs, r)
	}
	return New(recs...), nil
}

func (s *Store) Insert(_ context.Context, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[r.ID]; ok {
		return fmt.Errorf("record %s already exists", r.ID)
	}
	s.items[r.ID] = r
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return core.ErrRecordNotFound
	}
	delete(s.items, id)
	delete(s.synced, id)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return core.Record{}, core.ErrRecordNotFound
	}
	return r, nil
}

func (s *Store) ListRange(_ context.Context, iv core.Interval) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, 0)
	for _, r := range s.items {
		if iv.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	sortByTime(out)
	return out, nil
}

// ListUnsynced returns up to limit records not yet exported, oldest first.
func (s *Store) ListUnsynced(_ context.Context, limit int) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, 0)
	for id, r := range s.items {
		if _, ok := s.synced[id]; !ok {
			out = append(out, r)
		}
	}
	sortByTime(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			s.synced[id] = at
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func sortByTime(recs []core.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
}
