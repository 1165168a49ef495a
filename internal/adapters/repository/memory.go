package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/divtracker/internal/domain/model"
)

// MemoryStore is an in-process NameStore. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string][]model.NameRecord
	byName map[string][]model.NameRecord
	closed bool
	opts   options
}

// NewMemory returns an empty MemoryStore.
func NewMemory(opts ...Option) *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string][]model.NameRecord),
		byName: make(map[string][]model.NameRecord),
		opts:   newOptions("memory_store", opts),
	}
}

func (s *MemoryStore) Record(_ context.Context, id, name string) error {
	if err := validate(id, name); err != nil {
		return err
	}
	defer observe("record", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, r := range s.byID[id] {
		if r.Name == name {
			return nil
		}
	}
	r := model.NameRecord{ID: id, Name: name, RecordedAt: s.opts.now().UTC()}
	s.byID[id] = append(s.byID[id], r)
	key := nameKey(name)
	s.byName[key] = append(s.byName[key], r)
	return nil
}

func (s *MemoryStore) IDsByName(_ context.Context, name string) ([]string, error) {
	defer observe("ids_by_name", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	records := sorted(s.byName[nameKey(name)])
	ids := []string{}
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *MemoryStore) NamesByID(ctx context.Context, id string) ([]string, error) {
	h, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return names(h), nil
}

func (s *MemoryStore) History(_ context.Context, id string) ([]model.NameRecord, error) {
	defer observe("history", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return sorted(s.byID[id]), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// sorted copies records ordered by time, then id, then name.
func sorted(in []model.NameRecord) []model.NameRecord {
	out := make([]model.NameRecord, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.Before(b.RecordedAt)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})
	return out
}
