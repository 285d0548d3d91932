package report

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity is the number of runs kept by a MemoryStore.
const DefaultMemoryCapacity = 100

// MemoryStore keeps the most recent reports in memory.
type MemoryStore struct {
	mutex    sync.RWMutex
	reports  []Report
	capacity int
}

// NewMemoryStore creates a store that keeps at most capacity reports.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) Save(ctx context.Context, r *Report) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i := range s.reports {
		if s.reports[i].ID == r.ID {
			s.reports[i] = *r
			return nil
		}
	}

	s.reports = append(s.reports, *r)
	if len(s.reports) > s.capacity {
		s.reports = s.reports[len(s.reports)-s.capacity:]
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Report, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if limit <= 0 || limit > len(s.reports) {
		limit = len(s.reports)
	}
	out := make([]Report, 0, limit)
	for i := len(s.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.reports[i])
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Report, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for i := range s.reports {
		if s.reports[i].ID == id {
			r := s.reports[i]
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Close() error {
	return nil
}
