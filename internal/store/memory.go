package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/seantiz/esgqa/internal/model"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with a mutex-guarded map. Records live for the
// lifetime of the process and are never evicted.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

// CreateJob stores a copy of j.
func (s *MemoryStore) CreateJob(_ context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("insert job %s: duplicate id", j.ID)
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

// GetJob returns a copy of the job with the given id.
func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

// TransitionJob applies the transition on a copy and swaps it in under the
// write lock, so readers see either the old or the new record.
func (s *MemoryStore) TransitionJob(_ context.Context, id, from, to string, apply func(*model.Job)) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if cur.Status != from || !model.ValidTransition(from, to) {
		return nil, fmt.Errorf("%w: %s is %s, want %s->%s", ErrInvalidTransition, id, cur.Status, from, to)
	}

	next := cur.Clone()
	next.Status = to
	if apply != nil {
		apply(next)
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

// GetJobStats counts jobs by status.
func (s *MemoryStore) GetJobStats(_ context.Context) (*JobStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &JobStats{CountByStatus: make(map[string]int)}
	for _, j := range s.jobs {
		stats.Total++
		stats.CountByStatus[j.Status]++
	}
	return stats, nil
}

// Close is a no-op; in-memory records are dropped with the process.
func (s *MemoryStore) Close() error {
	return nil
}
