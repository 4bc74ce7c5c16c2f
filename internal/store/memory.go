package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edutalk/api/internal/model"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps jobs in process memory. Queued and processing jobs are never
// evicted; finished jobs are retained up to a count and an age limit.
type MemoryStore struct {
	mu       sync.Mutex
	active   map[string]*model.Job
	finished *expirable.LRU[string, *model.Job]
}

// NewMemoryStore creates an in-memory job table.
func NewMemoryStore(maxRetained int, retention time.Duration) *MemoryStore {
	return &MemoryStore{
		active:   make(map[string]*model.Job),
		finished: expirable.NewLRU[string, *model.Job](maxRetained, nil, retention),
	}
}

func (s *MemoryStore) Create(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[job.ID]; ok || s.finished.Contains(job.ID) {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	s.put(job.Clone())
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.lookup(id)
	if !ok {
		return nil, notFound(id)
	}
	return job.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(job *model.Job) error) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.lookup(id)
	if !ok {
		return nil, notFound(id)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.put(next)
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, id)
	s.finished.Remove(id)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (model.JobStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.JobStats{
		Active: len(s.active),
		Total:  len(s.active) + s.finished.Len(),
	}, nil
}

func (s *MemoryStore) lookup(id string) (*model.Job, bool) {
	if job, ok := s.active[id]; ok {
		return job, true
	}
	return s.finished.Peek(id)
}

// put files a job under the active map or the retention cache by status.
func (s *MemoryStore) put(job *model.Job) {
	if job.Status.IsTerminal() {
		delete(s.active, job.ID)
		s.finished.Add(job.ID, job)
		return
	}
	s.active[job.ID] = job
}
