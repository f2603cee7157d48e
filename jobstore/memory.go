package jobstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps job records in a mutex-guarded map. It backs tests and
// single-process deployments that do not need the records to survive a
// restart.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Create(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return fmt.Errorf("job %s already exists", id)
	}

	now := time.Now()
	s.jobs[id] = Job{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) Write(ctx context.Context, id string, status Status, details string, opts ...WriteOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if existing.Status.IsTerminal() {
		return ErrTerminal
	}

	job := Job{
		ID:        id,
		Status:    status,
		Details:   details,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&job)
	}
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := job
	out.GeneratedFiles = append([]string(nil), job.GeneratedFiles...)
	out.GeneratedClips = append([]string(nil), job.GeneratedClips...)
	return &out, nil
}
