package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory Store for tests and development.
// It has no durability and no transactional enqueue.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*Job
	order []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*Job)}
}

func (s *MemoryStore) Enqueue(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.jobs[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	return nil
}

func (s *MemoryStore) Dequeue(_ context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, id := range s.order {
		j := s.jobs[id]
		if j == nil {
			continue
		}
		runnable := (j.Status == StatusPending && !j.RunAt.After(now)) ||
			(j.Status == StatusRunning && now.Sub(j.UpdatedAt) >= staleRunningAfter)
		if runnable {
			j.Status = StatusRunning
			j.UpdatedAt = now
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) MarkDone(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(j *Job) {
		j.Status = StatusDone
		j.LastError = nil
	})
}

func (s *MemoryStore) Reschedule(_ context.Context, id uuid.UUID, attempts int, runAt time.Time, lastErr string) error {
	return s.update(id, func(j *Job) {
		j.Status = StatusPending
		j.Attempts = attempts
		j.RunAt = runAt
		j.LastError = &lastErr
	})
}

func (s *MemoryStore) MarkDead(_ context.Context, id uuid.UUID, lastErr string) error {
	return s.update(id, func(j *Job) {
		j.Status = StatusDead
		j.LastError = &lastErr
	})
}

// Get returns a snapshot of a job, for assertions in tests.
func (s *MemoryStore) Get(id uuid.UUID) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *j
	return &cp, true
}

func (s *MemoryStore) update(id uuid.UUID, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	fn(j)
	j.UpdatedAt = time.Now()
	return nil
}
