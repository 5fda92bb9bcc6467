// Package jobs provides a durable Postgres-backed job queue with a polling
// worker pool, bounded retries with exponential backoff, and dead-letter
// accounting. Enqueue joins the caller's transaction when one is ambient,
// so a job only becomes visible once the write that triggered it commits.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusDead    = "dead"
)

// staleRunningAfter is the claim visibility timeout. A job still marked
// running this long after it was claimed belongs to a crashed worker and
// becomes eligible for dequeue again.
const staleRunningAfter = 5 * time.Minute

// Job is one unit of background work.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	LastError   *string         `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Handler processes one job payload. Handlers must be idempotent: a job may
// be re-run after a partial failure.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Store is the queue persistence contract.
type Store interface {
	// Enqueue inserts a pending job. Implementations join the ambient
	// transaction when the context carries one.
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue claims the next runnable job, or returns (nil, nil) when the
	// queue is empty. A claimed job is invisible to other workers.
	Dequeue(ctx context.Context) (*Job, error)

	// MarkDone records successful completion.
	MarkDone(ctx context.Context, id uuid.UUID) error

	// Reschedule returns a failed job to the queue for a later attempt.
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, runAt time.Time, lastErr string) error

	// MarkDead parks a job whose attempts are exhausted. Dead jobs are
	// never picked up again but stay queryable for operators.
	MarkDead(ctx context.Context, id uuid.UUID, lastErr string) error
}

// NewJob builds a pending job for the given kind and payload.
func NewJob(kind string, payload interface{}, maxAttempts int) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:          uuid.New(),
		Kind:        kind,
		Payload:     raw,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		RunAt:       time.Now(),
	}, nil
}
