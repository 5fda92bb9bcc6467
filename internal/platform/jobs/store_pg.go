package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimdesk/claimdesk/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct{ pool *pgxpool.Pool }

// NewStorePG creates a Postgres-backed queue store using the workflow_jobs
// table.
func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

func (s *storePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

const jobCols = `id, kind, payload, status, attempts, max_attempts, run_at, last_error, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Kind, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	return &j, err
}

// Enqueue inserts the job through the ambient transaction when present.
// That makes the queue a transactional outbox: the row becomes visible to
// workers only if the enclosing transaction commits, never before.
func (s *storePG) Enqueue(ctx context.Context, job *Job) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO workflow_jobs (id, kind, payload, status, attempts, max_attempts, run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.Kind, job.Payload, job.Status, job.Attempts, job.MaxAttempts, job.RunAt)
	return db.MapError(err)
}

// Dequeue claims the oldest runnable job. SKIP LOCKED keeps concurrent
// workers from blocking on each other's claims. Running rows past the
// visibility timeout were claimed by a worker that died; they are reclaimed
// here rather than stranded.
func (s *storePG) Dequeue(ctx context.Context) (*Job, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		UPDATE workflow_jobs SET status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM workflow_jobs
			WHERE (status = $2 AND run_at <= NOW())
			   OR (status = $1 AND updated_at < NOW() - $3::interval)
			ORDER BY run_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobCols,
		StatusRunning, StatusPending, staleRunningAfter)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, db.MapError(err)
	}
	return job, nil
}

func (s *storePG) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE workflow_jobs SET status = $2, last_error = NULL, updated_at = NOW()
		WHERE id = $1`, id, StatusDone)
	return db.MapError(err)
}

func (s *storePG) Reschedule(ctx context.Context, id uuid.UUID, attempts int, runAt time.Time, lastErr string) error {
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE workflow_jobs SET status = $2, attempts = $3, run_at = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1`, id, StatusPending, attempts, runAt, lastErr)
	return db.MapError(err)
}

func (s *storePG) MarkDead(ctx context.Context, id uuid.UUID, lastErr string) error {
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE workflow_jobs SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1`, id, StatusDead, lastErr)
	return db.MapError(err)
}
