package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, r *Runner, store *MemoryStore) {
	t.Helper()
	for i := 0; i < 100; i++ {
		// Collapse pending retry delays so the test does not sleep.
		store.mu.Lock()
		for _, j := range store.jobs {
			if j.Status == StatusPending {
				j.RunAt = time.Now()
			}
		}
		store.mu.Unlock()

		ok, err := r.ProcessOne(context.Background())
		require.NoError(t, err)
		if !ok {
			return
		}
	}
	t.Fatal("queue did not drain")
}

func TestRunner_ProcessesJob(t *testing.T) {
	store := NewMemoryStore()
	r := NewRunner(store, zerolog.Nop(), 1, time.Millisecond)

	var got string
	r.Register("greet", func(_ context.Context, payload json.RawMessage) error {
		return json.Unmarshal(payload, &got)
	})

	job, err := NewJob("greet", "hello", 3)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), job))

	drain(t, r, store)

	assert.Equal(t, "hello", got)
	stored, ok := store.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusDone, stored.Status)
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	store := NewMemoryStore()
	r := NewRunner(store, zerolog.Nop(), 1, time.Millisecond)

	calls := 0
	r.Register("flaky", func(context.Context, json.RawMessage) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	job, err := NewJob("flaky", nil, 5)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), job))

	drain(t, r, store)

	assert.Equal(t, 3, calls)
	stored, _ := store.Get(job.ID)
	assert.Equal(t, StatusDone, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}

func TestRunner_DeadLettersAfterMaxAttempts(t *testing.T) {
	store := NewMemoryStore()
	r := NewRunner(store, zerolog.Nop(), 1, time.Millisecond)

	calls := 0
	r.Register("doomed", func(context.Context, json.RawMessage) error {
		calls++
		return errors.New("always fails")
	})

	job, err := NewJob("doomed", nil, 3)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), job))

	drain(t, r, store)

	assert.Equal(t, 3, calls, "job should run exactly MaxAttempts times")
	stored, _ := store.Get(job.ID)
	assert.Equal(t, StatusDead, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "always fails")
}

func TestRunner_UnknownKindGoesDead(t *testing.T) {
	store := NewMemoryStore()
	r := NewRunner(store, zerolog.Nop(), 1, time.Millisecond)

	job, err := NewJob("nobody-home", nil, 3)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), job))

	drain(t, r, store)

	stored, _ := store.Get(job.ID)
	assert.Equal(t, StatusDead, stored.Status)
}

func TestRunner_FutureJobNotDequeued(t *testing.T) {
	store := NewMemoryStore()
	job, err := NewJob("later", nil, 3)
	require.NoError(t, err)
	job.RunAt = time.Now().Add(time.Hour)
	require.NoError(t, store.Enqueue(context.Background(), job))

	got, err := store.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRetryDelay_Grows(t *testing.T) {
	d1 := RetryDelay(1)
	d2 := RetryDelay(2)
	d3 := RetryDelay(3)

	assert.Equal(t, time.Second, d1)
	assert.Greater(t, d2, d1)
	assert.Greater(t, d3, d2)
	assert.LessOrEqual(t, RetryDelay(30), 5*time.Minute)
}

// ctxObservingStore records the cancellation state of the context each
// state-transition call receives.
type ctxObservingStore struct {
	*MemoryStore
	rescheduleCtxErr error
	markDeadCtxErr   error
}

func (s *ctxObservingStore) Reschedule(ctx context.Context, id uuid.UUID, attempts int, runAt time.Time, lastErr string) error {
	s.rescheduleCtxErr = ctx.Err()
	return s.MemoryStore.Reschedule(ctx, id, attempts, runAt, lastErr)
}

func (s *ctxObservingStore) MarkDead(ctx context.Context, id uuid.UUID, lastErr string) error {
	s.markDeadCtxErr = ctx.Err()
	return s.MemoryStore.MarkDead(ctx, id, lastErr)
}

func TestRunner_PersistsFailureDuringShutdown(t *testing.T) {
	store := &ctxObservingStore{MemoryStore: NewMemoryStore()}
	r := NewRunner(store, zerolog.Nop(), 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	r.Register("interrupted", func(ctx context.Context, _ json.RawMessage) error {
		cancel()
		return ctx.Err()
	})

	job, err := NewJob("interrupted", nil, 3)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), job))

	ok, err := r.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// The reschedule must have run on a live context even though the
	// worker context was already cancelled.
	assert.NoError(t, store.rescheduleCtxErr)
	stored, _ := store.Get(job.ID)
	assert.Equal(t, StatusPending, stored.Status, "failed job must not stay claimed as running")
	assert.Equal(t, 1, stored.Attempts)
}

func TestRunner_DeadLetterPersistsDuringShutdown(t *testing.T) {
	store := &ctxObservingStore{MemoryStore: NewMemoryStore()}
	r := NewRunner(store, zerolog.Nop(), 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	r.Register("interrupted", func(ctx context.Context, _ json.RawMessage) error {
		cancel()
		return ctx.Err()
	})

	job, err := NewJob("interrupted", nil, 1)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), job))

	_, err = r.ProcessOne(ctx)
	require.NoError(t, err)

	assert.NoError(t, store.markDeadCtxErr)
	stored, _ := store.Get(job.ID)
	assert.Equal(t, StatusDead, stored.Status)
}

func TestMemoryStore_ReclaimsStaleRunning(t *testing.T) {
	store := NewMemoryStore()
	job, err := NewJob("stuck", nil, 3)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), job))

	claimed, err := store.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// A fresh claim is invisible to other workers.
	got, err := store.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	// Age the claim past the visibility timeout, as if its worker died.
	store.mu.Lock()
	store.jobs[job.ID].UpdatedAt = time.Now().Add(-2 * staleRunningAfter)
	store.mu.Unlock()

	got, err = store.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, StatusRunning, got.Status)
}

func TestMemoryStore_FIFO(t *testing.T) {
	store := NewMemoryStore()
	first, err := NewJob("a", nil, 3)
	require.NoError(t, err)
	second, err := NewJob("b", nil, 3)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), first))
	require.NoError(t, store.Enqueue(context.Background(), second))

	got, err := store.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}
