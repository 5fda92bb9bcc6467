package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Runner drains the queue with a pool of workers. Failed jobs are retried
// up to their MaxAttempts with exponential backoff; exhausted jobs are
// parked dead and logged at error level so no failure disappears silently.
type Runner struct {
	store        Store
	logger       zerolog.Logger
	workers      int
	pollInterval time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	wg sync.WaitGroup
}

func NewRunner(store Store, logger zerolog.Logger, workers int, pollInterval time.Duration) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Runner{
		store:        store,
		logger:       logger.With().Str("component", "jobs").Logger(),
		workers:      workers,
		pollInterval: pollInterval,
		handlers:     make(map[string]Handler),
	}
}

// Register binds a handler to a job kind. Must be called before Start.
func (r *Runner) Register(kind string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Start launches the worker pool. Workers stop when ctx is cancelled; Wait
// blocks until they have drained.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(worker int) {
			defer r.wg.Done()
			r.workLoop(ctx, worker)
		}(i)
	}
	r.logger.Info().Int("workers", r.workers).Msg("job runner started")
}

// Wait blocks until all workers have exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) workLoop(ctx context.Context, worker int) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				if ctx.Err() != nil {
					return
				}
				job, err := r.store.Dequeue(ctx)
				if err != nil {
					r.logger.Error().Err(err).Int("worker", worker).Msg("dequeue failed")
					break
				}
				if job == nil {
					break
				}
				r.process(ctx, job)
			}
		}
	}
}

// ProcessOne dequeues and processes a single job. Returns false when the
// queue was empty. Exposed for tests and synchronous draining.
func (r *Runner) ProcessOne(ctx context.Context) (bool, error) {
	job, err := r.store.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	r.process(ctx, job)
	return true, nil
}

func (r *Runner) process(ctx context.Context, job *Job) {
	r.mu.RLock()
	handler, ok := r.handlers[job.Kind]
	r.mu.RUnlock()

	// State transitions persist on a detached context: a shutdown that
	// cancels the worker context must not leave the row claimed as running
	// with no record of the outcome.
	persist := context.WithoutCancel(ctx)

	if !ok {
		r.fail(persist, job, fmt.Errorf("no handler registered for kind %q", job.Kind))
		return
	}

	log := r.logger.With().
		Stringer("job_id", job.ID).
		Str("kind", job.Kind).
		Int("attempt", job.Attempts+1).
		Logger()

	if err := handler(ctx, job.Payload); err != nil {
		r.fail(persist, job, err)
		return
	}

	if err := r.store.MarkDone(persist, job.ID); err != nil {
		log.Error().Err(err).Msg("mark done failed")
		return
	}
	log.Debug().Msg("job completed")
}

func (r *Runner) fail(ctx context.Context, job *Job, cause error) {
	attempts := job.Attempts + 1
	log := r.logger.With().
		Stringer("job_id", job.ID).
		Str("kind", job.Kind).
		Int("attempts", attempts).
		Logger()

	if attempts >= job.MaxAttempts {
		if err := r.store.MarkDead(ctx, job.ID, cause.Error()); err != nil {
			log.Error().Err(err).Msg("mark dead failed")
		}
		log.Error().Err(cause).Msg("job failed permanently, parked dead")
		return
	}

	delay := RetryDelay(attempts)
	if err := r.store.Reschedule(ctx, job.ID, attempts, time.Now().Add(delay), cause.Error()); err != nil {
		log.Error().Err(err).Msg("reschedule failed")
		return
	}
	log.Warn().Err(cause).Dur("retry_in", delay).Msg("job failed, rescheduled")
}

// RetryDelay returns the backoff delay before the given attempt number
// (1-based) is retried.
func RetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Minute

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
