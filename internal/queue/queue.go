package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"snapspend/internal/errs"
)

// Job carries one uploaded file through the pipeline. Jobs are not
// deduplicated: two uploads with the same logical name are two jobs.
type Job struct {
	FilePath string
	FileName string
}

// Handler runs the whole pipeline for one job. Retries re-run it from the
// original uploaded file, never from a partial stage.
type Handler func(ctx context.Context, job Job) error

// Queue executes jobs with bounded worker concurrency and owns the retry
// policy. Stages never retry internally.
type Queue struct {
	handler   Handler
	workers   int
	attempts  int
	baseDelay time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.attempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.baseDelay = d
		}
	}
}

// New creates a started queue. Defaults match the upload pipeline contract:
// 3 attempts with exponential backoff from 5 seconds.
func New(handler Handler, opts ...Option) *Queue {
	q := &Queue{
		handler:   handler,
		workers:   4,
		attempts:  3,
		baseDelay: 5 * time.Second,
		ch:        make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				slog.Info("Worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				slog.Info("Worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// run drives one job to success, permanent failure, or retry exhaustion.
// An exhausted job is dropped; the uploader never learns the outcome.
func (q *Queue) run(workerID int, job Job) {
	delay := q.baseDelay
	for attempt := 1; attempt <= q.attempts; attempt++ {
		err := q.handler(context.Background(), job)
		if err == nil {
			slog.Info("Receipt processed", "worker_id", workerID, "file", job.FileName, "attempt", attempt)
			return
		}
		if !errs.IsRetryable(err) {
			slog.Error("Dropping receipt, permanent failure", "worker_id", workerID, "file", job.FileName, "error", err)
			return
		}
		if attempt == q.attempts {
			slog.Error("Dropping receipt, retries exhausted", "worker_id", workerID, "file", job.FileName, "attempts", attempt, "error", err)
			return
		}
		slog.Warn("Receipt processing failed, will retry", "worker_id", workerID, "file", job.FileName, "attempt", attempt, "backoff", delay, "error", err)
		time.Sleep(delay)
		delay *= 2
	}
}

// Enqueue accepts one job per uploaded file and returns immediately. A full
// queue applies backpressure to the caller.
func (q *Queue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		slog.Warn("Cannot enqueue: queue is shutting down", "file", job.FileName)
		return nil
	}
	select {
	case q.ch <- job:
		slog.Info("Queued receipt for processing", "file", job.FileName)
	default:
		slog.Warn("Queue full, applying backpressure", "file", job.FileName)
		q.ch <- job
	}
	return nil
}

// Shutdown closes intake and waits for in-flight jobs to drain or the
// context to expire.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown interrupted by context")
	case <-done:
		slog.Info("Queue drained, shutdown complete")
	}
}
