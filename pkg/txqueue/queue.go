// Package txqueue serializes every chain-mutating operation through a single
// worker. All on-chain writes share one admin signer and therefore one nonce
// sequence; running them one at a time removes the race without locks.
package txqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/slacktip/tipbot/internal/metrics"
)

// Job is a unit of chain-mutating work. The context is the queue's run
// context; a job observing cancellation should return its error.
type Job func(ctx context.Context) error

type queuedJob struct {
	name string
	run  Job
}

// Queue executes jobs strictly one at a time, in enqueue order. A failed job
// is logged and counted; it never halts the queue and is never retried.
type Queue struct {
	jobs   chan queuedJob
	logger *zap.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// New creates a queue with the given buffer size.
func New(logger *zap.Logger, buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{
		jobs:   make(chan queuedJob, buffer),
		logger: logger,
	}
}

// Start launches the single worker goroutine.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	q.wg.Add(1)
	go q.run(ctx)
}

// Enqueue adds a job to the back of the queue. Fire-and-forget: the caller
// gets an error only when the queue is no longer accepting work.
func (q *Queue) Enqueue(name string, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("transaction queue is stopped")
	}

	q.jobs <- queuedJob{name: name, run: job}
	metrics.QueueDepth.Inc()
	return nil
}

// Stop closes the queue and waits for already-enqueued jobs to drain.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for job := range q.jobs {
		metrics.QueueDepth.Dec()

		start := time.Now()
		err := job.run(ctx)
		metrics.JobDuration.WithLabelValues(job.name).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.QueueJobsTotal.WithLabelValues(job.name, "failed").Inc()
			q.logger.Error("Transaction queue job failed",
				zap.String("job", job.name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			continue
		}

		metrics.QueueJobsTotal.WithLabelValues(job.name, "ok").Inc()
		q.logger.Info("Transaction queue job completed",
			zap.String("job", job.name),
			zap.Duration("duration", time.Since(start)))
	}
}
