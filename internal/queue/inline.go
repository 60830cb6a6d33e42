package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nikhilbhutani/medportal/internal/document"
)

var ErrQueueClosed = errors.New("queue is shut down")

// Runner executes one processing job.
type Runner interface {
	Run(ctx context.Context, job document.Job) error
}

// InlineQueue runs jobs on goroutines inside the API process. Jobs are
// detached from the request context and bounded by a semaphore.
type InlineQueue struct {
	runner  Runner
	timeout time.Duration
	sem     chan struct{}

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewInlineQueue(runner Runner, concurrency int, timeout time.Duration) *InlineQueue {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &InlineQueue{
		runner:  runner,
		timeout: timeout,
		sem:     make(chan struct{}, concurrency),
	}
}

func (q *InlineQueue) EnqueueProcess(_ context.Context, job document.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.sem <- struct{}{}
		defer func() { <-q.sem }()

		ctx := context.Background()
		if q.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, q.timeout)
			defer cancel()
		}
		if err := q.runner.Run(ctx, job); err != nil {
			slog.Error("inline job failed", "document_id", job.DocumentID, "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting jobs and waits for running ones until ctx ends.
func (q *InlineQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
