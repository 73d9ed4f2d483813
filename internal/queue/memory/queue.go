// Package memory provides the bounded in-memory detail job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/quotescrape/internal/quotes"
)

// Queue is a bounded in-memory queue with context-aware operations. After
// Close, buffered jobs are still handed out; Dequeue reports
// quotes.ErrQueueClosed only once the buffer is empty.
type Queue struct {
	ch     chan quotes.DetailJob
	mu     sync.RWMutex
	closed bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan quotes.DetailJob, capacity),
	}
}

// Enqueue pushes a job into the queue, blocking while it is full.
func (q *Queue) Enqueue(ctx context.Context, job quotes.DetailJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("enqueue sequence %d: %w", job.Sequence, quotes.ErrQueueClosed)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- job:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (quotes.DetailJob, error) {
	select {
	case <-ctx.Done():
		return quotes.DetailJob{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return quotes.DetailJob{}, quotes.ErrQueueClosed
		}
		return job, nil
	}
}

// Len reports the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops intake. It waits for in-progress Enqueue calls to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
