// Package dispatcher manages worker fan-out over the detail queue and the
// single listing slot.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/quotescrape/internal/metrics"
	"github.com/JakeFAU/quotescrape/internal/quotes"
	"github.com/JakeFAU/quotescrape/internal/worker"
)

// Queue is a detail queue that can be closed once no more jobs follow.
type Queue interface {
	quotes.Queue
	Close()
}

// Dispatcher fans out queued detail jobs to a pool of workers. At most one
// listing fetch holds the listing slot at a time.
type Dispatcher struct {
	queue   Queue
	workers []*worker.Worker
	logger  *zap.Logger

	listing  *semaphore.Weighted
	wg       sync.WaitGroup
	start    sync.Once
	stop     sync.Once
	pending  atomic.Int64
	failures atomic.Int64
}

// New creates a Dispatcher.
func New(queue Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
		listing: semaphore.NewWeighted(1),
	}
}

// Start launches every worker. Calling Start more than once is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.start.Do(func() {
		for _, w := range d.workers {
			d.wg.Add(1)
			go func(wk *worker.Worker) {
				defer d.wg.Done()
				wk.Run(ctx, d.done)
			}(w)
		}
		d.logger.Debug("detail workers started", zap.Int("workers", len(d.workers)))
	})
}

// Submit enqueues a detail job.
func (d *Dispatcher) Submit(ctx context.Context, job quotes.DetailJob) error {
	metrics.SetPendingDetails(int(d.pending.Add(1)))
	if err := d.queue.Enqueue(ctx, job); err != nil {
		metrics.SetPendingDetails(int(d.pending.Add(-1)))
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// AcquireListing blocks until the listing slot is free.
func (d *Dispatcher) AcquireListing(ctx context.Context) error {
	if err := d.listing.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire listing slot: %w", err)
	}
	return nil
}

// ReleaseListing frees the listing slot.
func (d *Dispatcher) ReleaseListing() {
	d.listing.Release(1)
}

// Pending reports submitted detail jobs that have not finished yet.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

// Failures reports detail jobs whose record was stored without author fields.
func (d *Dispatcher) Failures() int {
	return int(d.failures.Load())
}

// Wait closes the queue and blocks until every worker has drained it. No
// Submit may follow Wait.
func (d *Dispatcher) Wait() {
	d.stop.Do(d.queue.Close)
	d.wg.Wait()
	d.logger.Debug("detail workers drained", zap.Int("failures", d.Failures()))
}

func (d *Dispatcher) done(_ quotes.DetailJob, err error) {
	metrics.SetPendingDetails(int(d.pending.Add(-1)))
	if err != nil {
		d.failures.Add(1)
	}
}
