// Package worker implements the author detail fetch loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotescrape/internal/metrics"
	"github.com/JakeFAU/quotescrape/internal/parser"
	"github.com/JakeFAU/quotescrape/internal/quotes"
)

// DoneFunc is called once per job after its record has been written. err is
// the fetch or parse failure that left the record partial, if any.
type DoneFunc func(job quotes.DetailJob, err error)

// Worker consumes detail jobs and merges author fields into the store.
type Worker struct {
	queue   quotes.Queue
	fetcher quotes.Fetcher
	records quotes.RecordWriter
	logger  *zap.Logger
}

// New constructs a Worker.
func New(
	queue quotes.Queue,
	fetcher quotes.Fetcher,
	records quotes.RecordWriter,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:   queue,
		fetcher: fetcher,
		records: records,
		logger:  logger,
	}
}

// Run consumes jobs until the queue is closed and drained. Cancelling ctx
// does not stop the loop: queued jobs still get a (partial) record so no
// sequence slot is left empty, they just fail fast instead of fetching.
func (w *Worker) Run(ctx context.Context, done DoneFunc) {
	drainCtx := context.WithoutCancel(ctx)
	for {
		job, err := w.queue.Dequeue(drainCtx)
		if err != nil {
			if errors.Is(err, quotes.ErrQueueClosed) {
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			return
		}
		jobErr := w.Process(ctx, job)
		if done != nil {
			done(job, jobErr)
		}
	}
}

// Process fetches the author page for job and stores the resulting record.
// A failed fetch stores the listing fields with empty author details and is
// returned for accounting only.
func (w *Worker) Process(ctx context.Context, job quotes.DetailJob) error {
	author, fetchErr := w.fetchAuthor(ctx, job)

	var rec quotes.Record
	source := metrics.SourceDetail
	if fetchErr != nil {
		rec = job.Stub.Record(job.Sequence)
		source = metrics.SourcePartial
		w.logger.Warn("detail fetch failed, keeping listing fields",
			zap.Int("sequence", job.Sequence),
			zap.String("url", job.Stub.AboutURL),
			zap.String("page", job.PageURL),
			zap.String("author", job.Stub.Author),
			zap.Error(fetchErr),
		)
	} else {
		rec = job.Stub.Merge(job.Sequence, author)
	}

	if err := w.records.Insert(job.Sequence, rec); err != nil {
		w.logger.Error("store detail record failed", zap.Int("sequence", job.Sequence), zap.Error(err))
		return fmt.Errorf("insert sequence %d: %w", job.Sequence, err)
	}
	metrics.ObserveRecord(source)
	w.logger.Debug("detail merged",
		zap.Int("sequence", job.Sequence),
		zap.String("author", rec.Author),
		zap.String("source", source),
	)
	return fetchErr
}

func (w *Worker) fetchAuthor(ctx context.Context, job quotes.DetailJob) (quotes.Author, error) {
	resp, err := w.fetcher.Fetch(ctx, quotes.FetchRequest{
		URL:  job.Stub.AboutURL,
		Kind: quotes.KindDetail,
	})
	if err != nil {
		return quotes.Author{}, err
	}
	author, err := parser.ParseAuthor(resp.Body)
	if err != nil {
		return quotes.Author{}, fmt.Errorf("parse author %s: %w", job.Stub.AboutURL, err)
	}
	return author, nil
}
