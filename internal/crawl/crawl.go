// Package crawl walks the quote listing pages in order, reserving one
// sequence number per quote and handing author lookups to the scheduler.
package crawl

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotescrape/internal/metrics"
	"github.com/JakeFAU/quotescrape/internal/parser"
	"github.com/JakeFAU/quotescrape/internal/quotes"
)

// Completion reasons reported in Result.Reason.
const (
	ReasonFinished           = "finished"
	ReasonListingFetchFailed = "listing_fetch_failed"
	ReasonMaxPages           = "max_pages"
	ReasonCanceled           = "canceled"
)

// DefaultStartURL is the first listing page.
const DefaultStartURL = "http://quotes.toscrape.com/"

// ErrSequenceGap means a reserved sequence number never received a record.
var ErrSequenceGap = errors.New("sequence gap after crawl")

// Config controls traversal.
type Config struct {
	StartURL string
	// MaxPages caps the number of listing pages visited. Zero means no cap.
	MaxPages int
}

// Scheduler admits listing fetches and runs detail jobs.
type Scheduler interface {
	Start(ctx context.Context)
	AcquireListing(ctx context.Context) error
	ReleaseListing()
	Submit(ctx context.Context, job quotes.DetailJob) error
	Wait()
	Failures() int
}

// Records is the sequence-indexed record store the crawl fills.
type Records interface {
	quotes.RecordWriter
	Finalize() []quotes.Record
	Missing(n int) []int
}

// Result summarizes a finished crawl.
type Result struct {
	Records        []quotes.Record
	Pages          int
	Sequence       int
	Reason         string
	DetailFailures int
}

// Orchestrator drives the listing traversal.
type Orchestrator struct {
	cfg       Config
	fetcher   quotes.Fetcher
	scheduler Scheduler
	records   Records
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	cfg Config,
	fetcher quotes.Fetcher,
	scheduler Scheduler,
	records Records,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.StartURL == "" {
		cfg.StartURL = DefaultStartURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		scheduler: scheduler,
		records:   records,
		logger:    logger,
	}
}

// Run visits listing pages until the next link runs out, a listing fetch
// fails, the page cap is hit or ctx is canceled. It always waits for every
// scheduled detail job before returning. Cancellation is not an error: the
// partial result is returned with ReasonCanceled.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	o.scheduler.Start(ctx)

	var (
		res  = Result{Reason: ReasonFinished}
		next = o.cfg.StartURL
	)
	for next != "" {
		if ctx.Err() != nil {
			res.Reason = ReasonCanceled
			break
		}
		if o.cfg.MaxPages > 0 && res.Pages >= o.cfg.MaxPages {
			res.Reason = ReasonMaxPages
			break
		}
		pageURL := next
		var err error
		next, err = o.visit(ctx, pageURL, &res)
		if err != nil {
			if ctx.Err() != nil {
				res.Reason = ReasonCanceled
			} else {
				res.Reason = ReasonListingFetchFailed
				o.logger.Error("listing page failed, stopping traversal",
					zap.String("url", pageURL),
					zap.Int("pages", res.Pages),
					zap.Error(err),
				)
			}
			break
		}
	}

	o.logger.Info("listing traversal stopped, draining detail jobs",
		zap.String("reason", res.Reason),
		zap.Int("pages", res.Pages),
		zap.Int("sequence", res.Sequence),
	)
	o.scheduler.Wait()

	res.DetailFailures = o.scheduler.Failures()
	res.Records = o.records.Finalize()
	if missing := o.records.Missing(res.Sequence); len(missing) > 0 {
		return res, fmt.Errorf("%w: missing %v", ErrSequenceGap, missing)
	}
	return res, nil
}

// visit fetches one listing page while holding the listing slot and schedules
// all of its quotes before returning the next page URL.
func (o *Orchestrator) visit(ctx context.Context, pageURL string, res *Result) (string, error) {
	if err := o.scheduler.AcquireListing(ctx); err != nil {
		return "", err
	}
	defer o.scheduler.ReleaseListing()

	resp, err := o.fetcher.Fetch(ctx, quotes.FetchRequest{URL: pageURL, Kind: quotes.KindListing})
	if err != nil {
		return "", fmt.Errorf("fetch listing: %w", err)
	}
	listing, err := parser.ParseListing(resp.Body, pageURL)
	if err != nil {
		return "", fmt.Errorf("parse listing %s: %w", pageURL, err)
	}
	res.Pages++

	for _, stub := range listing.Stubs {
		res.Sequence++
		if err := o.schedule(ctx, res.Sequence, stub, pageURL); err != nil {
			return "", err
		}
	}
	o.logger.Info("listing page scheduled",
		zap.String("url", pageURL),
		zap.Int("quotes", len(listing.Stubs)),
		zap.Int("sequence", res.Sequence),
		zap.Bool("has_next", listing.NextURL != ""),
	)
	return listing.NextURL, nil
}

func (o *Orchestrator) schedule(ctx context.Context, seq int, stub quotes.Stub, pageURL string) error {
	if stub.AboutURL == "" {
		if err := o.records.Insert(seq, stub.Record(seq)); err != nil {
			return fmt.Errorf("store listing record: %w", err)
		}
		metrics.ObserveRecord(metrics.SourceListing)
		return nil
	}

	job := quotes.DetailJob{Sequence: seq, Stub: stub, PageURL: pageURL}
	if err := o.scheduler.Submit(ctx, job); err != nil {
		// The slot is already reserved, so keep the listing fields.
		o.logger.Warn("detail job not scheduled, keeping listing fields",
			zap.Int("sequence", seq),
			zap.String("url", stub.AboutURL),
			zap.Error(err),
		)
		if insertErr := o.records.Insert(seq, stub.Record(seq)); insertErr != nil {
			return fmt.Errorf("store partial record: %w", insertErr)
		}
		metrics.ObserveRecord(metrics.SourcePartial)
	}
	return nil
}
