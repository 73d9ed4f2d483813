// Package app wires configuration into a runnable crawl-and-export pipeline
// and holds the long-lived services for one run.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotescrape/internal/clock/system"
	"github.com/JakeFAU/quotescrape/internal/config"
	"github.com/JakeFAU/quotescrape/internal/crawl"
	"github.com/JakeFAU/quotescrape/internal/dispatcher"
	"github.com/JakeFAU/quotescrape/internal/export"
	"github.com/JakeFAU/quotescrape/internal/fetcher"
	collyfetcher "github.com/JakeFAU/quotescrape/internal/fetcher/colly"
	"github.com/JakeFAU/quotescrape/internal/hash/sha256"
	"github.com/JakeFAU/quotescrape/internal/id/uuid"
	"github.com/JakeFAU/quotescrape/internal/metrics"
	"github.com/JakeFAU/quotescrape/internal/policy/ratelimit"
	"github.com/JakeFAU/quotescrape/internal/policy/retry"
	"github.com/JakeFAU/quotescrape/internal/queue/memory"
	"github.com/JakeFAU/quotescrape/internal/quotes"
	"github.com/JakeFAU/quotescrape/internal/storage/local"
	"github.com/JakeFAU/quotescrape/internal/store"
	"github.com/JakeFAU/quotescrape/internal/worker"
)

const shutdownTimeout = 5 * time.Second

// Report is the outcome of a run.
type Report struct {
	RunID  string
	Crawl  crawl.Result
	Export export.Summary
}

// App holds the services for a single crawl.
type App struct {
	cfg          config.Config
	runID        string
	logger       *zap.Logger
	orchestrator *crawl.Orchestrator
	exporter     *export.Exporter
	metrics      *metrics.Server
}

type options struct {
	sink    quotes.BlobStore
	clock   quotes.Clock
	ids     quotes.IDGenerator
	fetcher quotes.Fetcher
}

// Option overrides a default collaborator.
type Option func(*options)

// WithSink replaces the local output directory.
func WithSink(sink quotes.BlobStore) Option {
	return func(o *options) { o.sink = sink }
}

// WithClock sets the clock used for the sheet note.
func WithClock(clock quotes.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithIDGenerator sets the run ID source.
func WithIDGenerator(ids quotes.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithFetcher replaces the colly fetcher under the throttle and retry layer.
func WithFetcher(f quotes.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// New builds the pipeline. It fails fast when the output directory cannot
// be prepared.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = uuid.New()
	}
	if o.clock == nil {
		o.clock = system.New(nil)
	}
	if o.sink == nil {
		sink, err := local.New(local.Config{BaseDir: cfg.Export.OutputDir})
		if err != nil {
			return nil, fmt.Errorf("init output dir: %w", err)
		}
		o.sink = sink
	}
	if o.fetcher == nil {
		o.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.RequestTimeout(),
			Headers:   cfg.RequestHeaders(),
		})
	}

	runID, err := o.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	start, minDelay, maxDelay := cfg.ThrottleDelays()
	throttle := ratelimit.New(ratelimit.Config{
		Enabled:           cfg.Throttle.Enabled,
		StartDelay:        start,
		MinDelay:          minDelay,
		MaxDelay:          maxDelay,
		TargetConcurrency: cfg.Throttle.TargetConcurrency,
	}, logger.Named("throttle"))
	backoff, maxBackoff := cfg.Backoff()
	policy := retry.NewExponential(retry.Config{
		MaxAttempts: cfg.HTTP.MaxRetries + 1,
		BaseDelay:   backoff,
		MaxDelay:    maxBackoff,
	})
	fetch := fetcher.NewThrottled(o.fetcher, throttle, policy, logger.Named("fetcher"))

	records := store.New()
	queue := memory.NewQueue(cfg.Crawler.QueueDepth)
	workers := make([]*worker.Worker, 0, cfg.Crawler.Concurrency)
	for i := 0; i < cfg.Crawler.Concurrency; i++ {
		workers = append(workers, worker.New(queue, fetch, records, logger.Named("worker").With(zap.Int("index", i))))
	}
	sched := dispatcher.New(queue, workers, logger.Named("dispatcher"))

	a := &App{
		cfg:    cfg,
		runID:  runID,
		logger: logger,
		orchestrator: crawl.New(crawl.Config{
			StartURL: cfg.Crawler.StartURL,
			MaxPages: cfg.Crawler.MaxPages,
		}, fetch, sched, records, logger.Named("crawl")),
		exporter: export.New(export.Config{
			CSVName:    cfg.Export.CSVName,
			XLSXName:   cfg.Export.XLSXName,
			Source:     cfg.Export.SourceLabel,
			ApplyDedup: cfg.Export.ApplyDedup,
		}, o.sink, sha256.New(), o.clock, logger.Named("export")),
	}
	if cfg.Metrics.ListenAddr != "" {
		a.metrics = metrics.NewServer(cfg.Metrics.ListenAddr, logger.Named("metrics"))
	}
	return a, nil
}

// RunID identifies this run in logs.
func (a *App) RunID() string {
	return a.runID
}

// Run crawls and exports. A canceled crawl still exports what it collected.
func (a *App) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: a.runID}

	if a.metrics != nil {
		if err := a.metrics.Start(); err != nil {
			return report, fmt.Errorf("start metrics server: %w", err)
		}
		defer a.stopMetrics()
	}

	a.logger.Info("crawl starting",
		zap.String("start_url", a.cfg.Crawler.StartURL),
		zap.Int("concurrency", a.cfg.Crawler.Concurrency),
		zap.Int("max_pages", a.cfg.Crawler.MaxPages),
	)
	res, err := a.orchestrator.Run(ctx)
	report.Crawl = res
	if err != nil {
		return report, fmt.Errorf("crawl: %w", err)
	}

	summary, err := a.exporter.Export(context.WithoutCancel(ctx), res.Records)
	report.Export = summary
	if err != nil {
		return report, fmt.Errorf("export: %w", err)
	}

	location := summary.XLSXPath
	if location == "" {
		location = summary.XLSXURI
	}
	a.logger.Info("wrote cleaned rows",
		zap.Int("rows", summary.Rows),
		zap.String("path", location),
		zap.String("reason", res.Reason),
		zap.Int("pages", res.Pages),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("detail_failures", res.DetailFailures),
	)
	return report, nil
}

func (a *App) stopMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.metrics.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics shutdown failed", zap.Error(err))
	}
}
