// Package fetcher wraps a quotes.Fetcher with throttling, retries and
// per-attempt metrics.
package fetcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotescrape/internal/metrics"
	"github.com/JakeFAU/quotescrape/internal/policy/retry"
	"github.com/JakeFAU/quotescrape/internal/quotes"
)

// Throttled gates every attempt through a Throttle and retries failures the
// RetryPolicy deems transient. All returned errors are *quotes.FetchError.
type Throttled struct {
	next     quotes.Fetcher
	throttle quotes.Throttle
	policy   quotes.RetryPolicy
	logger   *zap.Logger
}

// NewThrottled builds a Throttled fetcher. throttle and policy may be nil.
func NewThrottled(
	next quotes.Fetcher,
	throttle quotes.Throttle,
	policy quotes.RetryPolicy,
	logger *zap.Logger,
) *Throttled {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Throttled{
		next:     next,
		throttle: throttle,
		policy:   policy,
		logger:   logger,
	}
}

// Fetch runs attempts until one succeeds or the policy gives up.
func (f *Throttled) Fetch(ctx context.Context, request quotes.FetchRequest) (quotes.FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := f.attempt(ctx, request)
		if err == nil {
			return resp, nil
		}
		if f.policy == nil || !f.policy.ShouldRetry(err, attempt) {
			return quotes.FetchResponse{}, err
		}
		wait := f.policy.Backoff(attempt)
		f.logger.Warn("fetch failed, retrying",
			zap.String("url", request.URL),
			zap.String("kind", string(request.Kind)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if sleepErr := retry.Sleep(ctx, wait); sleepErr != nil {
			return quotes.FetchResponse{}, &quotes.FetchError{URL: request.URL, Kind: request.Kind, Err: sleepErr}
		}
	}
}

func (f *Throttled) attempt(ctx context.Context, request quotes.FetchRequest) (quotes.FetchResponse, error) {
	if f.throttle != nil {
		if err := f.throttle.Wait(ctx, request.URL); err != nil {
			return quotes.FetchResponse{}, &quotes.FetchError{URL: request.URL, Kind: request.Kind, Err: err}
		}
	}

	start := time.Now()
	resp, err := f.next.Fetch(ctx, request)
	elapsed := time.Since(start)

	status := resp.StatusCode
	var fetchErr *quotes.FetchError
	switch {
	case err != nil && errors.As(err, &fetchErr):
		status = fetchErr.StatusCode
	case err != nil:
		err = &quotes.FetchError{URL: request.URL, Kind: request.Kind, Err: err}
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		err = &quotes.FetchError{URL: request.URL, Kind: request.Kind, StatusCode: status, Err: quotes.ErrStatus}
	}

	if f.throttle != nil {
		f.throttle.Report(request.URL, status, elapsed, err)
	}
	metrics.ObserveFetch(string(request.Kind), status, elapsed)
	return resp, err
}
