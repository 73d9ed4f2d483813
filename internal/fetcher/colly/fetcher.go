// Package collyfetcher implements quotes.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/quotescrape/internal/quotes"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Headers are added to every request, e.g. Accept and Accept-Language.
	Headers http.Header
}

// Fetcher implements quotes.Fetcher using the Colly collector. Author pages
// are shared by many quotes, so revisits are always allowed.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// outcome is filled by the collector callbacks on the visiting goroutine and
// handed back over a channel once Visit returns.
type outcome struct {
	resp quotes.FetchResponse
	err  error
}

// New builds a Fetcher. The HTTP client, timeout and transport are set once
// here because cloned collectors share the backend.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Non-2xx responses come back
// as *quotes.FetchError carrying the status code.
func (f *Fetcher) Fetch(ctx context.Context, request quotes.FetchRequest) (quotes.FetchResponse, error) {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	return f.runCollector(ctx, collector, request)
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request quotes.FetchRequest,
	start time.Time,
	out *outcome,
) {
	hooks.OnRequest(f.applyHeaders)

	hooks.OnResponse(func(r *colly.Response) {
		out.resp = quotes.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		out.err = &quotes.FetchError{
			URL:        request.URL,
			Kind:       request.Kind,
			StatusCode: status,
			Err:        err,
		}
	})
}

// runCollector visits request.URL on its own goroutine. The callbacks only
// touch that goroutine's outcome, so returning early on cancel leaves
// nothing shared behind.
func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	request quotes.FetchRequest,
) (quotes.FetchResponse, error) {
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		f.configureCollectorHooks(collector, request, time.Now(), &out)
		if err := collector.Visit(request.URL); err != nil && out.err == nil {
			out.err = &quotes.FetchError{
				URL:  request.URL,
				Kind: request.Kind,
				Err:  fmt.Errorf("colly visit failed: %w", err),
			}
		}
		done <- out
	}()

	select {
	case <-ctx.Done():
		return quotes.FetchResponse{}, &quotes.FetchError{URL: request.URL, Kind: request.Kind, Err: ctx.Err()}
	case out := <-done:
		if out.err != nil {
			return quotes.FetchResponse{}, out.err
		}
		return out.resp, nil
	}
}

func (f *Fetcher) applyHeaders(r *colly.Request) {
	for key, values := range f.cfg.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
