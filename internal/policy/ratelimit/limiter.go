// Package ratelimit implements a per-domain adaptive throttle. Each domain
// gets a token bucket whose interval follows observed response latency.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/quotescrape/internal/metrics"
)

// Config holds throttle configuration.
type Config struct {
	// Enabled turns latency feedback on. When false, requests are never delayed.
	Enabled bool
	// StartDelay is the interval used for a domain before any feedback.
	StartDelay time.Duration
	// MinDelay and MaxDelay bound the adapted interval.
	MinDelay time.Duration
	MaxDelay time.Duration
	// TargetConcurrency is the average number of requests the throttle aims
	// to keep in flight against one domain.
	TargetConcurrency float64
}

// Limiter manages per-domain request intervals.
type Limiter struct {
	mu     sync.Mutex
	slots  map[string]*slot
	cfg    Config
	logger *zap.Logger
}

type slot struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// New creates a new Limiter.
func New(cfg Config, logger *zap.Logger) *Limiter {
	if cfg.TargetConcurrency <= 0 {
		cfg.TargetConcurrency = 1
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.StartDelay < cfg.MinDelay {
		cfg.StartDelay = cfg.MinDelay
	}
	if cfg.StartDelay > cfg.MaxDelay {
		cfg.StartDelay = cfg.MaxDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		slots:  make(map[string]*slot),
		cfg:    cfg,
		logger: logger,
	}
}

// Wait blocks until the domain of rawURL may be contacted again.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := metrics.SanitizeSite(rawURL)
	s := l.slotFor(domain)

	start := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveThrottleDelay(domain, waited)
	}
	return nil
}

// Report feeds the latency of a finished request back into its domain's
// interval. The new interval moves halfway toward latency/target; error and
// non-200 responses may slow the domain down but never speed it up.
func (l *Limiter) Report(rawURL string, statusCode int, latency time.Duration, err error) {
	if !l.cfg.Enabled {
		return
	}
	domain := metrics.SanitizeSite(rawURL)
	s := l.slotFor(domain)

	l.mu.Lock()
	defer l.mu.Unlock()

	target := time.Duration(float64(latency) / l.cfg.TargetConcurrency)
	next := (s.delay + target) / 2
	if target > next {
		next = target
	}
	next = l.clamp(next)

	failed := err != nil || statusCode != http.StatusOK
	if failed && next <= s.delay {
		return
	}
	if next != s.delay {
		l.logger.Debug("throttle adjusted",
			zap.String("domain", domain),
			zap.Duration("from", s.delay),
			zap.Duration("to", next),
			zap.Duration("latency", latency),
		)
	}
	s.delay = next
	s.limiter.SetLimit(limitFor(next))
}

// Delay reports the current interval for the domain of rawURL.
func (l *Limiter) Delay(rawURL string) time.Duration {
	s := l.slotFor(metrics.SanitizeSite(rawURL))
	l.mu.Lock()
	defer l.mu.Unlock()
	return s.delay
}

func (l *Limiter) slotFor(domain string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, exists := l.slots[domain]
	if !exists {
		delay := time.Duration(0)
		if l.cfg.Enabled {
			delay = l.cfg.StartDelay
		}
		s = &slot{
			limiter: rate.NewLimiter(limitFor(delay), 1),
			delay:   delay,
		}
		l.slots[domain] = s
	}
	return s
}

func (l *Limiter) clamp(d time.Duration) time.Duration {
	if d < l.cfg.MinDelay {
		return l.cfg.MinDelay
	}
	if d > l.cfg.MaxDelay {
		return l.cfg.MaxDelay
	}
	return d
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}
