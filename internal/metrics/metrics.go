// Package metrics exposes Prometheus collectors for the quote crawler.
package metrics

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record sources used as the "source" label of quotes_records_total.
const (
	SourceListing = "listing"
	SourceDetail  = "detail"
	SourcePartial = "partial"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_fetches_total",
			Help: "Total number of page fetches, labeled by kind and outcome.",
		},
		[]string{"kind", "status"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotes_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies, labeled by kind.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"kind"},
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_records_total",
			Help: "Total number of records stored, labeled by how they were completed.",
		},
		[]string{"source"},
	)

	throttleDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotes_throttle_delay_seconds",
			Help:    "Histogram of throttle wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	pendingDetails = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quotes_pending_details",
			Help: "Number of author detail fetches submitted but not yet merged.",
		},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one fetch attempt. A zero status code means the
// request failed before a response arrived.
func ObserveFetch(kind string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	fetchesTotal.WithLabelValues(kind, status).Inc()
	fetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveRecord counts a record written to the store.
func ObserveRecord(source string) {
	recordsTotal.WithLabelValues(source).Inc()
}

// ObserveThrottleDelay records the duration of a throttle wait.
func ObserveThrottleDelay(domain string, duration time.Duration) {
	throttleDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// SetPendingDetails reports the number of outstanding detail fetches.
func SetPendingDetails(n int) {
	pendingDetails.Set(float64(n))
}
