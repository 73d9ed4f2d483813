package quotes

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Throttle gates outgoing requests and learns from their outcome.
type Throttle interface {
	Wait(ctx context.Context, rawURL string) error
	Report(rawURL string, statusCode int, latency time.Duration, err error)
}

// RetryPolicy decides whether and when a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Queue provides enqueue/dequeue semantics for detail jobs.
type Queue interface {
	Enqueue(ctx context.Context, job DetailJob) error
	Dequeue(ctx context.Context) (DetailJob, error)
}

// RecordWriter accepts completed records at their reserved sequence.
type RecordWriter interface {
	Insert(seq int, rec Record) error
}

// BlobStore writes rendered artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RowHasher computes a stable key for a row of field values.
type RowHasher interface {
	HashRow(fields []string) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
