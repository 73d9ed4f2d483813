package quotes

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned by Queue implementations once they are
	// closed and drained.
	ErrQueueClosed = errors.New("queue closed")

	// ErrStatus marks a response whose status code is outside 2xx.
	ErrStatus = errors.New("unexpected status")
)

// FetchError reports a network or HTTP failure on a listing or detail page.
type FetchError struct {
	URL        string
	Kind       FetchKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s %s: status %d: %v", e.Kind, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
