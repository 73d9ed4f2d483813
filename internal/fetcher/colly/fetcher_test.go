package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotescrape/internal/quotes"
)

func TestFetcherFetchesAndAllowsRevisits(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "quotes-agent", r.UserAgent())
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>author</body></html>")
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "quotes-agent", Timeout: time.Second})
	req := quotes.FetchRequest{URL: srv.URL + "/author/A", Kind: quotes.KindDetail}

	for i := 0; i < 2; i++ {
		resp, err := f.Fetch(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(resp.Body), "author")
		assert.Equal(t, "text/html", resp.Headers.Get("Content-Type"))
	}
	assert.EqualValues(t, 2, hits.Load())
}

func TestFetcherReportsStatusErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), quotes.FetchRequest{URL: srv.URL, Kind: quotes.KindListing})
	require.Error(t, err)

	var fetchErr *quotes.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, quotes.KindListing, fetchErr.Kind)
}

func TestFetcherCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, quotes.FetchRequest{URL: srv.URL, Kind: quotes.KindDetail})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetcherSendsConfiguredHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/html", r.Header.Get("Accept"))
		assert.Equal(t, "en", r.Header.Get("Accept-Language"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{
		Timeout: time.Second,
		Headers: http.Header{"Accept": {"text/html"}, "Accept-Language": {"en"}},
	})
	resp, err := f.Fetch(context.Background(), quotes.FetchRequest{URL: srv.URL, Kind: quotes.KindListing})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetcherCanceledFetchDoesNotLeakLateResponse(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			<-release
		}
		_, _ = fmt.Fprint(w, "late")
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	resp, err := f.Fetch(ctx, quotes.FetchRequest{URL: srv.URL, Kind: quotes.KindDetail})
	require.ErrorIs(t, err, context.Canceled)
	close(release)
	assert.Empty(t, resp.Body)

	// A follow-up fetch on the same Fetcher gets its own result.
	resp, err = f.Fetch(context.Background(), quotes.FetchRequest{URL: srv.URL, Kind: quotes.KindDetail})
	require.NoError(t, err)
	assert.Equal(t, "late", string(resp.Body))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"Accept": {"text/html"}}})
	req := quotes.FetchRequest{URL: "https://example.com", Kind: quotes.KindDetail}
	start := time.Unix(0, 0)
	var out outcome

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, start, &out)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "text/html", collyReq.Headers.Get("Accept"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	assert.Equal(t, http.StatusCreated, out.resp.StatusCode)
	assert.Equal(t, "body", string(out.resp.Body))
	assert.Equal(t, "ok", out.resp.Headers.Get("X-Resp"))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	var fe *quotes.FetchError
	require.True(t, errors.As(out.err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, "https://example.com", fe.URL)

	hooks.onError(nil, errors.New("dial"))
	require.True(t, errors.As(out.err, &fe))
	assert.Zero(t, fe.StatusCode)
}

func TestApplyHeadersWithoutConfig(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.applyHeaders(collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
