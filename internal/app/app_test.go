package app_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotescrape/internal/app"
	"github.com/JakeFAU/quotescrape/internal/config"
	"github.com/JakeFAU/quotescrape/internal/crawl"
	"github.com/JakeFAU/quotescrape/internal/export"
)

// MockSink mocks quotes.BlobStore.
type MockSink struct {
	mock.Mock
	objects map[string][]byte
}

// PutObject satisfies quotes.BlobStore for the mock.
func (m *MockSink) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[path] = body
	args := m.Called(path, contentType)
	return args.String(0), args.Error(1)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

type fixedIDs struct{}

func (fixedIDs) NewID() (string, error) { return "run-1", nil }

func quotesSite() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="quote"><span class="text" itemprop="text">“Be yourself.”</span>
<span>by <small class="author" itemprop="author">Oscar Wilde</small> <a href="/author/Oscar-Wilde">(about)</a></span>
<div class="tags"><a class="tag" href="/tag/self/">self</a></div></div>
<li class="next"><a href="/page/2/">Next</a></li></body></html>`)
	})
	mux.HandleFunc("/page/2/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="quote"><span class="text" itemprop="text">“So it goes.”</span>
<span>by <small class="author" itemprop="author">Kurt Vonnegut</small> <a href="/author/Kurt-Vonnegut">(about)</a></span>
<div class="tags"></div></div></body></html>`)
	})
	mux.HandleFunc("/author/Oscar-Wilde", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<span class="author-born-date">October 16, 1854</span>
<span class="author-born-location">in Dublin, Ireland</span>
<div class="author-description">Playwright.</div>`)
	})
	mux.HandleFunc("/author/Kurt-Vonnegut", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	return mux
}

func testConfig(t *testing.T, startURL string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Crawler.StartURL = startURL
	cfg.Crawler.Concurrency = 2
	cfg.Throttle.Enabled = false
	cfg.HTTP.MaxRetries = 0
	cfg.HTTP.TimeoutSeconds = 5
	cfg.Export.OutputDir = t.TempDir()
	return cfg
}

func TestRunWritesExportsToOutputDir(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(quotesSite())
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/")
	a, err := app.New(cfg, zap.NewNop(), app.WithClock(fixedClock{}), app.WithIDGenerator(fixedIDs{}))
	require.NoError(t, err)
	assert.Equal(t, "run-1", a.RunID())

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, crawl.ReasonFinished, report.Crawl.Reason)
	assert.Equal(t, 2, report.Crawl.Pages)
	assert.Equal(t, 1, report.Crawl.DetailFailures)
	assert.Equal(t, 2, report.Export.Rows)
	assert.Equal(t, filepath.Join(cfg.Export.OutputDir, "quotestoscrape.xlsx"), report.Export.XLSXPath)

	csvData, err := os.ReadFile(filepath.Join(cfg.Export.OutputDir, "quotestoscrape.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(csvData), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, fmt.Sprintf(`"Oscar Wilde","Be yourself.","%s/author/Oscar-Wilde","1854-10-16","Dublin, Ireland","Playwright.","self"`, srv.URL), lines[1])
	assert.Equal(t, fmt.Sprintf(`"Kurt Vonnegut","So it goes.","%s/author/Kurt-Vonnegut","","","",""`, srv.URL), lines[2])

	f, err := excelize.OpenFile(report.Export.XLSXPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	val, err := f.GetCellValue(export.SheetName, "G3")
	require.NoError(t, err)
	assert.Equal(t, "N/A", val)
	note, err := f.GetCellValue(export.SheetName, "A5")
	require.NoError(t, err)
	assert.Equal(t, "📊 Sourced from (http://quotes.toscrape.com/) — 2024-01-02 03:04:05", note)
}

func TestRunUsesInjectedSink(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(quotesSite())
	defer srv.Close()

	sink := &MockSink{}
	sink.On("PutObject", "quotestoscrape.csv", export.ContentTypeCSV).Return("mock://csv", nil).Once()
	sink.On("PutObject", "quotestoscrape.xlsx", export.ContentTypeXLSX).Return("mock://xlsx", nil).Once()

	a, err := app.New(testConfig(t, srv.URL+"/"), zap.NewNop(), app.WithSink(sink))
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	sink.AssertExpectations(t)

	assert.Equal(t, "mock://xlsx", report.Export.XLSXURI)
	assert.Empty(t, report.Export.XLSXPath)
	assert.True(t, bytes.HasPrefix(sink.objects["quotestoscrape.csv"], []byte(`"Author","Quote"`)))
}

func TestRunReportsSinkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(quotesSite())
	defer srv.Close()

	sink := &MockSink{}
	sink.On("PutObject", "quotestoscrape.csv", export.ContentTypeCSV).Return("", errors.New("read-only")).Once()

	a, err := app.New(testConfig(t, srv.URL+"/"), zap.NewNop(), app.WithSink(sink))
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
	assert.Equal(t, 2, report.Crawl.Sequence)
	sink.AssertExpectations(t)
}

func TestNewFailsOnUnusableOutputDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := testConfig(t, "http://quotes.toscrape.com/")
	cfg.Export.OutputDir = file
	_, err := app.New(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init output dir")
}

func TestRunServesMetricsWhileCrawling(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(quotesSite())
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/")
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	a, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.NoError(t, err)
}
