// Package export renders crawled records as a quoted CSV file and a styled
// XLSX workbook.
package export

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotescrape/internal/quotes"
)

// Content types passed to the sink.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Defaults for Config.
const (
	DefaultCSVName  = "quotestoscrape.csv"
	DefaultXLSXName = "quotestoscrape.xlsx"
	DefaultSource   = "http://quotes.toscrape.com/"
	noteTimeLayout  = "2006-01-02 15:04:05"
)

// Config controls export naming and row selection.
type Config struct {
	CSVName  string
	XLSXName string
	// Source is the label printed in the sheet's note row.
	Source string
	// ApplyDedup builds the sheet from the cleaned, deduplicated CSV rows.
	// When false the sheet lists every record in sequence order and the
	// duplicate count is only logged.
	ApplyDedup bool
}

// Summary describes a finished export.
type Summary struct {
	Rows       int
	Duplicates int
	CSVURI     string
	XLSXURI    string
	// XLSXPath is the absolute filesystem path when the sink is on disk.
	XLSXPath string
}

// pather is implemented by sinks that write to the local filesystem.
type pather interface {
	Path(name string) (string, error)
}

// Exporter writes CSV and XLSX renditions of a record set to a sink.
type Exporter struct {
	cfg    Config
	sink   quotes.BlobStore
	hasher quotes.RowHasher
	clock  quotes.Clock
	logger *zap.Logger
}

// New builds an Exporter.
func New(
	cfg Config,
	sink quotes.BlobStore,
	hasher quotes.RowHasher,
	clock quotes.Clock,
	logger *zap.Logger,
) *Exporter {
	if cfg.CSVName == "" {
		cfg.CSVName = DefaultCSVName
	}
	if cfg.XLSXName == "" {
		cfg.XLSXName = DefaultXLSXName
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		cfg:    cfg,
		sink:   sink,
		hasher: hasher,
		clock:  clock,
		logger: logger,
	}
}

// Note returns the text of the sheet's note row.
func (e *Exporter) Note() string {
	return fmt.Sprintf("📊 Sourced from (%s) — %s", e.cfg.Source, e.clock.Now().Format(noteTimeLayout))
}

// Export writes the CSV, reads it back for cleaning, then writes the
// workbook. records must already be in sequence order.
func (e *Exporter) Export(ctx context.Context, records []quotes.Record) (Summary, error) {
	csvData, err := EncodeCSV(records)
	if err != nil {
		return Summary{}, fmt.Errorf("encode csv: %w", err)
	}
	csvURI, err := e.sink.PutObject(ctx, e.cfg.CSVName, ContentTypeCSV, bytes.NewReader(csvData))
	if err != nil {
		return Summary{}, fmt.Errorf("write csv: %w", err)
	}
	e.logger.Debug("csv written", zap.String("uri", csvURI), zap.Int("records", len(records)))

	cleaned, err := CleanCSV(bytes.NewReader(csvData), e.hasher)
	if err != nil {
		return Summary{}, fmt.Errorf("clean csv: %w", err)
	}
	rows := cleaned.Rows
	if !e.cfg.ApplyDedup {
		rows = make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, rec.Fields())
		}
	}
	e.logger.Info("csv read back",
		zap.Int("records", len(records)),
		zap.Int("duplicates", cleaned.Duplicates),
		zap.Bool("dedup_applied", e.cfg.ApplyDedup),
	)

	book, err := BuildWorkbook(quotes.Columns, rows, e.Note())
	if err != nil {
		return Summary{}, fmt.Errorf("build workbook: %w", err)
	}
	defer func() {
		if cerr := book.Close(); cerr != nil {
			e.logger.Warn("close workbook", zap.Error(cerr))
		}
	}()
	buf, err := book.WriteToBuffer()
	if err != nil {
		return Summary{}, fmt.Errorf("render workbook: %w", err)
	}
	xlsxURI, err := e.sink.PutObject(ctx, e.cfg.XLSXName, ContentTypeXLSX, buf)
	if err != nil {
		return Summary{}, fmt.Errorf("write xlsx: %w", err)
	}

	summary := Summary{
		Rows:       len(rows),
		Duplicates: cleaned.Duplicates,
		CSVURI:     csvURI,
		XLSXURI:    xlsxURI,
	}
	if p, ok := e.sink.(pather); ok {
		if path, perr := p.Path(e.cfg.XLSXName); perr == nil {
			summary.XLSXPath = path
		}
	}
	return summary, nil
}
