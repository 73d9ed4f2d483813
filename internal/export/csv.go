package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/quotescrape/internal/quotes"
)

// NotAvailable replaces blank fields in cleaned rows and on the sheet.
const NotAvailable = "N/A"

// WriteCSV writes the header and one row per record, in the given order.
// Every field is quoted and lines end in CRLF.
func WriteCSV(w io.Writer, records []quotes.Record) error {
	bw := bufio.NewWriter(w)
	if err := writeQuotedRow(bw, quotes.Columns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writeQuotedRow(bw, rec.Fields()); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// EncodeCSV renders records into a byte slice.
func EncodeCSV(records []quotes.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encoding/csv only quotes fields that need it, so rows are written by hand.
func writeQuotedRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// CleanResult is the outcome of the read-back pass over a CSV export.
type CleanResult struct {
	Header     []string
	Rows       [][]string
	Duplicates int
}

// CleanCSV reads an export back, trims every field, replaces blanks with
// N/A and drops rows whose cleaned tuple was already seen.
func CleanCSV(r io.Reader, hasher quotes.RowHasher) (CleanResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(quotes.Columns)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return CleanResult{}, nil
	}
	if err != nil {
		return CleanResult{}, fmt.Errorf("read csv header: %w", err)
	}

	res := CleanResult{Header: header}
	seen := make(map[string]struct{})
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CleanResult{}, fmt.Errorf("read csv row: %w", err)
		}
		for i, v := range row {
			row[i] = cleanField(v)
		}
		key := hasher.HashRow(row)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func cleanField(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return NotAvailable
	}
	return v
}
