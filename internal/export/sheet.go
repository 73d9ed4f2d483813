package export

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the export.
const SheetName = "Quotes"

const (
	headerFill    = "1F4E78"
	headerFont    = "FFFFFF"
	stripeFill    = "F5F5F5"
	mutedFont     = "808080"
	borderMedium  = 2
	minColWidth   = 12.0
	maxColWidth   = 80.0
	widthPerRune  = 1.2
	noteRowOffset = 3
)

type sheetStyles struct {
	header    int
	cell      int
	stripe    int
	na        int
	naStripe  int
	noteStyle int
}

// BuildWorkbook lays out header and rows on the Quotes sheet. Blank fields
// render as grey italic N/A, even sheet rows are tinted and the note is
// placed in a merged row two rows below the data.
func BuildWorkbook(header []string, rows [][]string, note string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := layout(f, header, rows, note); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func layout(f *excelize.File, header []string, rows [][]string, note string) error {
	styles, err := newStyles(f)
	if err != nil {
		return err
	}
	widths := make([]float64, len(header))

	for c, name := range header {
		if err := setCell(f, c+1, 1, name, styles.header); err != nil {
			return err
		}
		widths[c] = cellWidth(name)
	}

	for r, row := range rows {
		sheetRow := r + 2
		for c := range header {
			val := ""
			if c < len(row) {
				val = row[c]
			}
			style := styles.cell
			if sheetRow%2 == 0 {
				style = styles.stripe
			}
			if strings.TrimSpace(val) == "" || val == NotAvailable {
				val = NotAvailable
				style = styles.na
				if sheetRow%2 == 0 {
					style = styles.naStripe
				}
			}
			if err := setCell(f, c+1, sheetRow, val, style); err != nil {
				return err
			}
			widths[c] = max(widths[c], cellWidth(val))
		}
	}

	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, min(max(w, minColWidth), maxColWidth)); err != nil {
			return fmt.Errorf("set width %s: %w", col, err)
		}
	}

	if len(header) == 0 {
		return nil
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return fmt.Errorf("column name: %w", err)
	}
	if err := f.AutoFilter(SheetName, fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1), nil); err != nil {
		return fmt.Errorf("auto filter: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if note == "" {
		return nil
	}
	noteRow := len(rows) + noteRowOffset
	if err := setCell(f, 1, noteRow, note, styles.noteStyle); err != nil {
		return err
	}
	start := fmt.Sprintf("A%d", noteRow)
	end := fmt.Sprintf("%s%d", lastCol, noteRow)
	if err := f.MergeCell(SheetName, start, end); err != nil {
		return fmt.Errorf("merge note row: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: borderMedium},
		{Type: "right", Color: "000000", Style: borderMedium},
		{Type: "top", Color: "000000", Style: borderMedium},
		{Type: "bottom", Color: "000000", Style: borderMedium},
	}
	stripe := excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{stripeFill}}
	muted := &excelize.Font{Color: mutedFont, Italic: true}

	var s sheetStyles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.header, &excelize.Style{
			Border:    border,
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
			Font:      &excelize.Font{Bold: true, Color: headerFont},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&s.cell, &excelize.Style{Border: border}},
		{&s.stripe, &excelize.Style{Border: border, Fill: stripe}},
		{&s.na, &excelize.Style{Border: border, Font: muted}},
		{&s.naStripe, &excelize.Style{Border: border, Fill: stripe, Font: muted}},
		{&s.noteStyle, &excelize.Style{Font: muted}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return sheetStyles{}, fmt.Errorf("create style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

func setCell(f *excelize.File, col, row int, val string, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellStr(SheetName, cell, val); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
		return fmt.Errorf("style %s: %w", cell, err)
	}
	return nil
}

func cellWidth(val string) float64 {
	return float64(utf8.RuneCountInString(val)) * widthPerRune
}
