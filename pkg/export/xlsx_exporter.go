package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxSheet       = "Report"
	xlsxMinColWidth = 10.0
	xlsxMaxColWidth = 60.0
)

// XLSXExporter renders datasets into a single-sheet workbook with a bold,
// filterable header row.
type XLSXExporter struct {
	// RightToLeft flips the sheet direction for Arabic content.
	RightToLeft bool
}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter(rightToLeft bool) *XLSXExporter {
	return &XLSXExporter{RightToLeft: rightToLeft}
}

// Render writes the dataset starting at A1. The title, when present, becomes the sheet name.
func (e *XLSXExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := sheetName(title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if e.RightToLeft {
		rtl := true
		if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
			return nil, fmt.Errorf("set sheet view: %w", err)
		}
	}

	widths := make([]float64, len(data.Headers))
	writeRow := func(rowIdx int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
			if w := float64(utf8.RuneCountInString(v)) + 2; w > widths[i] {
				widths[i] = w
			}
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := writeRow(1, data.Headers); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range data.Rows {
		if err := writeRow(i+2, data.Record(row)); err != nil {
			return nil, fmt.Errorf("write xlsx row: %w", err)
		}
	}

	if err := formatSheet(f, sheet, len(data.Headers), widths); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func formatSheet(f *excelize.File, sheet string, cols int, widths []float64) error {
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return fmt.Errorf("resolve column name: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	if err := f.AutoFilter(sheet, "A1:"+lastCol+"1", nil); err != nil {
		return fmt.Errorf("apply autofilter: %w", err)
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if w < xlsxMinColWidth {
			w = xlsxMinColWidth
		}
		if w > xlsxMaxColWidth {
			w = xlsxMaxColWidth
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	return nil
}

// sheetName trims to Excel's 31-character limit and strips forbidden characters.
func sheetName(title string) string {
	if title == "" {
		return xlsxSheet
	}
	out := make([]rune, 0, 31)
	for _, r := range title {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return xlsxSheet
	}
	return string(out)
}
