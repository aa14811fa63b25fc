package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rakhimov-me/smax-ai/internal/domain"
)

// ExcelReader reads .xlsx exports. The first sheet is the data sheet and its
// first row is the header.
type ExcelReader struct{}

// NewExcelReader creates an Excel source reader.
func NewExcelReader() *ExcelReader { return &ExcelReader{} }

// ListSources returns the paths of all .xlsx files directly under dir,
// sorted by name.
func (e *ExcelReader) ListSources(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	return files, nil
}

// Read loads one workbook into a header-keyed table.
func (e *ExcelReader) Read(path string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Table{}, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return Table{}, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	table := Table{Columns: header, Rows: make([]domain.RawRow, 0, len(rows)-1)}
	for _, cells := range rows[1:] {
		row := make(domain.RawRow, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(cells) {
				row[col] = cells[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
