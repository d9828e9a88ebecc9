package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when the configured sheet is missing from the workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// Workbook reads tabular data from an xlsx file. The file is reopened on every read so edits
// made by administrators are picked up without a restart.
type Workbook struct {
	path string
}

// NewWorkbook points a reader at the workbook stored at path.
func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path}
}

// Path returns the workbook location.
func (w *Workbook) Path() string {
	return w.path
}

// Rows returns every row of the named sheet, header included.
func (w *Workbook) Rows(ctx context.Context, sheet string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// Check reports whether the named sheet can be opened.
func (w *Workbook) Check(ctx context.Context, sheet string) error {
	_, err := w.Rows(ctx, sheet)
	return err
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func headerIndex(header []string, name string, fallback int) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return fallback
}
