package repository

import (
	"context"
	"strings"
)

// ParameterRepository reads institution parameters (Parametro, Valor, Descripción).
type ParameterRepository interface {
	All(ctx context.Context) (map[string]string, error)
}

type sheetParameterRepository struct {
	workbook *Workbook
	sheet    string
}

// NewSheetParameterRepository reads parameters from the given sheet of the workbook.
func NewSheetParameterRepository(workbook *Workbook, sheet string) ParameterRepository {
	return &sheetParameterRepository{workbook: workbook, sheet: sheet}
}

func (r *sheetParameterRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.workbook.Rows(ctx, r.sheet)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string)
	if len(rows) < 2 {
		return params, nil
	}

	header := rows[0]
	keyIdx := headerIndex(header, "Parametro", 0)
	valueIdx := headerIndex(header, "Valor", 1)
	for _, row := range rows[1:] {
		key := strings.TrimSpace(cell(row, keyIdx))
		if key == "" {
			continue
		}
		params[key] = cell(row, valueIdx)
	}
	return params, nil
}
