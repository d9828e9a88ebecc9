package attendance

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the generated workbook.
const (
	SummarySheet = "Resumen Agrupado"
	DetailSheet  = "Detalles por Alumno"

	hmsHeader = "Horas Totales (HH:mm:ss)"
)

// BuildWorkbook renders the summary and raw-detail sheets as an xlsx document. details
// starts with its header row; each detail row gets a formatted duration column appended.
func BuildWorkbook(summary []Participant, details [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"041D3B"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	summaryRows := [][]any{{"Nombre completo", "Minutos Totales", hmsHeader}}
	for _, p := range summary {
		summaryRows = append(summaryRows, []any{p.Name, p.TotalMinutes, p.TotalHMS})
	}
	if err := writeSheet(f, SummarySheet, summaryRows, headerStyle); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(DetailSheet); err != nil {
		return nil, err
	}
	var detailRows [][]any
	for i, row := range details {
		values := make([]any, 0, len(row)+1)
		for j, value := range row {
			if i > 0 && j == colMinutes {
				if minutes, err := strconv.ParseFloat(value, 64); err == nil {
					values = append(values, minutes)
					continue
				}
			}
			values = append(values, value)
		}
		if i == 0 {
			values = append(values, hmsHeader)
		} else {
			minutes, _ := strconv.ParseFloat(cell(row, colMinutes), 64)
			values = append(values, MinutesToHMS(minutes))
		}
		detailRows = append(detailRows, values)
	}
	if err := writeSheet(f, DetailSheet, detailRows, headerStyle); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	width := 0
	for i, row := range rows {
		start, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil
	}

	last, err := excelize.CoordinatesToCellName(width, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 22); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
