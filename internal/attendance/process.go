package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Column positions of the conference export.
const (
	colEmail    = 1
	colName     = 2
	colStart    = 5
	colEnd      = 6
	colDuration = 7
	colMinutes  = 8
)

// MinutesHeader names the computed minutes column.
const MinutesHeader = "MINUTOS"

var (
	// ErrEmptyUpload is returned when no file content was received.
	ErrEmptyUpload = errors.New("No se ha cargado ningún archivo.")
	// ErrNoDataRows is returned when the export has no row beyond the header.
	ErrNoDataRows = errors.New("El archivo debe contener al menos una fila de datos.")
)

var specialPrefixes = []string{"SOPORTE", "INFORMACIÓN", "COORDINACI", "GESTOR", "DOCENTE", "INFO"}

// Kind classifies a participant.
type Kind string

const (
	KindNormal Kind = "normal"
	// KindKeyword marks names starting with a staff role word.
	KindKeyword Kind = "tipo1"
	// KindRoleMismatch marks normal-looking names whose name/surname columns say DOCENTE.
	KindRoleMismatch Kind = "tipo2"
)

// Participant is the aggregated attendance of one name.
type Participant struct {
	Name         string  `json:"nombre"`
	TotalMinutes float64 `json:"minutos_totales"`
	TotalHMS     string  `json:"horas_totales"`
	Special      bool    `json:"esEspecial"`
	Kind         Kind    `json:"tipoEspecial"`
	HasEmail     bool    `json:"tieneCorreo"`
}

// Result is the outcome of processing an export.
type Result struct {
	Summary []Participant `json:"resumen"`
	// Details holds the header plus every kept row, extended with the minutes column.
	Details [][]string `json:"detallesCrudos"`
}

// ParseCSV reads comma-separated text into records of varying width.
func ParseCSV(content string) ([][]string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyUpload
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return records, nil
}

// Process parses and aggregates an export in one step.
func Process(content string) (Result, error) {
	records, err := ParseCSV(content)
	if err != nil {
		return Result{}, err
	}
	return Aggregate(records)
}

// Aggregate sums attended minutes per participant name and classifies each participant.
// Rows whose name column is blank are dropped.
func Aggregate(records [][]string) (Result, error) {
	if len(records) < 2 {
		return Result{}, ErrNoDataRows
	}

	header := padRow(records[0], colMinutes+1)
	header[colMinutes] = MinutesHeader

	nameIdx := headerContains(header, "nombre")
	surnameIdx := headerContains(header, "apellido")

	details := [][]string{header}
	totals := make(map[string]float64)
	kinds := make(map[string]Kind)
	hasEmail := make(map[string]bool)
	var order []string

	for _, record := range records[1:] {
		if strings.TrimSpace(cell(record, colName)) == "" {
			continue
		}

		row := padRow(record, colMinutes+1)
		minutes := roundMinutes(HMSToMinutes(row[colDuration]))
		row[colMinutes] = strconv.FormatFloat(minutes, 'f', -1, 64)
		details = append(details, row)

		name := row[colName]
		kind := classify(name, row, nameIdx, surnameIdx)

		if _, seen := totals[name]; !seen {
			order = append(order, name)
		}
		totals[name] += minutes
		kinds[name] = kind

		switch {
		case kind != KindNormal:
			hasEmail[name] = true
		case strings.TrimSpace(row[colEmail]) != "":
			hasEmail[name] = true
		default:
			if _, ok := hasEmail[name]; !ok {
				hasEmail[name] = false
			}
		}
	}

	summary := make([]Participant, 0, len(order))
	for _, name := range order {
		kind := kinds[name]
		summary = append(summary, Participant{
			Name:         name,
			TotalMinutes: totals[name],
			TotalHMS:     MinutesToHMS(totals[name]),
			Special:      kind != KindNormal,
			Kind:         kind,
			HasEmail:     hasEmail[name],
		})
	}
	SortParticipants(summary)

	return Result{Summary: summary, Details: details}, nil
}

// SortParticipants orders normal participants alphabetically, followed by the flagged ones.
func SortParticipants(items []Participant) {
	collator := collate.New(language.Spanish)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Special != items[j].Special {
			return !items[i].Special
		}
		return collator.CompareString(items[i].Name, items[j].Name) < 0
	})
}

// WithoutEmail lists participants that need an email registered.
func WithoutEmail(items []Participant) []string {
	var names []string
	for _, item := range items {
		if !item.HasEmail {
			names = append(names, item.Name)
		}
	}
	return names
}

func classify(name string, row []string, nameIdx, surnameIdx int) Kind {
	keyword := hasSpecialPrefix(name)
	if !keyword && nameIdx >= 0 && surnameIdx >= 0 {
		if strings.Contains(strings.ToUpper(cell(row, nameIdx)), "DOCENTE") ||
			strings.Contains(strings.ToUpper(cell(row, surnameIdx)), "DOCENTE") {
			return KindRoleMismatch
		}
	}
	if keyword {
		return KindKeyword
	}
	return KindNormal
}

func hasSpecialPrefix(name string) bool {
	upper := strings.ToUpper(name)
	for _, prefix := range specialPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func headerContains(header []string, needle string) int {
	for i, col := range header {
		if strings.Contains(strings.ToLower(col), needle) {
			return i
		}
	}
	return -1
}

func padRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	if len(row) > width {
		out = append(out, row[width:]...)
	}
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
