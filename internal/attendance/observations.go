package attendance

import (
	"strings"
	"time"
)

// ObservationsField is the course document field holding dated observations.
const ObservationsField = "observaciones"

// Observation is a dated note stored on a course document.
type Observation struct {
	Date       string    `json:"fecha"`
	Text       string    `json:"texto"`
	Absent     string    `json:"alumnosNoAsistieron"`
	ReportLink string    `json:"linkInforme,omitempty"`
	UpdatedBy  string    `json:"actualizadoPor,omitempty"`
	UpdatedAt  time.Time `json:"actualizadoEn"`
}

func (o Observation) toMap() map[string]any {
	return map[string]any{
		"fecha":               o.Date,
		"texto":               o.Text,
		"alumnosNoAsistieron": o.Absent,
		"linkInforme":         o.ReportLink,
		"actualizadoPor":      o.UpdatedBy,
		"actualizadoEn":       o.UpdatedAt,
	}
}

func observationFromMap(data map[string]any) Observation {
	obs := Observation{
		Date:       firstText(data, "fecha"),
		Text:       firstText(data, "texto"),
		Absent:     firstText(data, "alumnosNoAsistieron"),
		ReportLink: firstText(data, "linkInforme"),
		UpdatedBy:  firstText(data, "actualizadoPor"),
	}
	if ts, ok := data["actualizadoEn"].(time.Time); ok {
		obs.UpdatedAt = ts
	}
	return obs
}

// ObservationsFor returns the observations stored for date and the last non-empty absentee
// list among them. stored is the decoded observations field of a course document.
func ObservationsFor(stored any, date string) ([]Observation, string) {
	items, _ := stored.([]any)

	var matches []Observation
	absent := ""
	for _, item := range items {
		data, ok := item.(map[string]any)
		if !ok {
			continue
		}
		obs := observationFromMap(data)
		if obs.Date != date {
			continue
		}
		matches = append(matches, obs)
		if strings.TrimSpace(obs.Absent) != "" {
			absent = obs.Absent
		}
	}
	return matches, absent
}

// UpsertObservation replaces the entry with the same date or appends obs, returning the new
// field value ready to be stored.
func UpsertObservation(stored any, obs Observation) []any {
	items, _ := stored.([]any)

	out := make([]any, 0, len(items)+1)
	replaced := false
	for _, item := range items {
		data, ok := item.(map[string]any)
		if ok && firstText(data, "fecha") == obs.Date {
			if !replaced {
				out = append(out, obs.toMap())
				replaced = true
			}
			continue
		}
		out = append(out, item)
	}
	if !replaced {
		out = append(out, obs.toMap())
	}
	return out
}
