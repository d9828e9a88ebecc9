package attendance

import (
	"fmt"
	"regexp"
	"strings"
)

const notAvailable = "N/A"

var courseCodePattern = regexp.MustCompile(`^(\d+/\d+)\s*([Bb]\s*[Ii]\s*[Ss])?\s*(\d*)$`)

// NormalizeCourseCode collapses whitespace and canonicalises the BIS marker, so "123/45 bis"
// becomes "123/45 BIS 1". Codes that do not look like "<n>/<n>" are only whitespace-collapsed.
func NormalizeCourseCode(code string) string {
	normalized := strings.Join(strings.Fields(code), " ")

	match := courseCodePattern.FindStringSubmatch(normalized)
	if match == nil {
		return normalized
	}

	base, bis, number := match[1], match[2], match[3]
	switch {
	case bis != "" && number != "":
		return fmt.Sprintf("%s %s %s", base, compactBIS(bis), number)
	case bis != "":
		return fmt.Sprintf("%s %s 1", base, compactBIS(bis))
	case number != "":
		return fmt.Sprintf("%s BIS %s", base, number)
	default:
		return base
	}
}

func compactBIS(marker string) string {
	return strings.ToUpper(strings.Join(strings.Fields(marker), ""))
}

// FileBaseName is the course code as used in stored file names.
func FileBaseName(courseCode string) string {
	return strings.ReplaceAll(NormalizeCourseCode(courseCode), "/", "_")
}

// CourseLinks groups the external links kept for a course.
type CourseLinks struct {
	VirtualClassroom string `json:"linkAulaVirtual"`
	ERP              string `json:"linkERP"`
	Attendance       string `json:"linkAsistencias"`
}

// CourseInfo is the course metadata printed in reports.
type CourseInfo struct {
	Name         string      `json:"nombreCurso"`
	Convocation  string      `json:"convocatoria"`
	Company      string      `json:"empresa"`
	StartDate    string      `json:"fechaInicio"`
	EndDate      string      `json:"fechaFin"`
	Center       string      `json:"centroGestor"`
	CenterMail   string      `json:"mailCentro"`
	Schedule     string      `json:"horario"`
	Date25       string      `json:"fecha25"`
	Teacher      string      `json:"docente"`
	FileNumber   string      `json:"expediente"`
	Sector       string      `json:"sector"`
	HF           string      `json:"hf"`
	DailyHours   string      `json:"horasDiarias"`
	Action       string      `json:"accion"`
	ClassroomURL string      `json:"enlaceAula"`
	Links        CourseLinks `json:"links"`
}

// PlaceholderCourse is used when no stored metadata accompanies a finalisation.
func PlaceholderCourse(courseID, convocation string) CourseInfo {
	return CourseInfo{
		Name:         courseID,
		Convocation:  convocation,
		Company:      notAvailable,
		StartDate:    notAvailable,
		EndDate:      notAvailable,
		Center:       notAvailable,
		CenterMail:   notAvailable,
		Schedule:     notAvailable,
		Date25:       notAvailable,
		Teacher:      notAvailable,
		FileNumber:   notAvailable,
		Sector:       notAvailable,
		HF:           notAvailable,
		DailyHours:   notAvailable,
		Action:       notAvailable,
		ClassroomURL: notAvailable,
	}
}

// CourseInfoFromFields maps a stored course document, which may use either the upper-case
// sheet headers (CURSO, FECHA_INI, ...) or camelCase keys, into CourseInfo.
func CourseInfoFromFields(data map[string]any) CourseInfo {
	links, _ := data["links"].(map[string]any)

	return CourseInfo{
		Name:         firstText(data, "CURSO", "nombreCurso"),
		Convocation:  firstText(data, "CONVOCATORIA", "convocatoria"),
		Company:      firstText(data, "EMPRESA", "empresa"),
		StartDate:    firstText(data, "FECHA_INI", "fechaInicio"),
		EndDate:      firstText(data, "FECHA_FIN", "fechaFin"),
		Center:       firstText(data, "CENTRO", "centroGestor"),
		CenterMail:   firstText(data, "MAIL_CENTRO", "mailCentro"),
		Schedule:     firstText(data, "HORARIO", "horario"),
		Date25:       firstText(data, "FECHA_25", "fecha25"),
		Teacher:      firstText(data, "DOCENTE", "docente"),
		FileNumber:   firstText(data, "EXPEDIENTE", "expediente"),
		Sector:       firstText(data, "SECTOR", "sector"),
		HF:           firstText(data, "HF", "hf"),
		DailyHours:   firstText(data, "HORAS_DIARIAS", "horasDiarias"),
		Action:       firstText(data, "ACCIÓN", "accion"),
		ClassroomURL: firstText(data, "ENLACE_AULA", "enlaceAula"),
		Links: CourseLinks{
			VirtualClassroom: firstNonEmpty(
				firstText(data, "linkAulaVirtual"),
				firstText(links, "linkAulaVirtual"),
				firstText(data, "ENLACE_AULA", "enlaceAula"),
			),
			ERP:        firstNonEmpty(firstText(data, "linkERP"), firstText(links, "linkERP")),
			Attendance: firstNonEmpty(firstText(data, "linkAsistencias"), firstText(links, "linkAsistencias")),
		},
	}
}

func firstText(data map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := data[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				return v
			}
		case bool:
			if v {
				return "true"
			}
		case int64:
			if v != 0 {
				return fmt.Sprint(v)
			}
		case float64:
			if v != 0 {
				return fmt.Sprint(v)
			}
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
