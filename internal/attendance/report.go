package attendance

import (
	"strings"
)

const (
	reportSeparator = "--------------------------------------------------------\n"
	noIssuesLine    = "EN ESTA FECHA NO SE HA TENIDO NOVEDADES EN ESTE CURSO, TODAS LAS ASISTENCIAS HAN SIDO CORRECTAS"
)

// ReportInput carries everything printed in a course report.
type ReportInput struct {
	CourseCode   string
	Course       CourseInfo
	Date         string
	WithoutEmail []string
	Absent       string
	Notes        string
}

// ReportTitle is the stored title of the report for a course and date.
func ReportTitle(courseCode, date string) string {
	return FileBaseName(courseCode) + " " + date + " Informe"
}

// BuildReport renders the plain-text report. When nothing is flagged it carries a single
// no-issues line after the header block.
func BuildReport(in ReportInput) string {
	code := NormalizeCourseCode(in.CourseCode)

	var b strings.Builder
	b.WriteString("CONTROL DE ASISTENCIAS DEL CURSO: " + orDefault(in.Course.Name, code) + "\n")
	b.WriteString("ID DE CURSO (Código): " + code + "\n")
	b.WriteString("CENTRO GESTOR: " + orDefault(in.Course.Center, notAvailable) + "\n")
	b.WriteString("MAIL CENTRO: " + orDefault(in.Course.CenterMail, notAvailable) + "\n")
	b.WriteString("HORARIO: " + orDefault(in.Course.Schedule, notAvailable) + "\n")
	b.WriteString("FECHA INICIO DEL CURSO: " + orDefault(in.Course.StartDate, notAvailable) + "\n")
	b.WriteString("FECHA FIN DEL CURSO: " + orDefault(in.Course.EndDate, notAvailable) + "\n")
	b.WriteString("FECHA FECHA_25: " + orDefault(in.Course.Date25, notAvailable) + "\n")
	b.WriteString("FECHA DEL REPORTE DE ASISTENCIA (Zoom): " + in.Date + "\n\n")

	absent := strings.TrimSpace(in.Absent)
	notes := strings.TrimSpace(in.Notes)

	if len(in.WithoutEmail) == 0 && absent == "" && notes == "" {
		b.WriteString(noIssuesLine)
		return b.String()
	}

	if len(in.WithoutEmail) > 0 {
		b.WriteString(reportSeparator)
		b.WriteString("🛑 Alumnos sin correo (requieren revisión/registro):\n")
		writeBullets(&b, in.WithoutEmail)
	}
	if absent != "" {
		b.WriteString(reportSeparator)
		b.WriteString("🚫 Alumnos que NO Asistieron:\n")
		writeBullets(&b, strings.Split(absent, "\n"))
	}
	if notes != "" {
		b.WriteString(reportSeparator)
		b.WriteString("ℹ️ Novedades / Observaciones:\n")
		writeBullets(&b, strings.Split(notes, "\n"))
	}

	return b.String()
}

func writeBullets(b *strings.Builder, lines []string) {
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + strings.TrimSpace(line))
	}
	b.WriteString("\n")
}
