package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gestion-educativa-api/internal/attendance"
	"github.com/noah-isme/gestion-educativa-api/internal/observability"
	"github.com/noah-isme/gestion-educativa-api/pkg/cloudinary"
	"github.com/noah-isme/gestion-educativa-api/pkg/firestore"
)

var (
	ErrCourseIDEmpty      = errors.New("El ID del curso está vacío.")
	ErrFinalizeParams     = errors.New("Faltan parámetros: idCurso y/o convocatoria.")
	ErrNothingToExport    = errors.New("Error de comunicación: No hay datos procesados en la sesión actual para exportar. Intente procesar el archivo nuevamente.")
	ErrNoValidDates       = errors.New("No se encontraron fechas válidas en los datos.")
	ErrStorageUnavailable = errors.New("El almacenamiento de informes no está configurado.")
	errCourseNotFound     = errors.New("course not found")
)

// Course output folders, created under <convocation>/<course code>.
var AttendanceSubfolders = []string{
	"1. Zoom Original",
	"2. Zoom Plataforma",
	"3. Evaluación",
	"4. Cuestionario",
	"5. Copia Moodle",
	"6. Informes",
}

const (
	workbookFolder          = "2. Zoom Plataforma"
	reportFolder            = "6. Informes"
	maxWorkbookNameAttempts = 100
)

// ReportDrive stores generated files in a folder tree.
type ReportDrive interface {
	EnsureFolder(ctx context.Context, folder string) (string, error)
	Exists(ctx context.Context, folder, name string) (bool, error)
	Put(ctx context.Context, folder, name string, content []byte, overwrite bool) (cloudinary.File, error)
}

// ProcessRequest carries an uploaded export.
type ProcessRequest struct {
	Content  string `json:"content"`
	CourseID string `json:"courseId"`
}

// ProcessResult is the aggregated export plus anything already stored for its date.
type ProcessResult struct {
	Summary              []attendance.Participant `json:"resumen"`
	Details              [][]string               `json:"detallesCrudos"`
	WithoutEmail         []string                 `json:"alumnosSinCorreo"`
	ReportDate           string                   `json:"fechaInforme,omitempty"`
	ExistingObservations []attendance.Observation `json:"observacionesExistentes"`
	ExistingAbsent       string                   `json:"alumnosNoAsistieronExistentes"`
}

// FinalizeRequest carries the reviewed result of a Process call.
type FinalizeRequest struct {
	CourseID     string                   `json:"idCurso"`
	Convocation  string                   `json:"convocatoria"`
	RawRows      [][]string               `json:"datosCrudos"`
	Summary      []attendance.Participant `json:"datosProcesados"`
	WithoutEmail []string                 `json:"alumnosSinCorreo"`
	AbsentText   string                   `json:"alumnosNoAsistieronTexto"`
	NotesText    string                   `json:"observacionesTexto"`
	Course       *attendance.CourseInfo   `json:"datosCursoFirebase"`
}

// FinalizeResult describes the stored outputs.
type FinalizeResult struct {
	Message           string                `json:"mensaje"`
	FileID            string                `json:"idArchivo"`
	FileURL           string                `json:"urlArchivo"`
	Folder            string                `json:"carpetaDestino"`
	ReportURL         string                `json:"urlInforme"`
	ReportAction      string                `json:"accionInforme"`
	ReportDate        string                `json:"fechaInforme"`
	Course            attendance.CourseInfo `json:"datosAdicionales"`
	ObservationsSaved bool                  `json:"observacionesGuardadas"`
}

// CourseDetails is a course document mapped for the attendance module.
type CourseDetails struct {
	Course       attendance.CourseInfo    `json:"datosCurso"`
	Observations []attendance.Observation `json:"observacionesExistentes"`
	Absent       string                   `json:"alumnosNoAsistieronExistentes"`
	Date         string                   `json:"fechaConsulta,omitempty"`
}

// AttendanceService runs the attendance pipeline.
type AttendanceService interface {
	Process(ctx context.Context, req ProcessRequest) (ProcessResult, error)
	Finalize(ctx context.Context, owner *Session, req FinalizeRequest) (FinalizeResult, error)
	GetCourse(ctx context.Context, courseID, date string) (CourseDetails, error)
	Protection() firestore.LimiterStatus
}

type attendanceService struct {
	store      DocumentStore
	drive      ReportDrive
	limiter    *firestore.RateLimiter
	collection string
	location   *time.Location
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAttendanceService constructs the attendance pipeline. courses is the shared collection
// holding course documents; drive may be nil, in which case Finalize is unavailable.
func NewAttendanceService(store DocumentStore, drive ReportDrive, limiter *firestore.RateLimiter, courses string, location *time.Location, logger zerolog.Logger) AttendanceService {
	if location == nil {
		location = time.UTC
	}
	if courses == "" {
		courses = "db_cursos"
	}
	return &attendanceService{
		store:      store,
		drive:      drive,
		limiter:    limiter,
		collection: courses,
		location:   location,
		logger:     logger.With().Str("component", "attendance_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gestion-educativa-api/internal/service/attendance"),
		now:        time.Now,
	}
}

func (s *attendanceService) Process(ctx context.Context, req ProcessRequest) (ProcessResult, error) {
	result, err := attendance.Process(req.Content)
	if err != nil {
		observability.AttendanceRuns().WithLabelValues("process", "rejected").Inc()
		return ProcessResult{}, err
	}

	out := ProcessResult{
		Summary:              result.Summary,
		Details:              result.Details,
		WithoutEmail:         attendance.WithoutEmail(result.Summary),
		ExistingObservations: []attendance.Observation{},
	}
	if out.WithoutEmail == nil {
		out.WithoutEmail = []string{}
	}

	if date, ok := attendance.ReportDate(result.Details, s.location); ok {
		out.ReportDate = date
		if courseID := strings.TrimSpace(req.CourseID); courseID != "" && s.store != nil {
			details, err := s.GetCourse(ctx, courseID, date)
			if err != nil {
				s.logger.Warn().Err(err).Str("course_id", courseID).Msg("failed to load stored observations")
			} else {
				if details.Observations != nil {
					out.ExistingObservations = details.Observations
				}
				out.ExistingAbsent = details.Absent
			}
		}
	}

	observability.AttendanceRuns().WithLabelValues("process", "ok").Inc()
	return out, nil
}

func (s *attendanceService) Finalize(ctx context.Context, owner *Session, req FinalizeRequest) (FinalizeResult, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.finalize", trace.WithAttributes(
		attribute.String("attendance.course_id", req.CourseID),
		attribute.String("attendance.convocation", req.Convocation),
	))
	defer span.End()

	result, err := s.finalize(ctx, owner, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.AttendanceRuns().WithLabelValues("finalize", "failed").Inc()
		return FinalizeResult{}, err
	}
	observability.AttendanceRuns().WithLabelValues("finalize", "ok").Inc()
	return result, nil
}

func (s *attendanceService) finalize(ctx context.Context, owner *Session, req FinalizeRequest) (FinalizeResult, error) {
	courseID := strings.TrimSpace(req.CourseID)
	convocation := strings.TrimSpace(req.Convocation)
	if courseID == "" || convocation == "" {
		return FinalizeResult{}, ErrFinalizeParams
	}
	if len(req.RawRows) == 0 || req.Summary == nil {
		return FinalizeResult{}, ErrNothingToExport
	}
	if s.drive == nil {
		return FinalizeResult{}, ErrStorageUnavailable
	}

	course := attendance.PlaceholderCourse(courseID, convocation)
	if req.Course != nil {
		course = *req.Course
	}

	date, ok := attendance.ReportDate(req.RawRows, s.location)
	if !ok {
		return FinalizeResult{}, ErrNoValidDates
	}

	code := attendance.NormalizeCourseCode(courseID)
	courseFolder := folderSegment(convocation) + "/" + folderSegment(code)
	for _, sub := range AttendanceSubfolders {
		if _, err := s.drive.EnsureFolder(ctx, courseFolder+"/"+sub); err != nil {
			return FinalizeResult{}, fmt.Errorf("prepare folders: %w", err)
		}
	}
	targetFolder := courseFolder + "/" + workbookFolder

	content, err := attendance.BuildWorkbook(req.Summary, req.RawRows)
	if err != nil {
		return FinalizeResult{}, err
	}
	name, err := s.nextWorkbookName(ctx, targetFolder, attendance.FileBaseName(code)+" "+date)
	if err != nil {
		return FinalizeResult{}, err
	}
	workbook, err := s.drive.Put(ctx, targetFolder, name, content, false)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("store workbook: %w", err)
	}

	report, action, err := s.writeReport(ctx, courseFolder+"/"+reportFolder, attendance.ReportInput{
		CourseCode:   code,
		Course:       course,
		Date:         date,
		WithoutEmail: req.WithoutEmail,
		Absent:       req.AbsentText,
		Notes:        req.NotesText,
	})
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("store report: %w", err)
	}

	result := FinalizeResult{
		Message:      "✔️ ¡Proceso completado con éxito!",
		FileID:       workbook.PublicID,
		FileURL:      workbook.URL,
		Folder:       workbook.Folder,
		ReportURL:    report.URL,
		ReportAction: action,
		ReportDate:   date,
		Course:       course,
	}

	notes := strings.TrimSpace(req.NotesText)
	absent := strings.TrimSpace(req.AbsentText)
	if notes != "" || absent != "" {
		err := s.saveObservation(ctx, courseID, attendance.Observation{
			Date:       date,
			Text:       notes,
			Absent:     absent,
			ReportLink: report.URL,
			UpdatedBy:  ownerEmail(owner),
			UpdatedAt:  s.now().UTC(),
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("course_id", courseID).Msg("failed to store observation")
			result.Message += "\n\n⚠️ Las observaciones no se pudieron guardar: " + PublicMessage(err)
		} else {
			result.ObservationsSaved = true
			result.Message += "\n\n📝 Observación guardada correctamente."
		}
	}

	return result, nil
}

func (s *attendanceService) nextWorkbookName(ctx context.Context, folder, base string) (string, error) {
	for n := 0; n < maxWorkbookNameAttempts; n++ {
		name := base + ".xlsx"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.xlsx", base, n)
		}
		exists, err := s.drive.Exists(ctx, folder, name)
		if err != nil {
			return "", fmt.Errorf("check workbook name: %w", err)
		}
		if !exists {
			return name, nil
		}
	}
	return "", fmt.Errorf("too many workbooks named %q", base)
}

func (s *attendanceService) writeReport(ctx context.Context, folder string, in attendance.ReportInput) (cloudinary.File, string, error) {
	title := attendance.ReportTitle(in.CourseCode, in.Date) + ".txt"

	exists, err := s.drive.Exists(ctx, folder, title)
	if err != nil {
		return cloudinary.File{}, "", err
	}
	file, err := s.drive.Put(ctx, folder, title, []byte(attendance.BuildReport(in)), true)
	if err != nil {
		return cloudinary.File{}, "", err
	}

	action := "creado"
	if exists {
		action = "actualizado"
	}
	return file, action, nil
}

func (s *attendanceService) GetCourse(ctx context.Context, courseID, date string) (CourseDetails, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return CourseDetails{}, ErrCourseIDEmpty
	}
	if s.store == nil {
		return CourseDetails{}, ErrDocumentStoreUnavailable
	}

	data, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return CourseDetails{}, err
	}

	details := CourseDetails{
		Course:       attendance.CourseInfoFromFields(data),
		Observations: []attendance.Observation{},
		Date:         date,
	}
	if date != "" {
		observations, absent := attendance.ObservationsFor(data[attendance.ObservationsField], date)
		if observations != nil {
			details.Observations = observations
		}
		details.Absent = absent
	}
	return details, nil
}

func (s *attendanceService) loadCourse(ctx context.Context, courseID string) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, s.collection+"/"+courseID)
	if err != nil {
		if errors.Is(err, firestore.ErrNotFound) {
			return nil, fmt.Errorf("%w: ID no encontrado: %q no existe en la base de datos.", errCourseNotFound, courseID)
		}
		return nil, fmt.Errorf("%w: %v", ErrDocumentStoreUnavailable, err)
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("%w: Curso no válido: El ID %q no contiene información.", errCourseNotFound, courseID)
	}
	return firestore.DecodeFields(doc.Fields), nil
}

func (s *attendanceService) saveObservation(ctx context.Context, courseID string, obs attendance.Observation) error {
	data, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return err
	}

	observations := attendance.UpsertObservation(data[attendance.ObservationsField], obs)
	_, err = s.store.PatchDocument(ctx, s.collection+"/"+courseID, firestore.EncodeFields(map[string]any{
		attendance.ObservationsField: observations,
	}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDocumentStoreUnavailable, err)
	}
	return nil
}

func (s *attendanceService) Protection() firestore.LimiterStatus {
	if s.limiter == nil {
		return firestore.LimiterStatus{State: firestore.LimiterInactive}
	}
	return s.limiter.Status()
}

// IsCourseNotFound reports whether err came from a missing or empty course document.
func IsCourseNotFound(err error) bool {
	return errors.Is(err, errCourseNotFound)
}

// PublicMessage strips internal detail from wrapped sentinel errors.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, errCourseNotFound):
		msg := err.Error()
		return strings.TrimPrefix(msg, errCourseNotFound.Error()+": ")
	case errors.Is(err, ErrDocumentStoreUnavailable):
		return ErrDocumentStoreUnavailable.Error()
	default:
		return err.Error()
	}
}

func folderSegment(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "/", "_")
}

func ownerEmail(owner *Session) string {
	if owner == nil {
		return ""
	}
	return owner.Email
}
