package service

import "errors"

// ErrModuleNotFound is returned for names outside the module catalogue.
var ErrModuleNotFound = errors.New("Módulo no encontrado")

// Module keys.
const (
	ModuleAttendance     = "CONTROL_ASISTENCIA"
	ModuleStudents       = "GESTION_ALUMNOS"
	ModuleCourseTracking = "SEGUIMIENTO_CURSOS"
	ModuleCourses        = "GESTION_CURSOS"
)

// Module describes an entry of the module catalogue.
type Module struct {
	Key     string `json:"module"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

var moduleCatalogue = []Module{
	{Key: ModuleAttendance, Title: "Control Asistencia", Message: "Módulo Control Asistencia abierto"},
	{Key: ModuleStudents, Title: "Gestión Alumnos", Message: "Módulo Gestión Alumnos abierto"},
	{Key: ModuleCourseTracking, Title: "Seguimiento Cursos", Message: "Módulo Seguimiento Cursos abierto"},
	{Key: ModuleCourses, Title: "Gestión Cursos", Message: "Módulo Gestión Cursos abierto"},
}

// Modules lists the catalogue in display order.
func Modules() []Module {
	out := make([]Module, len(moduleCatalogue))
	copy(out, moduleCatalogue)
	return out
}

// LookupModule finds a catalogue entry by key.
func LookupModule(key string) (Module, error) {
	for _, m := range moduleCatalogue {
		if m.Key == key {
			return m, nil
		}
	}
	return Module{}, ErrModuleNotFound
}
