package service

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldRule binds a validator tag on one document field to the message shown when it fails.
type FieldRule struct {
	Field   string
	Tag     string
	Message string
}

// CollectionValidator checks a document payload and returns user-facing messages.
type CollectionValidator func(data map[string]any) []string

// ValidatorRegistry maps collection names to validators. Collections without an entry
// accept any payload.
type ValidatorRegistry struct {
	mu       sync.RWMutex
	validate *validator.Validate
	entries  map[string]CollectionValidator
}

// NewValidatorRegistry returns a registry preloaded with the alumnos, asistencia and cursos
// rules.
func NewValidatorRegistry(validate *validator.Validate) *ValidatorRegistry {
	if validate == nil {
		validate = validator.New()
	}
	r := &ValidatorRegistry{validate: validate, entries: make(map[string]CollectionValidator)}

	r.RegisterRules("alumnos",
		FieldRule{Field: "nombre", Tag: "required,min=2", Message: "Nombre de alumno inválido"},
		FieldRule{Field: "curso", Tag: "required", Message: "Curso es requerido"},
	)
	r.RegisterRules("asistencia",
		FieldRule{Field: "alumnoId", Tag: "required", Message: "ID de alumno requerido"},
		FieldRule{Field: "fecha", Tag: "required", Message: "Fecha requerida"},
	)
	r.RegisterRules("cursos",
		FieldRule{Field: "nombre", Tag: "required,min=2", Message: "Nombre de curso inválido"},
	)
	return r
}

// Register installs a custom validator for collection, replacing any previous one.
func (r *ValidatorRegistry) Register(collection string, fn CollectionValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[collection] = fn
}

// RegisterRules installs a tag-based validator. String values are trimmed before checking.
func (r *ValidatorRegistry) RegisterRules(collection string, rules ...FieldRule) {
	tags := make(map[string]interface{}, len(rules))
	for _, rule := range rules {
		tags[rule.Field] = rule.Tag
	}

	r.Register(collection, func(data map[string]any) []string {
		trimmed := make(map[string]interface{}, len(data))
		for key, value := range data {
			if s, ok := value.(string); ok {
				value = strings.TrimSpace(s)
			}
			trimmed[key] = value
		}

		failures := r.validate.ValidateMap(trimmed, tags)
		var messages []string
		for _, rule := range rules {
			if _, failed := failures[rule.Field]; failed {
				messages = append(messages, rule.Message)
			}
		}
		return messages
	})
}

// Validate runs the validator registered for collection.
func (r *ValidatorRegistry) Validate(collection string, data map[string]any) []string {
	r.mu.RLock()
	fn, ok := r.entries[collection]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return fn(data)
}
