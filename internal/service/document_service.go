package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gestion-educativa-api/pkg/firestore"
)

var (
	// ErrDocumentNotFound is returned when the requested document does not exist.
	ErrDocumentNotFound = errors.New("Documento no encontrado")
	// ErrInvalidCollection is returned for empty or nested collection names.
	ErrInvalidCollection = errors.New("Colección inválida")
	// ErrDocumentStoreUnavailable hides upstream failures from callers.
	ErrDocumentStoreUnavailable = errors.New("Error del sistema al acceder a la base de datos")
)

// ConnectionTestCollection receives the probe document of TestConnection.
const ConnectionTestCollection = "connection_test"

// ValidationError lists the messages produced by a collection validator.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// BatchLimitError is returned when a batch exceeds the configured size.
type BatchLimitError struct {
	Max int
}

func (e *BatchLimitError) Error() string {
	return fmt.Sprintf("Límite excedido. Máximo %d operaciones por lote", e.Max)
}

// DocumentStore is the subset of the document API client used by the services.
type DocumentStore interface {
	CreateDocument(ctx context.Context, collectionPath string, fields map[string]firestore.Value) (firestore.Document, error)
	GetDocument(ctx context.Context, documentPath string) (firestore.Document, error)
	ListDocuments(ctx context.Context, collectionPath string) ([]firestore.Document, error)
	PatchDocument(ctx context.Context, documentPath string, fields map[string]firestore.Value) (firestore.Document, error)
	DeleteDocument(ctx context.Context, documentPath string) error
}

// DocumentRecord is a decoded document.
type DocumentRecord struct {
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
	CreateTime string         `json:"createTime,omitempty"`
	UpdateTime string         `json:"updateTime,omitempty"`
}

// DocumentService is the per-user CRUD facade over the document store. Documents live under
// users/<namespace>/<collection>, where the namespace is the session alias or, without a
// session, the service account's local-part.
type DocumentService interface {
	Create(ctx context.Context, owner *Session, collection string, data map[string]any) (DocumentRecord, error)
	CreateBatch(ctx context.Context, owner *Session, collection string, items []map[string]any) ([]DocumentRecord, error)
	Get(ctx context.Context, owner *Session, collection, id string) (DocumentRecord, error)
	List(ctx context.Context, owner *Session, collection string) ([]DocumentRecord, error)
	Update(ctx context.Context, owner *Session, collection, id string, data map[string]any) (DocumentRecord, error)
	Delete(ctx context.Context, owner *Session, collection, id string) error
	ValidateBatch(count int) error
	TestConnection(ctx context.Context, owner *Session) error
}

type documentService struct {
	store             DocumentStore
	validators        *ValidatorRegistry
	fallbackNamespace string
	maxBatch          int
	logger            zerolog.Logger
	now               func() time.Time
}

// NewDocumentService constructs the CRUD facade.
func NewDocumentService(store DocumentStore, validators *ValidatorRegistry, fallbackNamespace string, maxBatch int, logger zerolog.Logger) DocumentService {
	if validators == nil {
		validators = NewValidatorRegistry(nil)
	}
	if maxBatch <= 0 {
		maxBatch = 10
	}
	return &documentService{
		store:             store,
		validators:        validators,
		fallbackNamespace: fallbackNamespace,
		maxBatch:          maxBatch,
		logger:            logger.With().Str("component", "document_service").Logger(),
		now:               time.Now,
	}
}

func (s *documentService) namespace(owner *Session) string {
	if owner != nil && strings.TrimSpace(owner.Alias) != "" {
		return strings.TrimSpace(owner.Alias)
	}
	return s.fallbackNamespace
}

func (s *documentService) collectionPath(owner *Session, collection string) (string, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" || strings.Contains(collection, "/") {
		return "", ErrInvalidCollection
	}
	return "users/" + s.namespace(owner) + "/" + collection, nil
}

func (s *documentService) documentPath(owner *Session, collection, id string) (string, error) {
	base, err := s.collectionPath(owner, collection)
	if err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return "", ErrDocumentNotFound
	}
	return base + "/" + id, nil
}

func (s *documentService) Create(ctx context.Context, owner *Session, collection string, data map[string]any) (DocumentRecord, error) {
	path, err := s.collectionPath(owner, collection)
	if err != nil {
		return DocumentRecord{}, err
	}

	payload := sanitizeDocument(data)
	if messages := s.validators.Validate(collection, payload); len(messages) > 0 {
		return DocumentRecord{}, &ValidationError{Messages: messages}
	}

	payload["_createdBy"] = s.namespace(owner)
	payload["_createdAt"] = s.now().UTC()
	payload["_sessionId"] = sessionID(owner)

	doc, err := s.store.CreateDocument(ctx, path, firestore.EncodeFields(payload))
	if err != nil {
		return DocumentRecord{}, s.upstream(err, "create", path)
	}
	return toRecord(doc), nil
}

func (s *documentService) CreateBatch(ctx context.Context, owner *Session, collection string, items []map[string]any) ([]DocumentRecord, error) {
	if err := s.ValidateBatch(len(items)); err != nil {
		return nil, err
	}

	records := make([]DocumentRecord, 0, len(items))
	for _, item := range items {
		record, err := s.Create(ctx, owner, collection, item)
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *documentService) Get(ctx context.Context, owner *Session, collection, id string) (DocumentRecord, error) {
	path, err := s.documentPath(owner, collection, id)
	if err != nil {
		return DocumentRecord{}, err
	}

	doc, err := s.store.GetDocument(ctx, path)
	if err != nil {
		return DocumentRecord{}, s.upstream(err, "get", path)
	}
	return toRecord(doc), nil
}

func (s *documentService) List(ctx context.Context, owner *Session, collection string) ([]DocumentRecord, error) {
	path, err := s.collectionPath(owner, collection)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.ListDocuments(ctx, path)
	if err != nil {
		return nil, s.upstream(err, "list", path)
	}

	records := make([]DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, toRecord(doc))
	}
	return records, nil
}

func (s *documentService) Update(ctx context.Context, owner *Session, collection, id string, data map[string]any) (DocumentRecord, error) {
	path, err := s.documentPath(owner, collection, id)
	if err != nil {
		return DocumentRecord{}, err
	}

	payload := sanitizeDocument(data)
	if messages := s.validators.Validate(collection, payload); len(messages) > 0 {
		return DocumentRecord{}, &ValidationError{Messages: messages}
	}

	payload["_updatedBy"] = s.namespace(owner)
	payload["_updatedAt"] = s.now().UTC()
	payload["_sessionId"] = sessionID(owner)

	doc, err := s.store.PatchDocument(ctx, path, firestore.EncodeFields(payload))
	if err != nil {
		return DocumentRecord{}, s.upstream(err, "update", path)
	}
	return toRecord(doc), nil
}

func (s *documentService) Delete(ctx context.Context, owner *Session, collection, id string) error {
	path, err := s.documentPath(owner, collection, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, path); err != nil {
		return s.upstream(err, "delete", path)
	}
	return nil
}

func (s *documentService) ValidateBatch(count int) error {
	if count > s.maxBatch {
		return &BatchLimitError{Max: s.maxBatch}
	}
	return nil
}

func (s *documentService) TestConnection(ctx context.Context, owner *Session) error {
	created, err := s.Create(ctx, owner, ConnectionTestCollection, map[string]any{
		"test":    true,
		"message": "Prueba de conexión",
		"user":    s.namespace(owner),
	})
	if err != nil {
		return err
	}
	if _, err := s.Get(ctx, owner, ConnectionTestCollection, created.ID); err != nil {
		return err
	}
	return s.Delete(ctx, owner, ConnectionTestCollection, created.ID)
}

func (s *documentService) upstream(err error, op, path string) error {
	if errors.Is(err, firestore.ErrNotFound) {
		return ErrDocumentNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Str("path", path).Msg("document store call failed")
	return fmt.Errorf("%w: %v", ErrDocumentStoreUnavailable, err)
}

func toRecord(doc firestore.Document) DocumentRecord {
	return DocumentRecord{
		ID:         doc.ID(),
		Data:       firestore.DecodeFields(doc.Fields),
		CreateTime: doc.CreateTime,
		UpdateTime: doc.UpdateTime,
	}
}

func sessionID(owner *Session) string {
	if owner == nil {
		return ""
	}
	return owner.SessionID
}
