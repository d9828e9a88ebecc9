package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gestion-educativa-api/internal/handler"
	"github.com/noah-isme/gestion-educativa-api/internal/middleware"
	"github.com/noah-isme/gestion-educativa-api/internal/service"
)

type mockDocumentService struct {
	owner      *service.Session
	collection string
	id         string
	data       map[string]any
	batch      []map[string]any
	err        error
}

func (m *mockDocumentService) Create(_ context.Context, owner *service.Session, collection string, data map[string]any) (service.DocumentRecord, error) {
	m.owner, m.collection, m.data = owner, collection, data
	return service.DocumentRecord{ID: "doc1", Data: data}, m.err
}

func (m *mockDocumentService) CreateBatch(_ context.Context, owner *service.Session, collection string, items []map[string]any) ([]service.DocumentRecord, error) {
	m.owner, m.collection, m.batch = owner, collection, items
	if m.err != nil {
		return nil, m.err
	}
	return make([]service.DocumentRecord, len(items)), nil
}

func (m *mockDocumentService) Get(_ context.Context, owner *service.Session, collection, id string) (service.DocumentRecord, error) {
	m.owner, m.collection, m.id = owner, collection, id
	return service.DocumentRecord{ID: id}, m.err
}

func (m *mockDocumentService) List(_ context.Context, owner *service.Session, collection string) ([]service.DocumentRecord, error) {
	m.owner, m.collection = owner, collection
	return []service.DocumentRecord{{ID: "a"}, {ID: "b"}}, m.err
}

func (m *mockDocumentService) Update(_ context.Context, owner *service.Session, collection, id string, data map[string]any) (service.DocumentRecord, error) {
	m.owner, m.collection, m.id, m.data = owner, collection, id, data
	return service.DocumentRecord{ID: id, Data: data}, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, owner *service.Session, collection, id string) error {
	m.owner, m.collection, m.id = owner, collection, id
	return m.err
}

func (m *mockDocumentService) ValidateBatch(int) error { return nil }

func (m *mockDocumentService) TestConnection(context.Context, *service.Session) error { return m.err }

func newDocumentApp(svc service.DocumentService) *fiber.App {
	app := fiber.New()
	group := app.Group("/documents", func(c *fiber.Ctx) error {
		middleware.SetSession(c, &service.Session{Alias: "ana", SessionID: "sid-1"})
		return c.Next()
	})
	handler.NewDocumentHandler(svc, nil, zerolog.Nop()).Register(group)
	return app
}

func TestDocumentHandlerCRUD(t *testing.T) {
	svc := &mockDocumentService{}
	app := newDocumentApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/documents/alumnos", map[string]any{"nombre": "Bea", "curso": "123/45"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "alumnos", svc.collection)
	require.Equal(t, "ana", svc.owner.Alias)
	require.Equal(t, "Bea", svc.data["nombre"])

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/documents/alumnos", nil))
	require.NoError(t, err)
	var list envelope
	decodeResponse(t, resp, &list)
	require.JSONEq(t, `{"count":2}`, string(list.Meta))

	resp, err = app.Test(jsonRequest(t, http.MethodPatch, "/documents/alumnos/doc1", map[string]any{"nombre": "Beatriz"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "doc1", svc.id)

	resp, err = app.Test(jsonRequest(t, http.MethodDelete, "/documents/alumnos/doc1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDocumentHandlerBatch(t *testing.T) {
	svc := &mockDocumentService{}
	app := newDocumentApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/documents/cursos/batch", map[string]any{
		"items": []map[string]any{{"nombre": "Uno"}, {"nombre": "Dos"}},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Len(t, svc.batch, 2)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/documents/cursos/batch", map[string]any{"items": []map[string]any{}}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	svc.err = &service.BatchLimitError{Max: 10}
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/documents/cursos/batch", map[string]any{
		"items": []map[string]any{{"nombre": "Uno"}},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body envelope
	decodeResponse(t, resp, &body)
	require.Equal(t, "Límite excedido. Máximo 10 operaciones por lote", body.Message)
}

func TestDocumentHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&service.ValidationError{Messages: []string{"Curso es requerido"}}, fiber.StatusUnprocessableEntity},
		{service.ErrDocumentNotFound, fiber.StatusNotFound},
		{service.ErrInvalidCollection, fiber.StatusBadRequest},
		{errors.Join(service.ErrDocumentStoreUnavailable, errors.New("Firestore error 500: boom")), fiber.StatusBadGateway},
	}

	for _, tc := range cases {
		svc := &mockDocumentService{err: tc.err}
		app := newDocumentApp(svc)

		resp, err := app.Test(jsonRequest(t, http.MethodGet, "/documents/alumnos/x", nil))
		require.NoError(t, err)
		require.Equal(t, tc.status, resp.StatusCode, tc.err.Error())

		var body envelope
		decodeResponse(t, resp, &body)
		require.False(t, body.Success)
		require.NotContains(t, body.Message, "boom")
	}
}

func TestDocumentHandlerBatchReportsInvalidFields(t *testing.T) {
	app := newDocumentApp(&mockDocumentService{})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/documents/cursos/batch", map[string]any{"items": []map[string]any{}}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body envelope
	decodeResponse(t, resp, &body)
	require.Equal(t, "El lote debe contener al menos un elemento válido", body.Message)
	require.Contains(t, string(body.Details), "Items")
}
