package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// ErrNotFound is wrapped by APIError for 404 responses.
var ErrNotFound = errors.New("document not found")

// APIError describes a non-2xx response from the document API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Firestore error %d: %s", e.Status, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Config configures the client.
type Config struct {
	Endpoint   string
	ProjectID  string
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client is a thin REST client for the Firestore documents API.
type Client struct {
	http       *http.Client
	baseURL    string
	tokens     oauth2.TokenSource
	limiter    *RateLimiter
	maxRetries uint64
	retryDelay time.Duration
	logger     zerolog.Logger
	tracer     trace.Tracer
	observe    func(method string, status int)
}

// NewClient builds a document client. tokens supplies bearer tokens and limiter throttles
// outbound calls; both are required.
func NewClient(cfg Config, tokens oauth2.TokenSource, limiter *RateLimiter, logger zerolog.Logger) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project id must be provided")
	}
	if tokens == nil {
		return nil, errors.New("firestore token source must be provided")
	}
	if limiter == nil {
		return nil, errors.New("firestore rate limiter must be provided")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://firestore.googleapis.com/v1"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Millisecond
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		http:       httpClient,
		baseURL:    fmt.Sprintf("%s/projects/%s/databases/(default)/documents", endpoint, cfg.ProjectID),
		tokens:     tokens,
		limiter:    limiter,
		maxRetries: uint64(retries),
		retryDelay: delay,
		logger:     logger.With().Str("component", "firestore_client").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gestion-educativa-api/pkg/firestore"),
	}, nil
}

// OnResponse registers a hook invoked with every upstream status code (0 for transport errors).
func (c *Client) OnResponse(fn func(method string, status int)) {
	c.observe = fn
}

// Limiter exposes the client's throttle.
func (c *Client) Limiter() *RateLimiter {
	return c.limiter
}

// CreateDocument adds a document with a server-assigned id under the collection path.
func (c *Client) CreateDocument(ctx context.Context, collectionPath string, fields map[string]Value) (Document, error) {
	var doc Document
	err := c.do(ctx, http.MethodPost, collectionPath, nil, Document{Fields: fields}, &doc)
	return doc, err
}

// GetDocument fetches a single document.
func (c *Client) GetDocument(ctx context.Context, documentPath string) (Document, error) {
	var doc Document
	err := c.do(ctx, http.MethodGet, documentPath, nil, nil, &doc)
	return doc, err
}

// ListDocuments returns every document of a collection, following page tokens.
func (c *Client) ListDocuments(ctx context.Context, collectionPath string) ([]Document, error) {
	var docs []Document
	pageToken := ""
	for {
		query := url.Values{}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page struct {
			Documents     []Document `json:"documents"`
			NextPageToken string     `json:"nextPageToken"`
		}
		if err := c.do(ctx, http.MethodGet, collectionPath, query, nil, &page); err != nil {
			return nil, err
		}
		docs = append(docs, page.Documents...)
		if page.NextPageToken == "" {
			return docs, nil
		}
		pageToken = page.NextPageToken
	}
}

// PatchDocument updates only the given fields of a document, creating it when missing.
func (c *Client) PatchDocument(ctx context.Context, documentPath string, fields map[string]Value) (Document, error) {
	query := url.Values{}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		query.Add("updateMask.fieldPaths", quoteFieldPath(key))
	}

	var doc Document
	err := c.do(ctx, http.MethodPatch, documentPath, query, Document{Fields: fields}, &doc)
	return doc, err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, documentPath string) error {
	return c.do(ctx, http.MethodDelete, documentPath, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	ctx, span := c.tracer.Start(ctx, "firestore."+strings.ToLower(method), trace.WithAttributes(
		attribute.String("firestore.path", path),
	))
	defer span.End()

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	target := c.baseURL + "/" + escapePath(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewConstant(c.retryDelay))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.attempt(ctx, method, target, payload, out)
		if err != nil && isRetryable(err) {
			c.logger.Warn().Err(err).Str("method", method).Str("path", path).Int("attempt", attempt).Msg("firestore request failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("obtain access token: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.report(method, 0)
		return &transportError{err: err}
	}
	defer resp.Body.Close()
	c.report(method, resp.StatusCode)

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(content))}
	}

	if out == nil || len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) report(method string, status int) {
	if c.observe != nil {
		c.observe(method, status)
	}
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "firestore transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError
	}

	var transportErr *transportError
	return errors.As(err, &transportErr)
}

func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func quoteFieldPath(key string) string {
	for _, r := range key {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return "`" + strings.ReplaceAll(key, "`", "\\`") + "`"
		}
	}
	if key != "" && key[0] >= '0' && key[0] <= '9' {
		return "`" + key + "`"
	}
	return key
}
