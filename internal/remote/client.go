package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rghv234/wolffia/internal/domain"
)

// Document is the authoritative store's wire form of a document. Ids are
// integers assigned by the store; updated_at is the authoritative timestamp.
type Document struct {
	ID          int64       `json:"id"`
	ContainerID *int64      `json:"container_id"`
	Title       string      `json:"title"`
	Body        domain.Blob `json:"body"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Container struct {
	ID        int64     `json:"id"`
	ParentID  *int64    `json:"parent_id"`
	Name      string    `json:"name"`
	Rank      int       `json:"rank"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewDocument struct {
	Title       string      `json:"title"`
	Body        domain.Blob `json:"body"`
	ContainerID *int64      `json:"container_id,omitempty"`
}

type DocumentPatch struct {
	Title       *string      `json:"title,omitempty"`
	Body        *domain.Blob `json:"body,omitempty"`
	ContainerID *int64       `json:"container_id,omitempty"`
}

func (d *Document) ToDomain() *domain.Document {
	doc := &domain.Document{
		ID:           domain.RemoteID(d.ID),
		Title:        d.Title,
		Body:         d.Body,
		LastModified: d.UpdatedAt,
		SyncState:    domain.SyncClean,
	}
	if d.ContainerID != nil {
		id := domain.RemoteID(*d.ContainerID)
		doc.ContainerID = &id
	}
	return doc
}

func (c *Container) ToDomain() *domain.Container {
	container := &domain.Container{
		ID:   domain.RemoteID(c.ID),
		Name: c.Name,
		Rank: c.Rank,
	}
	if c.ParentID != nil {
		id := domain.RemoteID(*c.ParentID)
		container.ParentID = &id
	}
	return container
}

// Client is the request/response contract against the authoritative store.
type Client interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	GetDocument(ctx context.Context, id int64) (*Document, error)
	CreateDocument(ctx context.Context, doc NewDocument) (*Document, error)
	UpdateDocument(ctx context.Context, id int64, patch DocumentPatch) (*Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	ListContainers(ctx context.Context) ([]Container, error)
	GetSettings(ctx context.Context) (*domain.Settings, error)
	PutSettings(ctx context.Context, settings *domain.Settings) error
}

type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(baseURL, token string, client *http.Client) Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &httpClient{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		client:  client,
	}
}

func (c *httpClient) ListDocuments(ctx context.Context) ([]Document, error) {
	var out []Document
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/documents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetDocument(ctx context.Context, id int64) (*Document, error) {
	var out Document
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) CreateDocument(ctx context.Context, doc NewDocument) (*Document, error) {
	var out Document
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/documents", doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) UpdateDocument(ctx context.Context, id int64, patch DocumentPatch) (*Document, error) {
	var out Document
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/v1/documents/%d", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) DeleteDocument(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", id), nil, nil)
}

func (c *httpClient) ListContainers(ctx context.Context) ([]Container, error) {
	var out []Container
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/containers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var out domain.Settings
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) PutSettings(ctx context.Context, settings *domain.Settings) error {
	return c.doJSON(ctx, http.MethodPut, "/api/v1/settings", settings, nil)
}

func (c *httpClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
		return nil
	}

	// 5xx means the store itself is unhealthy; treat like a network outage
	// so the caller queues instead of surfacing.
	if resp.StatusCode >= 500 {
		return &TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var errPayload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(payload, &errPayload)

	return &RejectedError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    errPayload.Error,
	}
}
