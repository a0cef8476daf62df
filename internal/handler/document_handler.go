package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/rghv234/wolffia/internal/crypto"
	"github.com/rghv234/wolffia/internal/domain"
	"github.com/rghv234/wolffia/internal/remote"
	"github.com/rghv234/wolffia/internal/repository"
	"github.com/rghv234/wolffia/internal/service"
	"github.com/rghv234/wolffia/pkg/response"
)

// DocumentHandler is the loopback API for the editor webview. Plaintext
// crosses this boundary only; everything past the handler carries opaque
// ciphertext blobs.
type DocumentHandler struct {
	documents *service.DocumentService
	crypto    crypto.Provider
	validate  *validator.Validate
}

func NewDocumentHandler(documents *service.DocumentService, provider crypto.Provider) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		crypto:    provider,
		validate:  validator.New(),
	}
}

type createDocumentPayload struct {
	Title       string             `json:"title" validate:"required"`
	Content     string             `json:"content"`
	ContainerID *domain.Identifier `json:"container_id"`
	Transient   bool               `json:"transient"`
}

type updateDocumentPayload struct {
	Title       *string            `json:"title"`
	Content     *string            `json:"content"`
	ContainerID *domain.Identifier `json:"container_id"`
}

// documentView is the decrypted form served to the UI. Corrupt is set when
// the stored blob cannot be opened; the rest of the document still loads.
type documentView struct {
	ID           domain.Identifier  `json:"id"`
	ContainerID  *domain.Identifier `json:"container_id"`
	Title        string             `json:"title"`
	Content      string             `json:"content"`
	LastModified time.Time          `json:"last_modified"`
	SyncState    domain.SyncState   `json:"sync_state"`
	Corrupt      bool               `json:"corrupt,omitempty"`
}

func (h *DocumentHandler) view(doc *domain.Document) documentView {
	v := documentView{
		ID:           doc.ID,
		ContainerID:  doc.ContainerID,
		Title:        doc.Title,
		LastModified: doc.LastModified,
		SyncState:    doc.SyncState,
	}

	if len(doc.Body) == 0 {
		return v
	}

	plaintext, err := h.crypto.Decrypt(doc.Body)
	if err != nil {
		// Corruption is isolated to this document; the rest still loads.
		v.Corrupt = true
		return v
	}
	v.Content = string(plaintext)
	return v
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createDocumentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(payload); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	body, err := h.crypto.Encrypt([]byte(payload.Content))
	if err != nil {
		response.InternalError(w, "Failed to encrypt document")
		return
	}

	req := &domain.CreateDocumentRequest{
		Title:       payload.Title,
		Body:        body,
		ContainerID: payload.ContainerID,
	}

	var doc *domain.Document
	if payload.Transient {
		doc, err = h.documents.CreateTransient(req)
	} else {
		doc, err = h.documents.Create(r.Context(), req)
	}
	if err != nil {
		writeServiceError(w, err, "Failed to create document")
		return
	}

	response.Created(w, h.view(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.List()
	if err != nil {
		response.InternalError(w, "Failed to list documents")
		return
	}

	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, h.view(doc))
	}

	response.Success(w, views)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentifier(w, r)
	if !ok {
		return
	}

	doc, err := h.documents.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "Document not found")
			return
		}
		response.InternalError(w, "Failed to get document")
		return
	}

	response.Success(w, h.view(doc))
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentifier(w, r)
	if !ok {
		return
	}

	var payload updateDocumentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	req := &domain.UpdateDocumentRequest{
		Title:       payload.Title,
		ContainerID: payload.ContainerID,
	}
	if payload.Content != nil {
		body, err := h.crypto.Encrypt([]byte(*payload.Content))
		if err != nil {
			response.InternalError(w, "Failed to encrypt document")
			return
		}
		req.Body = &body
	}

	doc, err := h.documents.Update(id, req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "Document not found")
			return
		}
		writeServiceError(w, err, "Failed to update document")
		return
	}

	response.Success(w, h.view(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentifier(w, r)
	if !ok {
		return
	}

	if err := h.documents.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "Document not found")
			return
		}
		writeServiceError(w, err, "Failed to delete document")
		return
	}

	response.Success(w, map[string]string{"message": "Document deleted"})
}

// Promote turns a transient scratch document into a synced one.
func (h *DocumentHandler) Promote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentifier(w, r)
	if !ok {
		return
	}

	doc, err := h.documents.Promote(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotPromotable) {
			response.BadRequest(w, "Document is not promotable")
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			response.NotFound(w, "Document not found")
			return
		}
		writeServiceError(w, err, "Failed to promote document")
		return
	}

	response.Success(w, h.view(doc))
}

func pathIdentifier(w http.ResponseWriter, r *http.Request) (domain.Identifier, bool) {
	raw := mux.Vars(r)["id"]
	if raw == "" {
		response.BadRequest(w, "Document ID is required")
		return domain.Identifier{}, false
	}
	id, err := domain.ParseIdentifier(raw)
	if err != nil {
		response.BadRequest(w, "Malformed document ID")
		return domain.Identifier{}, false
	}
	return id, true
}

// writeServiceError maps remote rejections onto their original status so
// the UI can distinguish not-found from forbidden, and hides everything
// else behind a generic message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var rejected *remote.RejectedError
	if errors.As(err, &rejected) {
		response.Error(w, rejected.StatusCode, rejected.Message)
		return
	}
	response.InternalError(w, fallback)
}
