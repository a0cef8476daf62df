package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rghv234/wolffia/internal/domain"
	"github.com/rghv234/wolffia/internal/service"
	"github.com/rghv234/wolffia/pkg/hash"
	"github.com/rghv234/wolffia/pkg/response"
)

type ConflictHandler struct {
	conflicts *service.ConflictService
	validate  *validator.Validate
}

func NewConflictHandler(conflicts *service.ConflictService) *ConflictHandler {
	return &ConflictHandler{
		conflicts: conflicts,
		validate:  validator.New(),
	}
}

// conflictView summarizes a pending conflict without exposing ciphertext;
// bodies are reduced to short fingerprints for display and diffing hints.
type conflictView struct {
	DocumentID     domain.Identifier `json:"document_id"`
	Title          string            `json:"title"`
	LocalHash      string            `json:"local_hash"`
	RemoteHash     string            `json:"remote_hash"`
	LocalModified  time.Time         `json:"local_modified"`
	RemoteModified time.Time         `json:"remote_modified"`
	DetectedAt     time.Time         `json:"detected_at"`
}

func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.conflicts.List()
	if err != nil {
		response.InternalError(w, "Failed to list conflicts")
		return
	}

	views := make([]conflictView, 0, len(records))
	for _, record := range records {
		views = append(views, conflictView{
			DocumentID:     record.DocumentID,
			Title:          record.Title,
			LocalHash:      hash.Fingerprint(record.LocalBody),
			RemoteHash:     hash.Fingerprint(record.RemoteBody),
			LocalModified:  record.LocalModified,
			RemoteModified: record.RemoteModified,
			DetectedAt:     record.DetectedAt,
		})
	}

	response.Success(w, views)
}

func (h *ConflictHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentifier(w, r)
	if !ok {
		return
	}

	var req domain.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.conflicts.Resolve(r.Context(), id, req.Choice); err != nil {
		if errors.Is(err, service.ErrNoConflict) {
			response.NotFound(w, "No pending conflict for document")
			return
		}
		if errors.Is(err, service.ErrInvalidChoice) {
			response.BadRequest(w, "Invalid resolution choice")
			return
		}
		writeServiceError(w, err, "Failed to resolve conflict")
		return
	}

	response.Success(w, map[string]string{"message": "Conflict resolved"})
}
