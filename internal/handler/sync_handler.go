package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/rghv234/wolffia/internal/domain"
	"github.com/rghv234/wolffia/internal/repository"
	"github.com/rghv234/wolffia/internal/service"
	"github.com/rghv234/wolffia/pkg/response"
)

// SyncHandler exposes the reconciliation driver to the UI: status, manual
// reload, the connectivity signal, view state and settings.
type SyncHandler struct {
	sync     *service.SyncService
	settings repository.SettingsStore
}

func NewSyncHandler(sync *service.SyncService, settings repository.SettingsStore) *SyncHandler {
	return &SyncHandler{sync: sync, settings: settings}
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.sync.Status())
}

func (h *SyncHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.LoadAll(r.Context()); err != nil {
		writeServiceError(w, err, "Failed to reload")
		return
	}
	response.Success(w, h.sync.Status())
}

// Online is the external "connectivity restored" signal. Reconciliation
// runs in the background; the UI polls Status for progress.
func (h *SyncHandler) Online(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := h.sync.Online(ctx); err != nil {
			log.Printf("[Sync] reconciliation after connectivity signal failed: %v", err)
		}
	}()

	response.Accepted(w, map[string]string{"message": "Reconciliation started"})
}

func (h *SyncHandler) GetView(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.sync.View())
}

func (h *SyncHandler) PutView(w http.ResponseWriter, r *http.Request) {
	var view service.ViewState
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	h.sync.SetView(view)
	response.Success(w, map[string]string{"message": "View state saved"})
}

func (h *SyncHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Success(w, &domain.Settings{})
			return
		}
		response.InternalError(w, "Failed to load settings")
		return
	}
	response.Success(w, settings)
}

// PutSettings persists locally and pushes remotely on a low-priority
// background pass; a failed push never fails the save.
func (h *SyncHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}
	settings.UpdatedAt = time.Now()

	if err := h.settings.Put(&settings); err != nil {
		response.InternalError(w, "Failed to save settings")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.sync.SyncSettings(ctx); err != nil {
			log.Printf("[Sync] settings push failed: %v", err)
		}
	}()

	response.Success(w, &settings)
}
