package handler

import (
	"net/http"

	"github.com/rghv234/wolffia/internal/repository"
	"github.com/rghv234/wolffia/pkg/response"
)

// ContainerHandler serves the folder tree from the local replica. Containers
// are remote-managed; the engine only mirrors them.
type ContainerHandler struct {
	containers repository.ContainerStore
}

func NewContainerHandler(containers repository.ContainerStore) *ContainerHandler {
	return &ContainerHandler{containers: containers}
}

func (h *ContainerHandler) List(w http.ResponseWriter, r *http.Request) {
	containers, err := h.containers.List()
	if err != nil {
		response.InternalError(w, "Failed to list containers")
		return
	}
	response.Success(w, containers)
}
