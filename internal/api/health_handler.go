package api

import (
	"net/http"

	"github.com/songforge/agent-api/internal/api/shared"
	"github.com/songforge/agent-api/internal/queue"
	"github.com/songforge/agent-api/internal/service"
)

// healthResponse is the liveness probe payload.
type healthResponse struct {
	Status string      `json:"status"`
	Queue  queue.Stats `json:"queue"`
}

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	taskService service.TaskService
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(taskService service.TaskService) *HealthHandler {
	return &HealthHandler{taskService: taskService}
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, healthResponse{
		Status: "ok",
		Queue:  h.taskService.QueueStatus(),
	})
}
