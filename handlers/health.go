package handlers

import (
	"net/http"

	"github.com/postflow/aicore/utils"
	"go.uber.org/zap"
)

// HealthHandler serves liveness and readiness endpoints
type HealthHandler struct {
	service GenerationService
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(service GenerationService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleHealthz handles GET /healthz
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// HandleReadyz handles GET /readyz. The service is ready once at least one
// provider adapter is configured.
func (h *HealthHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	statuses := h.service.Providers()

	response := map[string]interface{}{
		"status":    "ready",
		"providers": len(statuses),
	}
	status := http.StatusOK
	if len(statuses) == 0 {
		response["status"] = "not_ready"
		status = http.StatusServiceUnavailable
	}

	_ = utils.WriteJSON(w, status, response)
}
