package handlers

import (
	"net/http"
	"time"

	"github.com/quoryx/quoryx-backend/internal/api/dto"
	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
)

// HealthHandler handles liveness and readiness checks.
type HealthHandler struct {
	repo storage.Repository
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo storage.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// Live handles GET /health - basic liveness check.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// DB handles GET /health/db - readiness check verifying database connectivity.
func (h *HealthHandler) DB(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(); err != nil {
		WriteError(w, http.StatusServiceUnavailable, dto.NewAPIError("unavailable", "database unreachable"))
		return
	}
	WriteJSON(w, http.StatusOK, dto.DBHealthResponse{
		Status:   "ok",
		Database: "connected",
	})
}
