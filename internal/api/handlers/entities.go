package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quoryx/quoryx-backend/internal/api/dto"
	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
)

// EntitiesHandler handles connected organisation requests.
type EntitiesHandler struct {
	repo   storage.Repository
	logger *slog.Logger
}

// NewEntitiesHandler creates a new entities handler.
func NewEntitiesHandler(repo storage.Repository, logger *slog.Logger) *EntitiesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntitiesHandler{repo: repo, logger: logger}
}

// List handles GET /api/entities - all connected organisations, newest first.
func (h *EntitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	entities, err := h.repo.ListEntities()
	if err != nil {
		h.logger.Error("failed to list entities", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := make([]dto.EntityResponse, 0, len(entities))
	for _, entity := range entities {
		response = append(response, toEntityResponse(entity))
	}

	WriteJSON(w, http.StatusOK, response)
}

// Upsert handles POST /api/entities - register a connected organisation or
// refresh the one already stored for the same tenant id.
func (h *EntitiesHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req dto.UpsertEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	if req.TenantID == "" || req.OrgName == "" || req.Currency == "" {
		WriteError(w, http.StatusBadRequest,
			dto.ValidationError("tenant_id, org_name and currency are required"))
		return
	}

	entity := &storage.Entity{
		ID:          uuid.NewString(),
		TenantID:    req.TenantID,
		OrgName:     req.OrgName,
		Currency:    req.Currency,
		CountryCode: req.CountryCode,
		ConnectedAt: time.Now().UTC(),
	}

	created, err := h.repo.UpsertEntity(entity)
	if err != nil {
		h.logger.Error("failed to upsert entity", "tenant_id", req.TenantID, "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	action := "updated"
	status := http.StatusOK
	if created {
		action = "created"
		status = http.StatusCreated
	}

	h.logger.Info("entity "+action, "tenant_id", entity.TenantID, "org_name", entity.OrgName)
	WriteJSON(w, status, dto.UpsertEntityResponse{
		Action: action,
		Entity: toEntityResponse(entity),
	})
}

// toEntityResponse converts a stored entity to an API response.
func toEntityResponse(entity *storage.Entity) dto.EntityResponse {
	return dto.EntityResponse{
		ID:          entity.ID,
		TenantID:    entity.TenantID,
		OrgName:     entity.OrgName,
		Currency:    entity.Currency,
		CountryCode: entity.CountryCode,
		ConnectedAt: entity.ConnectedAt.Format(time.RFC3339),
	}
}
