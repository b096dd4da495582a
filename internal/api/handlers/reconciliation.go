package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quoryx/quoryx-backend/internal/api/dto"
	"github.com/quoryx/quoryx-backend/internal/domain/intercompany"
	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
)

// ReconciliationHandler handles intercompany detection, pair listing and
// status transitions.
type ReconciliationHandler struct {
	repo      storage.Repository
	detector  *intercompany.Detector
	lifecycle *intercompany.Lifecycle
	logger    *slog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler.
func NewReconciliationHandler(repo storage.Repository, detector *intercompany.Detector, lifecycle *intercompany.Lifecycle, logger *slog.Logger) *ReconciliationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationHandler{
		repo:      repo,
		detector:  detector,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Detect handles POST /api/reconciliation/detect - run one detection pass
// over all eligible transactions.
func (h *ReconciliationHandler) Detect(w http.ResponseWriter, r *http.Request) {
	result, err := h.detector.Detect()
	if err != nil {
		h.logger.Error("intercompany detection failed", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// ListPairs handles GET /api/reconciliation/pairs with an optional
// ?status= filter.
func (h *ReconciliationHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.repo.ListPairs(storage.PairFilters{
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		h.logger.Error("failed to list pairs", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := make([]dto.PairResponse, 0, len(pairs))
	for _, pair := range pairs {
		response = append(response, h.toPairResponse(pair))
	}

	WriteJSON(w, http.StatusOK, response)
}

// UpdateStatus handles PATCH /api/reconciliation/pairs/{id}/status.
// Transitions only move forward: unmatched -> matched -> reconciled.
func (h *ReconciliationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePairStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	requested := storage.PairStatus(req.Status)
	if !requested.IsValid() {
		WriteError(w, http.StatusBadRequest,
			dto.ValidationError("status must be one of: unmatched, matched, reconciled"))
		return
	}

	pair, err := h.lifecycle.Transition(chi.URLParam(r, "id"), requested)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			WriteError(w, http.StatusNotFound, dto.NotFoundError("pair"))
		case errors.Is(err, intercompany.ErrInvalidTransition), errors.Is(err, storage.ErrConflict):
			WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		default:
			h.logger.Error("pair transition failed", "error", err)
			WriteError(w, http.StatusInternalServerError, dto.InternalError())
		}
		return
	}

	WriteJSON(w, http.StatusOK, h.toPairResponse(pair))
}

// Summary handles GET /api/reconciliation/summary - counts by status,
// globally and per entity.
func (h *ReconciliationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.repo.ListPairs(storage.PairFilters{})
	if err != nil {
		h.logger.Error("failed to list pairs", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	entities, err := h.repo.ListEntities()
	if err != nil {
		h.logger.Error("failed to list entities", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	names := make(map[string]string, len(entities))
	for _, entity := range entities {
		names[entity.ID] = entity.OrgName
	}

	response := dto.SummaryResponse{
		TotalPairs: len(pairs),
		ByEntity:   []dto.EntitySummary{},
	}

	// Each entity counts pairs where it appears as source or target
	perEntity := make(map[string]*dto.StatusCounts)
	for _, pair := range pairs {
		addStatusCount(&response.ByStatus, pair.Status)

		for _, entityID := range []string{pair.SourceEntityID, pair.TargetEntityID} {
			if entityID == "" {
				continue
			}
			counts, ok := perEntity[entityID]
			if !ok {
				counts = &dto.StatusCounts{}
				perEntity[entityID] = counts
			}
			addStatusCount(counts, pair.Status)
		}
	}

	for entityID, counts := range perEntity {
		name := names[entityID]
		if name == "" {
			name = entityID
		}
		response.ByEntity = append(response.ByEntity, dto.EntitySummary{
			EntityID:     entityID,
			EntityName:   name,
			Total:        counts.Unmatched + counts.Matched + counts.Reconciled,
			StatusCounts: *counts,
		})
	}

	sort.Slice(response.ByEntity, func(i, j int) bool {
		return response.ByEntity[i].EntityName < response.ByEntity[j].EntityName
	})

	WriteJSON(w, http.StatusOK, response)
}

func addStatusCount(counts *dto.StatusCounts, status storage.PairStatus) {
	switch status {
	case storage.PairStatusUnmatched:
		counts.Unmatched++
	case storage.PairStatusMatched:
		counts.Matched++
	case storage.PairStatusReconciled:
		counts.Reconciled++
	}
}

// toPairResponse serializes one pair enriched with entity names and the
// source transaction's reference. Enrichment lookups are best effort:
// a missing entity or transaction leaves the field empty.
func (h *ReconciliationHandler) toPairResponse(pair *storage.IntercompanyPair) dto.PairResponse {
	response := dto.PairResponse{
		ID:                  pair.ID,
		Status:              string(pair.Status),
		SourceEntityID:      pair.SourceEntityID,
		TargetEntityID:      pair.TargetEntityID,
		Amount:              pair.Amount.StringFixed(2),
		Currency:            pair.Currency,
		Description:         pair.Description,
		TransactionDate:     pair.TransactionDate.Format(time.RFC3339),
		SourceTransactionID: pair.SourceTransactionID,
		TargetTransactionID: pair.TargetTransactionID,
		CreatedAt:           pair.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           pair.UpdatedAt.Format(time.RFC3339),
	}

	if entity, err := h.repo.GetEntity(pair.SourceEntityID); err == nil {
		response.SourceEntityName = entity.OrgName
	}
	if pair.TargetEntityID != "" {
		if entity, err := h.repo.GetEntity(pair.TargetEntityID); err == nil {
			response.TargetEntityName = entity.OrgName
		}
	}
	if txn, err := h.repo.GetTransactionByExternalID(pair.SourceTransactionID); err == nil {
		response.Reference = txn.Reference
	}

	return response
}
