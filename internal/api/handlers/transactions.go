package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quoryx/quoryx-backend/internal/api/dto"
	"github.com/quoryx/quoryx-backend/internal/domain/matcher"
	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
)

// TransactionsHandler handles transaction ingestion and reconciliation requests.
type TransactionsHandler struct {
	repo    storage.Repository
	matcher *matcher.Matcher
	logger  *slog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo storage.Repository, m *matcher.Matcher, logger *slog.Logger) *TransactionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionsHandler{
		repo:    repo,
		matcher: m,
		logger:  logger,
	}
}

// Create handles POST /api/transactions - ingest a transaction and attempt
// immediate reconciliation.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	txn, apiErr := transactionFromRequest(&req)
	if apiErr != nil {
		WriteError(w, http.StatusBadRequest, *apiErr)
		return
	}

	if err := h.repo.SaveTransaction(txn); err != nil {
		h.logger.Error("failed to save transaction", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	if _, err := h.matcher.Reconcile(txn); err != nil {
		h.logger.Error("reconciliation failed after ingest",
			"transaction_id", txn.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	WriteJSON(w, http.StatusCreated, toTransactionResponse(txn))
}

// List handles GET /api/transactions with optional entity_id, status and
// provider filters.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.TransactionFilters{
		EntityID: r.URL.Query().Get("entity_id"),
		Status:   r.URL.Query().Get("status"),
		Provider: r.URL.Query().Get("provider"),
	}

	txns, err := h.repo.ListTransactions(filters)
	if err != nil {
		h.logger.Error("failed to list transactions", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := make([]dto.TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		response = append(response, toTransactionResponse(txn))
	}

	WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	txn, err := h.repo.GetTransaction(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, dto.NotFoundError("transaction"))
			return
		}
		h.logger.Error("failed to get transaction", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	WriteJSON(w, http.StatusOK, toTransactionResponse(txn))
}

// Reconcile handles POST /api/transactions/{id}/reconcile - manually trigger
// reconciliation. Already-matched transactions are rejected before any
// store mutation.
func (h *TransactionsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	txn, err := h.repo.GetTransaction(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, dto.NotFoundError("transaction"))
			return
		}
		h.logger.Error("failed to get transaction", "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	if txn.Status == storage.StatusMatched {
		WriteError(w, http.StatusConflict, dto.ConflictError("transaction already matched"))
		return
	}

	if _, err := h.matcher.Reconcile(txn); err != nil {
		if errors.Is(err, matcher.ErrAlreadyMatched) {
			WriteError(w, http.StatusConflict, dto.ConflictError("transaction already matched"))
			return
		}
		h.logger.Error("reconciliation failed", "transaction_id", txn.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	WriteJSON(w, http.StatusOK, toTransactionResponse(txn))
}

// transactionFromRequest validates the request and builds a pending transaction.
func transactionFromRequest(req *dto.CreateTransactionRequest) (*storage.Transaction, *dto.APIError) {
	if req.ExternalID == "" {
		err := dto.ValidationError("external_id is required")
		return nil, &err
	}

	provider := storage.Provider(req.Provider)
	if !provider.IsValid() {
		err := dto.ValidationError("provider must be one of: xero, quickbooks")
		return nil, &err
	}

	if req.Currency == "" || len(req.Currency) != 3 {
		err := dto.ValidationError("currency must be a 3-letter code")
		return nil, &err
	}

	txnType := storage.TransactionType(req.TransactionType)
	if req.TransactionType != "" && !txnType.IsValid() {
		err := dto.ValidationError("transaction_type must be one of: SPEND, RECEIVE")
		return nil, &err
	}

	date, err := time.Parse(time.RFC3339, req.TransactionDate)
	if err != nil {
		apiErr := dto.ValidationError("transaction_date must be RFC3339")
		return nil, &apiErr
	}

	now := time.Now().UTC()
	return &storage.Transaction{
		ID:              uuid.NewString(),
		EntityID:        req.EntityID,
		Provider:        provider,
		ExternalID:      req.ExternalID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Description:     req.Description,
		ContactName:     req.ContactName,
		AccountCode:     req.AccountCode,
		TransactionDate: date,
		TransactionType: txnType,
		Reference:       req.Reference,
		Status:          storage.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// toTransactionResponse converts a stored transaction to an API response.
func toTransactionResponse(txn *storage.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:                   txn.ID,
		EntityID:             txn.EntityID,
		Provider:             string(txn.Provider),
		ExternalID:           txn.ExternalID,
		Amount:               txn.Amount.StringFixed(2),
		Currency:             txn.Currency,
		Description:          txn.Description,
		ContactName:          txn.ContactName,
		AccountCode:          txn.AccountCode,
		TransactionDate:      txn.TransactionDate.Format(time.RFC3339),
		TransactionType:      string(txn.TransactionType),
		Reference:            txn.Reference,
		Status:               string(txn.Status),
		MatchedTransactionID: txn.MatchedTransactionID,
		CreatedAt:            txn.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            txn.UpdatedAt.Format(time.RFC3339),
	}
}
