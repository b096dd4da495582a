package dto

import "github.com/shopspring/decimal"

// CreateTransactionRequest is the payload for ingesting one transaction.
// Amount accepts a JSON number or string and keeps exact decimal precision.
type CreateTransactionRequest struct {
	ExternalID      string          `json:"external_id"`
	Provider        string          `json:"provider"`
	EntityID        string          `json:"entity_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description,omitempty"`
	ContactName     string          `json:"contact_name,omitempty"`
	AccountCode     string          `json:"account_code,omitempty"`
	TransactionDate string          `json:"transaction_date"`
	TransactionType string          `json:"transaction_type,omitempty"`
	Reference       string          `json:"reference,omitempty"`
}

// UpsertEntityRequest registers or refreshes a connected organisation.
type UpsertEntityRequest struct {
	TenantID    string `json:"tenant_id"`
	OrgName     string `json:"org_name"`
	Currency    string `json:"currency"`
	CountryCode string `json:"country_code,omitempty"`
}

// UpdatePairStatusRequest asks for one intercompany pair status transition.
type UpdatePairStatusRequest struct {
	Status string `json:"status"`
}
