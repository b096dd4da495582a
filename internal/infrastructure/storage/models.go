package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies the accounting system a transaction was ingested from.
type Provider string

const (
	ProviderXero       Provider = "xero"
	ProviderQuickBooks Provider = "quickbooks"
)

// IsValid checks if the provider is one of the supported systems
func (p Provider) IsValid() bool {
	return p == ProviderXero || p == ProviderQuickBooks
}

// TransactionType classifies the direction of a transaction.
type TransactionType string

const (
	TransactionTypeSpend   TransactionType = "SPEND"
	TransactionTypeReceive TransactionType = "RECEIVE"
)

// IsValid checks if the transaction type is a known classification
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeSpend || t == TransactionTypeReceive
}

// TransactionStatus is the reconciliation status of a single transaction.
// Unlike PairStatus these states carry no ordering.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusMatched   TransactionStatus = "matched"
	StatusUnmatched TransactionStatus = "unmatched"
	StatusDisputed  TransactionStatus = "disputed"
)

// IsValid checks if the status is a known reconciliation status
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusMatched, StatusUnmatched, StatusDisputed:
		return true
	}
	return false
}

// PairStatus is the lifecycle status of an intercompany pair.
// States are strictly ordered: unmatched < matched < reconciled.
type PairStatus string

const (
	PairStatusUnmatched  PairStatus = "unmatched"
	PairStatusMatched    PairStatus = "matched"
	PairStatusReconciled PairStatus = "reconciled"
)

// IsValid checks if the status is a known pair status
func (s PairStatus) IsValid() bool {
	switch s {
	case PairStatusUnmatched, PairStatusMatched, PairStatusReconciled:
		return true
	}
	return false
}

// Transaction is one financial movement ingested from a provider.
// EntityID, TransactionType, Reference and MatchedTransactionID are
// empty when the corresponding column is NULL.
type Transaction struct {
	ID                   string            `json:"id"`
	EntityID             string            `json:"entity_id,omitempty"`
	Provider             Provider          `json:"provider"`
	ExternalID           string            `json:"external_id"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             string            `json:"currency"`
	Description          string            `json:"description,omitempty"`
	ContactName          string            `json:"contact_name,omitempty"`
	AccountCode          string            `json:"account_code,omitempty"`
	TransactionDate      time.Time         `json:"transaction_date"`
	TransactionType      TransactionType   `json:"transaction_type,omitempty"`
	Reference            string            `json:"reference,omitempty"`
	Status               TransactionStatus `json:"status"`
	MatchedTransactionID string            `json:"matched_transaction_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// IntercompanyEligible reports whether the transaction can participate in
// intercompany detection: entity, type and reference must all be present.
func (t *Transaction) IntercompanyEligible() bool {
	return t.EntityID != "" && t.TransactionType != "" && t.Reference != ""
}

// Entity is one connected accounting organisation/tenant.
type Entity struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	OrgName     string    `json:"org_name"`
	Currency    string    `json:"currency"`
	CountryCode string    `json:"country_code,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// IntercompanyPair is one detected outgoing/incoming correspondence
// between two entities. SourceTransactionID and TargetTransactionID hold
// the provider-native external ids of the underlying transactions and
// together form the natural key for idempotent detection.
type IntercompanyPair struct {
	ID                  string          `json:"id"`
	SourceEntityID      string          `json:"source_entity_id"`
	TargetEntityID      string          `json:"target_entity_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	Description         string          `json:"description,omitempty"`
	TransactionDate     time.Time       `json:"transaction_date"`
	Status              PairStatus      `json:"status"`
	SourceTransactionID string          `json:"source_transaction_id"`
	TargetTransactionID string          `json:"target_transaction_id"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
