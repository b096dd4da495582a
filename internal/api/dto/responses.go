package dto

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// DBHealthResponse is returned by the database readiness endpoint.
type DBHealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID                   string `json:"id"`
	EntityID             string `json:"entity_id,omitempty"`
	Provider             string `json:"provider"`
	ExternalID           string `json:"external_id"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	Description          string `json:"description,omitempty"`
	ContactName          string `json:"contact_name,omitempty"`
	AccountCode          string `json:"account_code,omitempty"`
	TransactionDate      string `json:"transaction_date"`
	TransactionType      string `json:"transaction_type,omitempty"`
	Reference            string `json:"reference,omitempty"`
	Status               string `json:"status"`
	MatchedTransactionID string `json:"matched_transaction_id,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

// EntityResponse represents a connected organisation in API responses.
type EntityResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	OrgName     string `json:"org_name"`
	Currency    string `json:"currency"`
	CountryCode string `json:"country_code,omitempty"`
	ConnectedAt string `json:"connected_at"`
}

// UpsertEntityResponse reports the upsert outcome.
type UpsertEntityResponse struct {
	Action string         `json:"action"` // "created" or "updated"
	Entity EntityResponse `json:"entity"`
}

// PairResponse represents one intercompany pair enriched with entity
// names and the source transaction's reference.
type PairResponse struct {
	ID                  string `json:"id"`
	Status              string `json:"status"`
	Reference           string `json:"reference,omitempty"`
	SourceEntityID      string `json:"source_entity_id"`
	SourceEntityName    string `json:"source_entity_name,omitempty"`
	TargetEntityID      string `json:"target_entity_id,omitempty"`
	TargetEntityName    string `json:"target_entity_name,omitempty"`
	Amount              string `json:"amount"`
	Currency            string `json:"currency"`
	Description         string `json:"description,omitempty"`
	TransactionDate     string `json:"transaction_date"`
	SourceTransactionID string `json:"source_transaction_id"`
	TargetTransactionID string `json:"target_transaction_id"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// StatusCounts breaks pair counts down by lifecycle status.
type StatusCounts struct {
	Unmatched  int `json:"unmatched"`
	Matched    int `json:"matched"`
	Reconciled int `json:"reconciled"`
}

// EntitySummary is the per-entity reconciliation breakdown. An entity is
// counted for every pair where it appears as source or target.
type EntitySummary struct {
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Total      int    `json:"total"`
	StatusCounts
}

// SummaryResponse aggregates reconciliation counts globally and per entity.
type SummaryResponse struct {
	TotalPairs int             `json:"total_pairs"`
	ByStatus   StatusCounts    `json:"by_status"`
	ByEntity   []EntitySummary `json:"by_entity"`
}
