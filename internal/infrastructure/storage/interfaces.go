package storage

import "time"

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	TransactionRepository
	EntityRepository
	IntercompanyRepository
	Ping() error
	Close() error
}

// TransactionRepository handles transaction records
type TransactionRepository interface {
	// SaveTransaction inserts a new transaction
	SaveTransaction(txn *Transaction) error

	// GetTransaction retrieves a transaction by id.
	// Returns ErrNotFound when no such transaction exists.
	GetTransaction(id string) (*Transaction, error)

	// GetTransactionByExternalID retrieves a transaction by its
	// provider-native identifier. Returns ErrNotFound when missing.
	GetTransactionByExternalID(externalID string) (*Transaction, error)

	// ListTransactions returns transactions matching the given filters,
	// newest transaction date first
	ListTransactions(filters TransactionFilters) ([]*Transaction, error)

	// FindMatchCandidates returns pending transactions from other providers
	// in the same currency, in store order
	FindMatchCandidates(filter CandidateFilter) ([]*Transaction, error)

	// ListIntercompanyEligible returns all transactions with entity,
	// transaction type and reference present
	ListIntercompanyEligible() ([]*Transaction, error)

	// UpdateTransactionStatus sets the reconciliation status of one transaction
	UpdateTransactionStatus(id string, status TransactionStatus) error

	// MarkMatched sets both transactions to matched with reciprocal links in
	// a single atomic unit. The initiating transaction may be pending or a
	// retried unmatched one; the candidate must still be pending. If either
	// gate fails, nothing is written and ErrConflict is returned.
	MarkMatched(txnID, candidateID string) error
}

// TransactionFilters defines filters for listing transactions
type TransactionFilters struct {
	EntityID string // Filter by owning entity (empty = all)
	Provider string // Filter by provider (empty = all)
	Status   string // Filter by reconciliation status (empty = all)
}

// CandidateFilter defines the candidate query for pairwise matching
type CandidateFilter struct {
	ExcludeProvider Provider // Candidates must come from a different provider
	Currency        string   // Candidates must share this currency
	ExcludeID       string   // The transaction being matched
}

// EntityRepository handles connected accounting organisations
type EntityRepository interface {
	// UpsertEntity inserts the entity or, when one already exists for the
	// same tenant id, updates it in place. Returns true when created.
	UpsertEntity(entity *Entity) (bool, error)

	// GetEntity retrieves an entity by id. Returns ErrNotFound when missing.
	GetEntity(id string) (*Entity, error)

	// GetEntityByTenant retrieves an entity by tenant id.
	// Returns ErrNotFound when missing.
	GetEntityByTenant(tenantID string) (*Entity, error)

	// ListEntities returns all entities, most recently connected first
	ListEntities() ([]*Entity, error)
}

// IntercompanyRepository handles detected intercompany pairs
type IntercompanyRepository interface {
	// PairExists reports whether a pair with this exact
	// (source external id, target external id) combination exists
	PairExists(sourceTxnID, targetTxnID string) (bool, error)

	// InsertPairs inserts all pairs in a single transaction.
	// The unique index on the external-id pair makes concurrent
	// detector runs fail closed instead of duplicating.
	InsertPairs(pairs []*IntercompanyPair) error

	// GetPair retrieves a pair by id. Returns ErrNotFound when missing.
	GetPair(id string) (*IntercompanyPair, error)

	// ListPairs returns pairs matching the given filters, newest first
	ListPairs(filters PairFilters) ([]*IntercompanyPair, error)

	// UpdatePairStatus transitions a pair's status with an optimistic
	// write gated on the current status. Returns ErrConflict when the
	// pair no longer has the expected status.
	UpdatePairStatus(id string, from, to PairStatus, updatedAt time.Time) error
}

// PairFilters defines filters for listing intercompany pairs
type PairFilters struct {
	Status string // Filter by pair status (empty = all)
}
