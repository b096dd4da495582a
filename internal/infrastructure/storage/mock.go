package storage

import (
	"sort"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	transactions map[string]*Transaction
	entities     map[string]*Entity
	pairs        map[string]*IntercompanyPair

	// candidateOrder fixes the iteration order of FindMatchCandidates so
	// first-candidate-wins behavior is deterministic in tests
	candidateOrder []string

	// Hooks for test assertions
	MarkMatchedCalled  bool
	LastMatchedIDs     [2]string
	InsertPairsCalled  bool
	LastInsertedPairs  []*IntercompanyPair
	UpdateStatusCalled bool

	// Error injection for testing error paths
	SaveTransactionErr error
	MarkMatchedErr     error
	InsertPairsErr     error
	UpdatePairErr      error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		transactions: make(map[string]*Transaction),
		entities:     make(map[string]*Entity),
		pairs:        make(map[string]*IntercompanyPair),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Ping does nothing for mock
func (m *MockRepository) Ping() error {
	return nil
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// ================================================================
// TRANSACTIONS
// ================================================================

// SaveTransaction saves a transaction to the in-memory map
func (m *MockRepository) SaveTransaction(txn *Transaction) error {
	if m.SaveTransactionErr != nil {
		return m.SaveTransactionErr
	}
	copied := *txn
	m.transactions[txn.ID] = &copied
	m.candidateOrder = append(m.candidateOrder, txn.ID)
	return nil
}

// GetTransaction retrieves a transaction from the in-memory map
func (m *MockRepository) GetTransaction(id string) (*Transaction, error) {
	txn, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *txn
	return &copied, nil
}

// GetTransactionByExternalID retrieves a transaction by external id
func (m *MockRepository) GetTransactionByExternalID(externalID string) (*Transaction, error) {
	for _, id := range m.candidateOrder {
		if txn, ok := m.transactions[id]; ok && txn.ExternalID == externalID {
			copied := *txn
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// ListTransactions returns transactions matching the given filters
func (m *MockRepository) ListTransactions(filters TransactionFilters) ([]*Transaction, error) {
	var result []*Transaction
	for _, id := range m.candidateOrder {
		txn := m.transactions[id]
		if filters.EntityID != "" && txn.EntityID != filters.EntityID {
			continue
		}
		if filters.Provider != "" && string(txn.Provider) != filters.Provider {
			continue
		}
		if filters.Status != "" && string(txn.Status) != filters.Status {
			continue
		}
		copied := *txn
		result = append(result, &copied)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TransactionDate.After(result[j].TransactionDate)
	})

	return result, nil
}

// FindMatchCandidates returns pending transactions from other providers
// in insertion order
func (m *MockRepository) FindMatchCandidates(filter CandidateFilter) ([]*Transaction, error) {
	var result []*Transaction
	for _, id := range m.candidateOrder {
		txn := m.transactions[id]
		if txn.Provider == filter.ExcludeProvider {
			continue
		}
		if txn.Currency != filter.Currency {
			continue
		}
		if txn.Status != StatusPending {
			continue
		}
		if txn.ID == filter.ExcludeID {
			continue
		}
		copied := *txn
		result = append(result, &copied)
	}
	return result, nil
}

// ListIntercompanyEligible returns all transactions with entity, type and
// reference present, in insertion order
func (m *MockRepository) ListIntercompanyEligible() ([]*Transaction, error) {
	var result []*Transaction
	for _, id := range m.candidateOrder {
		txn := m.transactions[id]
		if !txn.IntercompanyEligible() {
			continue
		}
		copied := *txn
		result = append(result, &copied)
	}
	return result, nil
}

// UpdateTransactionStatus sets the status of one transaction
func (m *MockRepository) UpdateTransactionStatus(id string, status TransactionStatus) error {
	m.UpdateStatusCalled = true
	txn, ok := m.transactions[id]
	if !ok {
		return ErrNotFound
	}
	txn.Status = status
	txn.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkMatched sets both transactions to matched with reciprocal links.
// Mirrors the SQLite implementation's status-gated conditional updates.
func (m *MockRepository) MarkMatched(txnID, candidateID string) error {
	m.MarkMatchedCalled = true
	m.LastMatchedIDs = [2]string{txnID, candidateID}
	if m.MarkMatchedErr != nil {
		return m.MarkMatchedErr
	}

	txn, ok := m.transactions[txnID]
	if !ok || (txn.Status != StatusPending && txn.Status != StatusUnmatched) {
		return ErrConflict
	}
	candidate, ok := m.transactions[candidateID]
	if !ok || candidate.Status != StatusPending {
		return ErrConflict
	}

	now := time.Now().UTC()
	txn.Status = StatusMatched
	txn.MatchedTransactionID = candidateID
	txn.UpdatedAt = now
	candidate.Status = StatusMatched
	candidate.MatchedTransactionID = txnID
	candidate.UpdatedAt = now

	return nil
}

// ================================================================
// ENTITIES
// ================================================================

// UpsertEntity inserts or updates an entity keyed by tenant id
func (m *MockRepository) UpsertEntity(entity *Entity) (bool, error) {
	for _, existing := range m.entities {
		if existing.TenantID == entity.TenantID {
			existing.OrgName = entity.OrgName
			existing.Currency = entity.Currency
			existing.CountryCode = entity.CountryCode
			entity.ID = existing.ID
			entity.ConnectedAt = existing.ConnectedAt
			return false, nil
		}
	}
	copied := *entity
	m.entities[entity.ID] = &copied
	return true, nil
}

// GetEntity retrieves an entity by id
func (m *MockRepository) GetEntity(id string) (*Entity, error) {
	entity, ok := m.entities[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *entity
	return &copied, nil
}

// GetEntityByTenant retrieves an entity by tenant id
func (m *MockRepository) GetEntityByTenant(tenantID string) (*Entity, error) {
	for _, entity := range m.entities {
		if entity.TenantID == tenantID {
			copied := *entity
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// ListEntities returns all entities, most recently connected first
func (m *MockRepository) ListEntities() ([]*Entity, error) {
	result := make([]*Entity, 0, len(m.entities))
	for _, entity := range m.entities {
		copied := *entity
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ConnectedAt.After(result[j].ConnectedAt)
	})
	return result, nil
}

// ================================================================
// INTERCOMPANY PAIRS
// ================================================================

// PairExists reports whether a pair with this external-id combination exists
func (m *MockRepository) PairExists(sourceTxnID, targetTxnID string) (bool, error) {
	for _, pair := range m.pairs {
		if pair.SourceTransactionID == sourceTxnID && pair.TargetTransactionID == targetTxnID {
			return true, nil
		}
	}
	return false, nil
}

// InsertPairs inserts all pairs, rejecting natural-key duplicates the way
// the SQLite unique index would
func (m *MockRepository) InsertPairs(pairs []*IntercompanyPair) error {
	m.InsertPairsCalled = true
	m.LastInsertedPairs = pairs
	if m.InsertPairsErr != nil {
		return m.InsertPairsErr
	}

	for _, pair := range pairs {
		exists, _ := m.PairExists(pair.SourceTransactionID, pair.TargetTransactionID)
		if exists {
			return ErrConflict
		}
		copied := *pair
		m.pairs[pair.ID] = &copied
	}
	return nil
}

// GetPair retrieves a pair by id
func (m *MockRepository) GetPair(id string) (*IntercompanyPair, error) {
	pair, ok := m.pairs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *pair
	return &copied, nil
}

// ListPairs returns pairs matching the given filters, newest first
func (m *MockRepository) ListPairs(filters PairFilters) ([]*IntercompanyPair, error) {
	var result []*IntercompanyPair
	for _, pair := range m.pairs {
		if filters.Status != "" && string(pair.Status) != filters.Status {
			continue
		}
		copied := *pair
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// UpdatePairStatus transitions a pair's status gated on the current status
func (m *MockRepository) UpdatePairStatus(id string, from, to PairStatus, updatedAt time.Time) error {
	if m.UpdatePairErr != nil {
		return m.UpdatePairErr
	}
	pair, ok := m.pairs[id]
	if !ok || pair.Status != from {
		return ErrConflict
	}
	pair.Status = to
	pair.UpdatedAt = updatedAt
	return nil
}

// Helper methods for test setup

// AddTransaction adds a transaction directly (for test setup)
func (m *MockRepository) AddTransaction(txn *Transaction) {
	m.transactions[txn.ID] = txn
	m.candidateOrder = append(m.candidateOrder, txn.ID)
}

// AddEntity adds an entity directly (for test setup)
func (m *MockRepository) AddEntity(entity *Entity) {
	m.entities[entity.ID] = entity
}

// AddPair adds a pair directly (for test setup)
func (m *MockRepository) AddPair(pair *IntercompanyPair) {
	m.pairs[pair.ID] = pair
}

// AllPairs returns all stored pairs (for assertions)
func (m *MockRepository) AllPairs() []*IntercompanyPair {
	result := make([]*IntercompanyPair, 0, len(m.pairs))
	for _, pair := range m.pairs {
		result = append(result, pair)
	}
	return result
}
