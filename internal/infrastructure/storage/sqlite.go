package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Storage provides SQLite database access for transactions, entities and
// intercompany pairs. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Ping verifies database connectivity
func (s *Storage) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// ================================================================
// TRANSACTIONS
// ================================================================

const transactionColumns = `
	id, external_id, provider, amount, currency, description,
	transaction_date, status, matched_transaction_id, entity_id,
	contact_name, account_code, transaction_type, reference,
	created_at, updated_at
	`

// SaveTransaction inserts a new transaction
func (s *Storage) SaveTransaction(txn *Transaction) error {
	query := `
	INSERT INTO transactions
	(id, external_id, provider, amount, currency, description,
	 transaction_date, status, matched_transaction_id, entity_id,
	 contact_name, account_code, transaction_type, reference,
	 created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		txn.ID,
		txn.ExternalID,
		string(txn.Provider),
		txn.Amount.StringFixed(2),
		txn.Currency,
		nullable(txn.Description),
		txn.TransactionDate,
		string(txn.Status),
		nullable(txn.MatchedTransactionID),
		nullable(txn.EntityID),
		nullable(txn.ContactName),
		nullable(txn.AccountCode),
		nullable(string(txn.TransactionType)),
		nullable(txn.Reference),
		txn.CreatedAt,
		txn.UpdatedAt,
	)

	return err
}

// GetTransaction retrieves a transaction by id
func (s *Storage) GetTransaction(id string) (*Transaction, error) {
	query := `SELECT` + transactionColumns + `FROM transactions WHERE id = ?`
	return s.scanTransactionRow(s.db.QueryRow(query, id))
}

// GetTransactionByExternalID retrieves a transaction by its provider-native id
func (s *Storage) GetTransactionByExternalID(externalID string) (*Transaction, error) {
	query := `SELECT` + transactionColumns + `FROM transactions WHERE external_id = ?`
	return s.scanTransactionRow(s.db.QueryRow(query, externalID))
}

// ListTransactions returns transactions matching the given filters
func (s *Storage) ListTransactions(filters TransactionFilters) ([]*Transaction, error) {
	query := `SELECT` + transactionColumns + `FROM transactions WHERE 1=1`
	args := []interface{}{}

	if filters.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, filters.EntityID)
	}
	if filters.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filters.Provider)
	}
	if filters.Status != "" {
		query += ` AND status = ?`
		args = append(args, filters.Status)
	}

	query += ` ORDER BY transaction_date DESC`

	return s.queryTransactions(query, args...)
}

// FindMatchCandidates returns pending transactions from other providers
// in the same currency, in store order
func (s *Storage) FindMatchCandidates(filter CandidateFilter) ([]*Transaction, error) {
	query := `SELECT` + transactionColumns + `
	FROM transactions
	WHERE provider != ? AND currency = ? AND status = ? AND id != ?`

	return s.queryTransactions(query,
		string(filter.ExcludeProvider),
		filter.Currency,
		string(StatusPending),
		filter.ExcludeID,
	)
}

// ListIntercompanyEligible returns all transactions with entity,
// transaction type and reference present
func (s *Storage) ListIntercompanyEligible() ([]*Transaction, error) {
	query := `SELECT` + transactionColumns + `
	FROM transactions
	WHERE reference IS NOT NULL
	  AND entity_id IS NOT NULL
	  AND transaction_type IS NOT NULL`

	return s.queryTransactions(query)
}

// UpdateTransactionStatus sets the reconciliation status of one transaction
func (s *Storage) UpdateTransactionStatus(id string, status TransactionStatus) error {
	result, err := s.db.Exec(`
		UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkMatched sets both transactions to matched with reciprocal links in a
// single database transaction. The initiating side may be a retried
// unmatched transaction; the candidate must still be pending. If either
// gate fails the whole unit rolls back with ErrConflict, never leaving a
// half match.
func (s *Storage) MarkMatched(txnID, candidateID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	result, err := tx.Exec(`
		UPDATE transactions
		SET status = ?, matched_transaction_id = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, string(StatusMatched), candidateID, now, txnID,
		string(StatusPending), string(StatusUnmatched))
	if err := checkAffected(tx, result, err); err != nil {
		return err
	}

	result, err = tx.Exec(`
		UPDATE transactions
		SET status = ?, matched_transaction_id = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(StatusMatched), txnID, now, candidateID, string(StatusPending))
	if err := checkAffected(tx, result, err); err != nil {
		return err
	}

	return tx.Commit()
}

// checkAffected rolls back and reports ErrConflict when the gated update
// touched no rows
func checkAffected(tx *sql.Tx, result sql.Result, err error) error {
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if affected == 0 {
		_ = tx.Rollback()
		return ErrConflict
	}
	return nil
}

func (s *Storage) queryTransactions(query string, args ...interface{}) ([]*Transaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txns []*Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func (s *Storage) scanTransactionRow(row *sql.Row) (*Transaction, error) {
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		txn                              Transaction
		amount                           string
		description, matchedID, entityID sql.NullString
		contactName, accountCode         sql.NullString
		transactionType, reference       sql.NullString
	)

	err := row.Scan(
		&txn.ID,
		&txn.ExternalID,
		&txn.Provider,
		&amount,
		&txn.Currency,
		&description,
		&txn.TransactionDate,
		&txn.Status,
		&matchedID,
		&entityID,
		&contactName,
		&accountCode,
		&transactionType,
		&reference,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}

	txn.Description = description.String
	txn.MatchedTransactionID = matchedID.String
	txn.EntityID = entityID.String
	txn.ContactName = contactName.String
	txn.AccountCode = accountCode.String
	txn.TransactionType = TransactionType(transactionType.String)
	txn.Reference = reference.String

	return &txn, nil
}

// ================================================================
// ENTITIES
// ================================================================

// UpsertEntity inserts the entity or updates the existing row for the same
// tenant id. Returns true when a new entity was created.
func (s *Storage) UpsertEntity(entity *Entity) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE entities SET org_name = ?, currency = ?, country_code = ?
		WHERE tenant_id = ?
	`, entity.OrgName, entity.Currency, nullable(entity.CountryCode), entity.TenantID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		existing, err := s.GetEntityByTenant(entity.TenantID)
		if err != nil {
			return false, err
		}
		entity.ID = existing.ID
		entity.ConnectedAt = existing.ConnectedAt
		return false, nil
	}

	_, err = s.db.Exec(`
		INSERT INTO entities (id, tenant_id, org_name, currency, country_code, connected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entity.ID, entity.TenantID, entity.OrgName, entity.Currency,
		nullable(entity.CountryCode), entity.ConnectedAt)
	if err != nil {
		return false, err
	}

	return true, nil
}

// GetEntity retrieves an entity by id
func (s *Storage) GetEntity(id string) (*Entity, error) {
	row := s.db.QueryRow(`
		SELECT id, tenant_id, org_name, currency, country_code, connected_at
		FROM entities WHERE id = ?
	`, id)
	return scanEntityRow(row)
}

// GetEntityByTenant retrieves an entity by tenant id
func (s *Storage) GetEntityByTenant(tenantID string) (*Entity, error) {
	row := s.db.QueryRow(`
		SELECT id, tenant_id, org_name, currency, country_code, connected_at
		FROM entities WHERE tenant_id = ?
	`, tenantID)
	return scanEntityRow(row)
}

// ListEntities returns all entities, most recently connected first
func (s *Storage) ListEntities() ([]*Entity, error) {
	rows, err := s.db.Query(`
		SELECT id, tenant_id, org_name, currency, country_code, connected_at
		FROM entities ORDER BY connected_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entities []*Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

func scanEntityRow(row *sql.Row) (*Entity, error) {
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func scanEntity(row rowScanner) (*Entity, error) {
	var (
		entity      Entity
		countryCode sql.NullString
	)

	err := row.Scan(
		&entity.ID,
		&entity.TenantID,
		&entity.OrgName,
		&entity.Currency,
		&countryCode,
		&entity.ConnectedAt,
	)
	if err != nil {
		return nil, err
	}

	entity.CountryCode = countryCode.String
	return &entity, nil
}

// ================================================================
// INTERCOMPANY PAIRS
// ================================================================

const pairColumns = `
	id, source_entity_id, target_entity_id, amount, currency, description,
	transaction_date, status, source_transaction_id, target_transaction_id,
	created_at, updated_at
	`

// PairExists reports whether a pair with this exact external-id combination exists
func (s *Storage) PairExists(sourceTxnID, targetTxnID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM intercompany_transactions
		WHERE source_transaction_id = ? AND target_transaction_id = ?
	`, sourceTxnID, targetTxnID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertPairs inserts all pairs in a single database transaction
func (s *Storage) InsertPairs(pairs []*IntercompanyPair) error {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	query := `
	INSERT INTO intercompany_transactions
	(id, source_entity_id, target_entity_id, amount, currency, description,
	 transaction_date, status, source_transaction_id, target_transaction_id,
	 created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, pair := range pairs {
		_, err := tx.Exec(query,
			pair.ID,
			pair.SourceEntityID,
			nullable(pair.TargetEntityID),
			pair.Amount.StringFixed(2),
			pair.Currency,
			nullable(pair.Description),
			pair.TransactionDate,
			string(pair.Status),
			pair.SourceTransactionID,
			pair.TargetTransactionID,
			pair.CreatedAt,
			pair.UpdatedAt,
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// GetPair retrieves a pair by id
func (s *Storage) GetPair(id string) (*IntercompanyPair, error) {
	row := s.db.QueryRow(`SELECT`+pairColumns+`FROM intercompany_transactions WHERE id = ?`, id)

	pair, err := scanPair(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// ListPairs returns pairs matching the given filters, newest first
func (s *Storage) ListPairs(filters PairFilters) ([]*IntercompanyPair, error) {
	query := `SELECT` + pairColumns + `FROM intercompany_transactions WHERE 1=1`
	args := []interface{}{}

	if filters.Status != "" {
		query += ` AND status = ?`
		args = append(args, filters.Status)
	}

	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pairs []*IntercompanyPair
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	return pairs, rows.Err()
}

// UpdatePairStatus transitions a pair's status with an optimistic write
// gated on the current status
func (s *Storage) UpdatePairStatus(id string, from, to PairStatus, updatedAt time.Time) error {
	result, err := s.db.Exec(`
		UPDATE intercompany_transactions
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), updatedAt, id, string(from))
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}

	return nil
}

func scanPair(row rowScanner) (*IntercompanyPair, error) {
	var (
		pair                      IntercompanyPair
		amount                    string
		targetEntity, description sql.NullString
	)

	err := row.Scan(
		&pair.ID,
		&pair.SourceEntityID,
		&targetEntity,
		&amount,
		&pair.Currency,
		&description,
		&pair.TransactionDate,
		&pair.Status,
		&pair.SourceTransactionID,
		&pair.TargetTransactionID,
		&pair.CreatedAt,
		&pair.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pair.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}

	pair.TargetEntityID = targetEntity.String
	pair.Description = description.String

	return &pair, nil
}

// nullable maps empty strings to NULL so nullable columns stay NULL
// instead of accumulating empty-string rows
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
