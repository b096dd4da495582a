package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_transactions_table",
		Up:      migration001CreateTransactionsTable,
	},
	{
		Version: 2,
		Name:    "add_entities_and_intercompany_tables",
		Up:      migration002AddEntitiesAndIntercompanyTables,
	},
	{
		Version: 3,
		Name:    "add_enriched_transaction_columns",
		Up:      migration003AddEnrichedTransactionColumns,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001CreateTransactionsTable creates the transactions table.
// Amounts are stored as TEXT to keep exact decimal values.
func migration001CreateTransactionsTable(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			external_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			description TEXT,
			transaction_date TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			matched_transaction_id TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(provider, external_id),
			FOREIGN KEY (matched_transaction_id) REFERENCES transactions(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_provider
		 ON transactions(provider)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_status
		 ON transactions(status)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_currency
		 ON transactions(currency)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddEntitiesAndIntercompanyTables creates the entities and
// intercompany_transactions tables. The unique index on the external-id
// pair enforces detection idempotency at the store level.
func migration002AddEntitiesAndIntercompanyTables(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL UNIQUE,
			org_name TEXT NOT NULL,
			currency TEXT NOT NULL,
			country_code TEXT,
			connected_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS intercompany_transactions (
			id TEXT PRIMARY KEY,
			source_entity_id TEXT NOT NULL,
			target_entity_id TEXT,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			description TEXT,
			transaction_date TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'unmatched',
			source_transaction_id TEXT NOT NULL,
			target_transaction_id TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (source_entity_id) REFERENCES entities(id),
			FOREIGN KEY (target_entity_id) REFERENCES entities(id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_intercompany_natural_key
		 ON intercompany_transactions(source_transaction_id, target_transaction_id)`,

		`CREATE INDEX IF NOT EXISTS idx_intercompany_status
		 ON intercompany_transactions(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create intercompany tables: %w", err)
		}
	}

	return nil
}

// migration003AddEnrichedTransactionColumns adds the columns intercompany
// detection depends on: owning entity, contact, account code, direction
// and the free-text reference correlation key.
func migration003AddEnrichedTransactionColumns(db *sql.Tx) error {
	queries := []string{
		`ALTER TABLE transactions ADD COLUMN entity_id TEXT REFERENCES entities(id)`,
		`ALTER TABLE transactions ADD COLUMN contact_name TEXT`,
		`ALTER TABLE transactions ADD COLUMN account_code TEXT`,
		`ALTER TABLE transactions ADD COLUMN transaction_type TEXT`,
		`ALTER TABLE transactions ADD COLUMN reference TEXT`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_reference
		 ON transactions(reference)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_entity_id
		 ON transactions(entity_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to add enriched columns: %w", err)
		}
	}

	return nil
}
