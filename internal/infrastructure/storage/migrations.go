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
		Name:    "bank_movements_and_receivables",
		Up:      migration001MovementsAndReceivables,
	},
	{
		Version: 2,
		Name:    "reconciliation_records",
		Up:      migration002ReconciliationRecords,
	},
	{
		Version: 3,
		Name:    "import_runs",
		Up:      migration003ImportRuns,
	},
	{
		Version: 4,
		Name:    "movement_and_record_indexes",
		Up:      migration004Indexes,
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
			continue
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

func migration001MovementsAndReceivables(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bank_movements (
			external_id TEXT PRIMARY KEY,
			account_number TEXT NOT NULL DEFAULT '',
			transaction_date TIMESTAMP NOT NULL,
			value_date TIMESTAMP,
			amount REAL NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL DEFAULT '',
			transaction_type TEXT NOT NULL DEFAULT '',
			counterpart TEXT NOT NULL DEFAULT '',
			reconciled INTEGER NOT NULL DEFAULT 0,
			reconciliation_id TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS open_receivables (
			id TEXT PRIMARY KEY,
			customer_code TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			due_date TIMESTAMP NOT NULL,
			amount REAL NOT NULL,
			invoice_number TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			paid INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func migration002ReconciliationRecords(tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS reconciliation_records (
		id TEXT PRIMARY KEY,
		movement_external_id TEXT NOT NULL,
		movement_date TIMESTAMP NOT NULL,
		movement_amount REAL NOT NULL,
		movement_description TEXT NOT NULL DEFAULT '',
		movement_reference TEXT NOT NULL DEFAULT '',
		receivable_id TEXT NOT NULL,
		customer_code TEXT NOT NULL DEFAULT '',
		invoice_number TEXT NOT NULL DEFAULT '',
		receivable_amount REAL NOT NULL,
		match_score REAL NOT NULL,
		match_type TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TIMESTAMP
	)`

	_, err := tx.Exec(query)
	return err
}

func migration003ImportRuns(tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		total_movements INTEGER NOT NULL DEFAULT 0,
		matched_count INTEGER NOT NULL DEFAULT 0,
		unmatched_count INTEGER NOT NULL DEFAULT 0,
		errored_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running',
		created_by TEXT NOT NULL DEFAULT ''
	)`

	_, err := tx.Exec(query)
	return err
}

func migration004Indexes(tx *sql.Tx) error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_movements_status ON bank_movements(status)`,
		`CREATE INDEX IF NOT EXISTS idx_movements_reconciled ON bank_movements(reconciled)`,
		`CREATE INDEX IF NOT EXISTS idx_receivables_due_date ON open_receivables(due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_records_status ON reconciliation_records(status)`,
		`CREATE INDEX IF NOT EXISTS idx_records_movement ON reconciliation_records(movement_external_id)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
