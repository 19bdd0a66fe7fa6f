package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/domain/ledger"
)

// Storage provides SQLite database access for movements, receivables,
// reconciliation records and import runs. It implements the Repository
// interface.
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

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// UpsertBankMovements inserts or updates movements by external ID. The
// source file fields are refreshed; reconciliation state columns of an
// existing row are left untouched.
func (s *Storage) UpsertBankMovements(ctx context.Context, movements []ledger.BankMovement) error {
	if len(movements) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert bank movements: %w", err)
	}

	query := `
	INSERT INTO bank_movements
	(external_id, account_number, transaction_date, value_date, amount,
	 description, reference, transaction_type, counterpart, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		account_number = excluded.account_number,
		transaction_date = excluded.transaction_date,
		value_date = excluded.value_date,
		amount = excluded.amount,
		description = excluded.description,
		reference = excluded.reference,
		transaction_type = excluded.transaction_type,
		counterpart = excluded.counterpart
	`

	for _, m := range movements {
		status := m.Status
		if status == "" {
			status = ledger.MovementPending
		}
		_, err := tx.ExecContext(ctx, query,
			m.ExternalID,
			m.AccountNumber,
			m.TransactionDate,
			m.ValueDate,
			m.Amount,
			m.Description,
			m.Reference,
			m.TransactionType,
			m.Counterpart,
			string(status),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert bank movement %s: %w", m.ExternalID, err)
		}
	}

	return tx.Commit()
}

const movementColumns = `
	external_id, account_number, transaction_date, value_date, amount,
	description, reference, transaction_type, counterpart,
	reconciled, reconciliation_id, status, created_at`

// GetBankMovement retrieves a movement by external ID, nil when absent.
func (s *Storage) GetBankMovement(ctx context.Context, externalID string) (*ledger.BankMovement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM bank_movements WHERE external_id = ?`, externalID)

	movement, err := scanMovement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bank movement %s: %w", externalID, err)
	}
	return movement, nil
}

// ListBankMovements returns movements matching the filters.
func (s *Storage) ListBankMovements(ctx context.Context, filters MovementFilters) ([]ledger.BankMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM bank_movements WHERE 1=1`
	var args []interface{}

	if filters.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filters.Status))
	}
	if filters.Reconciled != nil {
		query += ` AND reconciled = ?`
		args = append(args, *filters.Reconciled)
	}
	if filters.DateFrom != nil {
		query += ` AND transaction_date >= ?`
		args = append(args, *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query += ` AND transaction_date <= ?`
		args = append(args, *filters.DateTo)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY transaction_date DESC, external_id LIMIT ? OFFSET ?`
	args = append(args, limit, filters.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bank movements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var movements []ledger.BankMovement
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("list bank movements: %w", err)
		}
		movements = append(movements, *movement)
	}
	return movements, rows.Err()
}

// SetMovementStatus updates the lifecycle status column only.
func (s *Storage) SetMovementStatus(ctx context.Context, externalID string, status ledger.MovementStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE bank_movements SET status = ? WHERE external_id = ?`,
		string(status), externalID)
	if err != nil {
		return fmt.Errorf("set movement status %s: %w", externalID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("movement %s: %w", externalID, apperrors.ErrNotFound)
	}
	return nil
}

// UpsertOpenReceivables loads or refreshes the receivable snapshot.
func (s *Storage) UpsertOpenReceivables(ctx context.Context, receivables []ledger.OpenReceivable) error {
	if len(receivables) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert open receivables: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO open_receivables
	(id, customer_code, customer_name, due_date, amount, invoice_number, description, paid)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, r := range receivables {
		_, err := tx.ExecContext(ctx, query,
			r.ID, r.CustomerCode, r.CustomerName, r.DueDate,
			r.Amount, r.InvoiceNumber, r.Description, r.Paid)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert open receivable %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// GetOpenReceivable retrieves a receivable by ID, nil when absent.
func (s *Storage) GetOpenReceivable(ctx context.Context, id string) (*ledger.OpenReceivable, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_code, customer_name, due_date, amount, invoice_number, description, paid
		FROM open_receivables WHERE id = ?`, id)

	var r ledger.OpenReceivable
	err := row.Scan(&r.ID, &r.CustomerCode, &r.CustomerName, &r.DueDate,
		&r.Amount, &r.InvoiceNumber, &r.Description, &r.Paid)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open receivable %s: %w", id, err)
	}
	return &r, nil
}

// ListOpenReceivables returns unpaid receivables matching the filters,
// oldest due date first.
func (s *Storage) ListOpenReceivables(ctx context.Context, filters ReceivableFilters) ([]ledger.OpenReceivable, error) {
	query := `
	SELECT id, customer_code, customer_name, due_date, amount, invoice_number, description, paid
	FROM open_receivables WHERE paid = 0`
	var args []interface{}

	if filters.DateFrom != nil {
		query += ` AND due_date >= ?`
		args = append(args, *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query += ` AND due_date <= ?`
		args = append(args, *filters.DateTo)
	}
	if filters.MinAmount != nil {
		query += ` AND amount >= ?`
		args = append(args, *filters.MinAmount)
	}
	if filters.MaxAmount != nil {
		query += ` AND amount <= ?`
		args = append(args, *filters.MaxAmount)
	}
	query += ` ORDER BY due_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open receivables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var receivables []ledger.OpenReceivable
	for rows.Next() {
		var r ledger.OpenReceivable
		err := rows.Scan(&r.ID, &r.CustomerCode, &r.CustomerName, &r.DueDate,
			&r.Amount, &r.InvoiceNumber, &r.Description, &r.Paid)
		if err != nil {
			return nil, fmt.Errorf("list open receivables: %w", err)
		}
		receivables = append(receivables, r)
	}
	return receivables, rows.Err()
}

// CreateReconciliationRecord inserts a new record.
func (s *Storage) CreateReconciliationRecord(ctx context.Context, record *ledger.ReconciliationRecord) error {
	return s.insertRecord(ctx, s.db.ExecContext, record)
}

const recordColumns = `
	id, movement_external_id, movement_date, movement_amount,
	movement_description, movement_reference,
	receivable_id, customer_code, invoice_number, receivable_amount,
	match_score, match_type, status, notes,
	created_by, created_at, approved_by, approved_at`

type execFunc func(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

func (s *Storage) insertRecord(ctx context.Context, exec execFunc, record *ledger.ReconciliationRecord) error {
	query := `
	INSERT INTO reconciliation_records (` + recordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var approvedAt interface{}
	if record.ApprovedAt != nil {
		approvedAt = *record.ApprovedAt
	}

	_, err := exec(ctx, query,
		record.ID,
		record.MovementExternalID,
		record.MovementDate,
		record.MovementAmount,
		record.MovementDescription,
		record.MovementReference,
		record.ReceivableID,
		record.CustomerCode,
		record.InvoiceNumber,
		record.ReceivableAmount,
		record.MatchScore,
		string(record.MatchType),
		string(record.Status),
		record.Notes,
		record.CreatedBy,
		record.CreatedAt,
		record.ApprovedBy,
		approvedAt,
	)
	if err != nil {
		return fmt.Errorf("create reconciliation record %s: %w", record.ID, err)
	}
	return nil
}

// GetReconciliationRecord retrieves a record by ID, nil when absent.
func (s *Storage) GetReconciliationRecord(ctx context.Context, id string) (*ledger.ReconciliationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM reconciliation_records WHERE id = ?`, id)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reconciliation record %s: %w", id, err)
	}
	return record, nil
}

// ListReconciliationRecords returns records matching the filters, most
// recent first.
func (s *Storage) ListReconciliationRecords(ctx context.Context, filters RecordFilters) ([]ledger.ReconciliationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM reconciliation_records WHERE 1=1`
	var args []interface{}

	if filters.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filters.Status))
	}
	if filters.MatchType != "" {
		query += ` AND match_type = ?`
		args = append(args, string(filters.MatchType))
	}
	if filters.MovementExternalID != "" {
		query += ` AND movement_external_id = ?`
		args = append(args, filters.MovementExternalID)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, filters.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ledger.ReconciliationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list reconciliation records: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// ApproveReconciliation updates the record and flags its movement in a
// single transaction: a failure on either write rolls back both.
func (s *Storage) ApproveReconciliation(ctx context.Context, recordID, movementExternalID, userID, notes string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("approve reconciliation %s: %w", recordID, err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE reconciliation_records
		SET status = ?, approved_by = ?, approved_at = ?,
		    notes = CASE WHEN ? = '' THEN notes ELSE ? END
		WHERE id = ?`,
		string(ledger.StatusApproved), userID, at, notes, notes, recordID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("approve reconciliation %s: %w", recordID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("reconciliation record %s: %w", recordID, apperrors.ErrNotFound)
	}

	if err := flagMovementReconciled(ctx, tx, movementExternalID, recordID); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// CreateApprovedReconciliation inserts an already-approved record (manual
// pairing) and flags its movement in the same transaction.
func (s *Storage) CreateApprovedReconciliation(ctx context.Context, record *ledger.ReconciliationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create approved reconciliation: %w", err)
	}

	if err := s.insertRecord(ctx, tx.ExecContext, record); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := flagMovementReconciled(ctx, tx, record.MovementExternalID, record.ID); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func flagMovementReconciled(ctx context.Context, tx *sql.Tx, externalID, recordID string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE bank_movements
		SET reconciled = 1, reconciliation_id = ?, status = ?
		WHERE external_id = ?`,
		recordID, string(ledger.MovementReconciled), externalID)
	if err != nil {
		return fmt.Errorf("flag movement %s reconciled: %w", externalID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("movement %s: %w", externalID, apperrors.ErrNotFound)
	}
	return nil
}

// RejectReconciliation marks the record rejected and keeps it for audit.
// The movement's reconciled flag is deliberately left untouched.
func (s *Storage) RejectReconciliation(ctx context.Context, recordID, userID, reason string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reconciliation_records
		SET status = ?, approved_by = ?, approved_at = ?,
		    notes = CASE WHEN ? = '' THEN notes ELSE ? END
		WHERE id = ?`,
		string(ledger.StatusRejected), userID, at, reason, reason, recordID)
	if err != nil {
		return fmt.Errorf("reject reconciliation %s: %w", recordID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("reconciliation record %s: %w", recordID, apperrors.ErrNotFound)
	}
	return nil
}

// GetReconciliationStats returns the aggregate counts behind the dashboard
// rates.
func (s *Storage) GetReconciliationStats(ctx context.Context) (*RecordStats, error) {
	query := `
	SELECT
		COUNT(*) as total,
		COUNT(CASE WHEN status = 'pending' THEN 1 END) as pending,
		COUNT(CASE WHEN status = 'matched' THEN 1 END) as matched,
		COUNT(CASE WHEN status = 'approved' THEN 1 END) as approved,
		COUNT(CASE WHEN status = 'rejected' THEN 1 END) as rejected,
		COUNT(CASE WHEN match_type = 'manual' THEN 1 END) as manual,
		COUNT(CASE WHEN status = 'approved' AND match_type != 'manual' THEN 1 END) as auto_approved
	FROM reconciliation_records
	`

	stats := &RecordStats{}
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Matched,
		&stats.Approved,
		&stats.Rejected,
		&stats.Manual,
		&stats.AutoApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("get reconciliation stats: %w", err)
	}
	return stats, nil
}

// StartImportRun records the start of an import batch.
func (s *Storage) StartImportRun(ctx context.Context, run *ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, started_at, total_movements, status, created_by)
		VALUES (?, ?, ?, 'running', ?)`,
		run.ID, run.StartedAt, run.TotalMovements, run.CreatedBy)
	if err != nil {
		return fmt.Errorf("start import run: %w", err)
	}
	run.Status = "running"
	return nil
}

// CompleteImportRun records the completion of an import batch.
func (s *Storage) CompleteImportRun(ctx context.Context, runID string, matched, unmatched, errored int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE import_runs
		SET completed_at = CURRENT_TIMESTAMP,
		    matched_count = ?,
		    unmatched_count = ?,
		    errored_count = ?,
		    status = CASE WHEN ? > 0 THEN 'completed_with_errors' ELSE 'completed' END
		WHERE id = ?`,
		matched, unmatched, errored, errored, runID)
	if err != nil {
		return fmt.Errorf("complete import run %s: %w", runID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("import run %s: %w", runID, apperrors.ErrNotFound)
	}
	return nil
}

// ListImportRuns returns recent import runs, newest first.
func (s *Storage) ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, total_movements,
		       matched_count, unmatched_count, errored_count, status, created_by
		FROM import_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []ImportRun
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list import runs: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetImportRun retrieves an import run by ID, nil when absent.
func (s *Storage) GetImportRun(ctx context.Context, runID string) (*ImportRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, completed_at, total_movements,
		       matched_count, unmatched_count, errored_count, status, created_by
		FROM import_runs WHERE id = ?`, runID)

	run, err := scanImportRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import run %s: %w", runID, err)
	}
	return run, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMovement(row scanner) (*ledger.BankMovement, error) {
	var m ledger.BankMovement
	var valueDate sql.NullTime
	var reconciliationID sql.NullString
	var status string

	err := row.Scan(
		&m.ExternalID,
		&m.AccountNumber,
		&m.TransactionDate,
		&valueDate,
		&m.Amount,
		&m.Description,
		&m.Reference,
		&m.TransactionType,
		&m.Counterpart,
		&m.Reconciled,
		&reconciliationID,
		&status,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if valueDate.Valid {
		m.ValueDate = valueDate.Time
	}
	if reconciliationID.Valid {
		m.ReconciliationID = &reconciliationID.String
	}
	m.Status = ledger.MovementStatus(status)
	return &m, nil
}

func scanRecord(row scanner) (*ledger.ReconciliationRecord, error) {
	var r ledger.ReconciliationRecord
	var matchType, status string
	var approvedAt sql.NullTime

	err := row.Scan(
		&r.ID,
		&r.MovementExternalID,
		&r.MovementDate,
		&r.MovementAmount,
		&r.MovementDescription,
		&r.MovementReference,
		&r.ReceivableID,
		&r.CustomerCode,
		&r.InvoiceNumber,
		&r.ReceivableAmount,
		&r.MatchScore,
		&matchType,
		&status,
		&r.Notes,
		&r.CreatedBy,
		&r.CreatedAt,
		&r.ApprovedBy,
		&approvedAt,
	)
	if err != nil {
		return nil, err
	}

	r.MatchType = ledger.MatchType(matchType)
	r.Status = ledger.RecordStatus(status)
	if approvedAt.Valid {
		r.ApprovedAt = &approvedAt.Time
	}
	return &r, nil
}

func scanImportRun(row scanner) (*ImportRun, error) {
	var run ImportRun
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&completedAt,
		&run.TotalMovements,
		&run.MatchedCount,
		&run.UnmatchedCount,
		&run.ErroredCount,
		&run.Status,
		&run.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}
