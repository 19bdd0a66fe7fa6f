package storage

import (
	"context"
	"time"

	"bank-reconciliation-backend/internal/domain/ledger"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with the in-memory mock straightforward.
type Repository interface {
	MovementRepository
	ReceivableRepository
	ReconciliationRepository
	ImportRunRepository
	Close() error
}

// MovementRepository handles bank movement persistence.
//
// Movements are created once by an idempotent upsert keyed by external ID
// and never deleted; the reconciled flag and back-reference are mutated only
// through ApproveReconciliation / CreateApprovedReconciliation.
type MovementRepository interface {
	// UpsertBankMovements inserts or updates movements by external ID.
	// The reconciled flag, back-reference and status of an existing row
	// are preserved.
	UpsertBankMovements(ctx context.Context, movements []ledger.BankMovement) error

	// GetBankMovement returns nil, nil when no movement exists.
	GetBankMovement(ctx context.Context, externalID string) (*ledger.BankMovement, error)

	// ListBankMovements returns movements matching the filters, most
	// recent transaction date first.
	ListBankMovements(ctx context.Context, filters MovementFilters) ([]ledger.BankMovement, error)

	// SetMovementStatus updates only the lifecycle status column.
	SetMovementStatus(ctx context.Context, externalID string, status ledger.MovementStatus) error
}

// ReceivableRepository serves the locally replicated snapshot of the
// external ledger's open receivables. Replication itself happens outside
// the core; the snapshot is loaded through UpsertOpenReceivables.
type ReceivableRepository interface {
	UpsertOpenReceivables(ctx context.Context, receivables []ledger.OpenReceivable) error

	// GetOpenReceivable returns nil, nil when no receivable exists.
	GetOpenReceivable(ctx context.Context, id string) (*ledger.OpenReceivable, error)

	// ListOpenReceivables returns unpaid receivables matching the filters.
	ListOpenReceivables(ctx context.Context, filters ReceivableFilters) ([]ledger.OpenReceivable, error)
}

// ReconciliationRepository handles reconciliation record persistence.
// Records are never deleted; terminal decisions go through the dedicated
// transition methods so the movement side effect stays transactional.
type ReconciliationRepository interface {
	CreateReconciliationRecord(ctx context.Context, record *ledger.ReconciliationRecord) error

	// GetReconciliationRecord returns nil, nil when no record exists.
	GetReconciliationRecord(ctx context.Context, id string) (*ledger.ReconciliationRecord, error)

	ListReconciliationRecords(ctx context.Context, filters RecordFilters) ([]ledger.ReconciliationRecord, error)

	// ApproveReconciliation marks the record approved and flags its bank
	// movement (reconciled, back-reference, status) in one transaction:
	// either both rows change or neither does.
	ApproveReconciliation(ctx context.Context, recordID, movementExternalID, userID, notes string, at time.Time) error

	// CreateApprovedReconciliation inserts an already-approved record
	// (manual pairing) and flags its movement in one transaction.
	CreateApprovedReconciliation(ctx context.Context, record *ledger.ReconciliationRecord) error

	// RejectReconciliation marks the record rejected. The movement's
	// reconciled flag is deliberately left untouched.
	RejectReconciliation(ctx context.Context, recordID, userID, reason string, at time.Time) error

	// GetReconciliationStats returns the aggregate counts used by the
	// stats aggregator.
	GetReconciliationStats(ctx context.Context) (*RecordStats, error)
}

// ImportRunRepository tracks reconciliation import batches.
type ImportRunRepository interface {
	StartImportRun(ctx context.Context, run *ImportRun) error
	CompleteImportRun(ctx context.Context, runID string, matched, unmatched, errored int) error
	ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error)

	// GetImportRun returns nil, nil when no run exists.
	GetImportRun(ctx context.Context, runID string) (*ImportRun, error)
}

// MovementFilters selects bank movements.
type MovementFilters struct {
	Status     ledger.MovementStatus // empty = all
	Reconciled *bool                 // nil = all
	DateFrom   *time.Time            // inclusive, on transaction date
	DateTo     *time.Time            // inclusive
	Limit      int                   // 0 = default 100
	Offset     int
}

// ReceivableFilters selects open receivables. Paid receivables are always
// excluded.
type ReceivableFilters struct {
	DateFrom  *time.Time // inclusive, on due date
	DateTo    *time.Time // inclusive
	MinAmount *float64
	MaxAmount *float64
}

// RecordFilters selects reconciliation records.
type RecordFilters struct {
	Status             ledger.RecordStatus // empty = all
	MatchType          ledger.MatchType    // empty = all
	MovementExternalID string              // empty = all
	Limit              int                 // 0 = default 100
	Offset             int
}

// ImportRun is one reconciliation import batch.
type ImportRun struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalMovements int        `json:"total_movements"`
	MatchedCount   int        `json:"matched_count"`
	UnmatchedCount int        `json:"unmatched_count"`
	ErroredCount   int        `json:"errored_count"`
	Status         string     `json:"status"` // running, completed, completed_with_errors
	CreatedBy      string     `json:"created_by"`
}

// RecordStats holds the aggregate counts behind the dashboard rates.
type RecordStats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Matched      int `json:"matched"`
	Approved     int `json:"approved"`
	Rejected     int `json:"rejected"`
	Manual       int `json:"manual"`
	AutoApproved int `json:"auto_approved"` // approved without manual creation
}
