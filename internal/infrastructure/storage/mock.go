package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/domain/ledger"
)

// MockRepository is an in-memory Repository for testing. Call flags record
// which methods were invoked; the Err fields inject failures.
type MockRepository struct {
	Movements   map[string]*ledger.BankMovement
	Receivables map[string]*ledger.OpenReceivable
	Records     map[string]*ledger.ReconciliationRecord
	Runs        map[string]*ImportRun

	// Call tracking
	UpsertBankMovementsCalled   bool
	UpsertOpenReceivablesCalled bool
	CreateRecordCalled          bool
	ApproveCalled               bool
	CreateApprovedCalled        bool
	RejectCalled                bool
	SetMovementStatusCalled     bool
	StartImportRunCalled        bool
	CompleteImportRunCalled     bool

	// Error injection
	UpsertMovementsErr   error
	UpsertReceivablesErr error
	CreateRecordErr      error
	ApproveErr           error
	RejectErr            error
	StatsErr             error
	StartRunErr          error
	CompleteRunErr       error

	// FlagMovementErr fails the movement-side write of an approval. The
	// mock then leaves both the record and the movement unchanged,
	// mirroring the SQLite transaction rollback.
	FlagMovementErr error
}

var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a mock with empty stores.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		Movements:   make(map[string]*ledger.BankMovement),
		Receivables: make(map[string]*ledger.OpenReceivable),
		Records:     make(map[string]*ledger.ReconciliationRecord),
		Runs:        make(map[string]*ImportRun),
	}
}

func (m *MockRepository) Close() error { return nil }

func (m *MockRepository) UpsertBankMovements(_ context.Context, movements []ledger.BankMovement) error {
	m.UpsertBankMovementsCalled = true
	if m.UpsertMovementsErr != nil {
		return m.UpsertMovementsErr
	}
	for _, movement := range movements {
		movement := movement
		if movement.Status == "" {
			movement.Status = ledger.MovementPending
		}
		if existing, ok := m.Movements[movement.ExternalID]; ok {
			// Preserve reconciliation state on re-import.
			movement.Reconciled = existing.Reconciled
			movement.ReconciliationID = existing.ReconciliationID
			movement.Status = existing.Status
			movement.CreatedAt = existing.CreatedAt
		} else if movement.CreatedAt.IsZero() {
			movement.CreatedAt = time.Now()
		}
		m.Movements[movement.ExternalID] = &movement
	}
	return nil
}

func (m *MockRepository) GetBankMovement(_ context.Context, externalID string) (*ledger.BankMovement, error) {
	movement, ok := m.Movements[externalID]
	if !ok {
		return nil, nil
	}
	copied := *movement
	return &copied, nil
}

func (m *MockRepository) ListBankMovements(_ context.Context, filters MovementFilters) ([]ledger.BankMovement, error) {
	var movements []ledger.BankMovement
	for _, movement := range m.Movements {
		if filters.Status != "" && movement.Status != filters.Status {
			continue
		}
		if filters.Reconciled != nil && movement.Reconciled != *filters.Reconciled {
			continue
		}
		if filters.DateFrom != nil && movement.TransactionDate.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && movement.TransactionDate.After(*filters.DateTo) {
			continue
		}
		movements = append(movements, *movement)
	}
	sort.Slice(movements, func(i, j int) bool {
		if movements[i].TransactionDate.Equal(movements[j].TransactionDate) {
			return movements[i].ExternalID < movements[j].ExternalID
		}
		return movements[i].TransactionDate.After(movements[j].TransactionDate)
	})
	return paginate(movements, filters.Limit, filters.Offset), nil
}

func (m *MockRepository) SetMovementStatus(_ context.Context, externalID string, status ledger.MovementStatus) error {
	m.SetMovementStatusCalled = true
	movement, ok := m.Movements[externalID]
	if !ok {
		return fmt.Errorf("movement %s: %w", externalID, apperrors.ErrNotFound)
	}
	movement.Status = status
	return nil
}

func (m *MockRepository) UpsertOpenReceivables(_ context.Context, receivables []ledger.OpenReceivable) error {
	m.UpsertOpenReceivablesCalled = true
	if m.UpsertReceivablesErr != nil {
		return m.UpsertReceivablesErr
	}
	for _, r := range receivables {
		r := r
		m.Receivables[r.ID] = &r
	}
	return nil
}

func (m *MockRepository) GetOpenReceivable(_ context.Context, id string) (*ledger.OpenReceivable, error) {
	r, ok := m.Receivables[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (m *MockRepository) ListOpenReceivables(_ context.Context, filters ReceivableFilters) ([]ledger.OpenReceivable, error) {
	var receivables []ledger.OpenReceivable
	for _, r := range m.Receivables {
		if r.Paid {
			continue
		}
		if filters.DateFrom != nil && r.DueDate.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && r.DueDate.After(*filters.DateTo) {
			continue
		}
		if filters.MinAmount != nil && r.Amount < *filters.MinAmount {
			continue
		}
		if filters.MaxAmount != nil && r.Amount > *filters.MaxAmount {
			continue
		}
		receivables = append(receivables, *r)
	}
	sort.Slice(receivables, func(i, j int) bool {
		if receivables[i].DueDate.Equal(receivables[j].DueDate) {
			return receivables[i].ID < receivables[j].ID
		}
		return receivables[i].DueDate.Before(receivables[j].DueDate)
	})
	return receivables, nil
}

func (m *MockRepository) CreateReconciliationRecord(_ context.Context, record *ledger.ReconciliationRecord) error {
	m.CreateRecordCalled = true
	if m.CreateRecordErr != nil {
		return m.CreateRecordErr
	}
	copied := *record
	m.Records[record.ID] = &copied
	return nil
}

func (m *MockRepository) GetReconciliationRecord(_ context.Context, id string) (*ledger.ReconciliationRecord, error) {
	record, ok := m.Records[id]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *MockRepository) ListReconciliationRecords(_ context.Context, filters RecordFilters) ([]ledger.ReconciliationRecord, error) {
	var records []ledger.ReconciliationRecord
	for _, record := range m.Records {
		if filters.Status != "" && record.Status != filters.Status {
			continue
		}
		if filters.MatchType != "" && record.MatchType != filters.MatchType {
			continue
		}
		if filters.MovementExternalID != "" && record.MovementExternalID != filters.MovementExternalID {
			continue
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return paginate(records, filters.Limit, filters.Offset), nil
}

func (m *MockRepository) ApproveReconciliation(_ context.Context, recordID, movementExternalID, userID, notes string, at time.Time) error {
	m.ApproveCalled = true
	if m.ApproveErr != nil {
		return m.ApproveErr
	}

	record, ok := m.Records[recordID]
	if !ok {
		return fmt.Errorf("reconciliation record %s: %w", recordID, apperrors.ErrNotFound)
	}
	movement, ok := m.Movements[movementExternalID]
	if !ok {
		return fmt.Errorf("movement %s: %w", movementExternalID, apperrors.ErrNotFound)
	}

	// Simulate the single transaction: either both rows change or neither.
	if m.FlagMovementErr != nil {
		return m.FlagMovementErr
	}

	record.Status = ledger.StatusApproved
	record.ApprovedBy = userID
	record.ApprovedAt = &at
	if notes != "" {
		record.Notes = notes
	}

	movement.Reconciled = true
	movement.ReconciliationID = &recordID
	movement.Status = ledger.MovementReconciled
	return nil
}

func (m *MockRepository) CreateApprovedReconciliation(_ context.Context, record *ledger.ReconciliationRecord) error {
	m.CreateApprovedCalled = true
	if m.CreateRecordErr != nil {
		return m.CreateRecordErr
	}

	movement, ok := m.Movements[record.MovementExternalID]
	if !ok {
		return fmt.Errorf("movement %s: %w", record.MovementExternalID, apperrors.ErrNotFound)
	}
	if m.FlagMovementErr != nil {
		return m.FlagMovementErr
	}

	copied := *record
	m.Records[record.ID] = &copied

	movement.Reconciled = true
	movement.ReconciliationID = &record.ID
	movement.Status = ledger.MovementReconciled
	return nil
}

func (m *MockRepository) RejectReconciliation(_ context.Context, recordID, userID, reason string, at time.Time) error {
	m.RejectCalled = true
	if m.RejectErr != nil {
		return m.RejectErr
	}

	record, ok := m.Records[recordID]
	if !ok {
		return fmt.Errorf("reconciliation record %s: %w", recordID, apperrors.ErrNotFound)
	}

	record.Status = ledger.StatusRejected
	record.ApprovedBy = userID
	record.ApprovedAt = &at
	if reason != "" {
		record.Notes = reason
	}
	return nil
}

func (m *MockRepository) GetReconciliationStats(_ context.Context) (*RecordStats, error) {
	if m.StatsErr != nil {
		return nil, m.StatsErr
	}

	stats := &RecordStats{}
	for _, record := range m.Records {
		stats.Total++
		switch record.Status {
		case ledger.StatusPending:
			stats.Pending++
		case ledger.StatusMatched:
			stats.Matched++
		case ledger.StatusApproved:
			stats.Approved++
		case ledger.StatusRejected:
			stats.Rejected++
		}
		if record.MatchType == ledger.MatchManual {
			stats.Manual++
		} else if record.Status == ledger.StatusApproved {
			stats.AutoApproved++
		}
	}
	return stats, nil
}

func (m *MockRepository) StartImportRun(_ context.Context, run *ImportRun) error {
	m.StartImportRunCalled = true
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	run.Status = "running"
	copied := *run
	m.Runs[run.ID] = &copied
	return nil
}

func (m *MockRepository) CompleteImportRun(_ context.Context, runID string, matched, unmatched, errored int) error {
	m.CompleteImportRunCalled = true
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	run, ok := m.Runs[runID]
	if !ok {
		return fmt.Errorf("import run %s: %w", runID, apperrors.ErrNotFound)
	}
	now := time.Now()
	run.CompletedAt = &now
	run.MatchedCount = matched
	run.UnmatchedCount = unmatched
	run.ErroredCount = errored
	if errored > 0 {
		run.Status = "completed_with_errors"
	} else {
		run.Status = "completed"
	}
	return nil
}

func (m *MockRepository) ListImportRuns(_ context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []ImportRun
	for _, run := range m.Runs {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MockRepository) GetImportRun(_ context.Context, runID string) (*ImportRun, error) {
	run, ok := m.Runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 100
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
