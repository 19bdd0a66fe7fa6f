// Package workflow drives the reconciliation record state machine: record
// creation from engine matches, operator approve/reject decisions and manual
// pairings.
//
// Approval is the only path that flags a bank movement as reconciled, and it
// does so through the repository's transactional method so the record and
// the movement always change together.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/domain/matching"
	"bank-reconciliation-backend/internal/infrastructure/storage"
	"bank-reconciliation-backend/internal/notify"
)

// Config holds the workflow policy knobs.
type Config struct {
	// AutoMatchThreshold is the score at or above which a new record is
	// created in status matched instead of pending.
	AutoMatchThreshold float64

	// RequeueOnReject returns the movement to the pending pool after a
	// rejection so the next import run can propose it again.
	RequeueOnReject bool
}

// DefaultConfig returns the standard workflow policy.
func DefaultConfig() Config {
	return Config{
		AutoMatchThreshold: 0.95,
		RequeueOnReject:    false,
	}
}

// Workflow manages reconciliation record transitions.
type Workflow struct {
	store     storage.Repository
	publisher notify.Publisher
	logger    *slog.Logger
	config    Config
}

// NewWorkflow creates a workflow service. A nil publisher disables
// notifications; a nil logger falls back to slog.Default.
func NewWorkflow(store storage.Repository, publisher notify.Publisher, logger *slog.Logger, config Config) *Workflow {
	if publisher == nil {
		publisher = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.AutoMatchThreshold <= 0 {
		config.AutoMatchThreshold = DefaultConfig().AutoMatchThreshold
	}
	return &Workflow{
		store:     store,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// CreateFromMatch persists a proposed pairing as a reconciliation record,
// snapshotting both sides. Records scoring at or above the auto-match
// threshold start in status matched, the rest in pending; both still
// require an operator decision.
func (w *Workflow) CreateFromMatch(ctx context.Context, movement ledger.BankMovement, match matching.Match, createdBy string) (*ledger.ReconciliationRecord, error) {
	status := ledger.StatusPending
	if match.Score >= w.config.AutoMatchThreshold {
		status = ledger.StatusMatched
	}

	record := &ledger.ReconciliationRecord{
		ID:                  uuid.NewString(),
		MovementExternalID:  movement.ExternalID,
		MovementDate:        movement.TransactionDate,
		MovementAmount:      movement.Amount,
		MovementDescription: movement.Description,
		MovementReference:   movement.Reference,
		ReceivableID:        match.Receivable.ID,
		CustomerCode:        match.Receivable.CustomerCode,
		InvoiceNumber:       match.Receivable.InvoiceNumber,
		ReceivableAmount:    match.Receivable.Amount,
		MatchScore:          match.Score,
		MatchType:           ledger.MatchType(match.Algorithm),
		Status:              status,
		CreatedBy:           createdBy,
		CreatedAt:           time.Now().UTC(),
	}

	if err := w.store.CreateReconciliationRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("create record for movement %s: %w", movement.ExternalID, err)
	}

	w.logger.Info("reconciliation record created",
		"record_id", record.ID,
		"movement_id", movement.ExternalID,
		"receivable_id", match.Receivable.ID,
		"score", match.Score,
		"status", string(status),
	)
	return record, nil
}

// Approve transitions a pending or matched record to approved and flags its
// bank movement as reconciled in one transaction. Approving a record whose
// decision was already taken returns ErrInvalidTransition.
func (w *Workflow) Approve(ctx context.Context, recordID, userID, notes string) (*ledger.ReconciliationRecord, error) {
	record, err := w.loadDecidable(ctx, recordID)
	if err != nil {
		return nil, err
	}

	movement, err := w.store.GetBankMovement(ctx, record.MovementExternalID)
	if err != nil {
		return nil, err
	}
	if movement == nil {
		return nil, fmt.Errorf("movement %s: %w", record.MovementExternalID, apperrors.ErrNotFound)
	}
	if movement.Reconciled {
		return nil, fmt.Errorf("movement %s already reconciled: %w", movement.ExternalID, apperrors.ErrValidation)
	}

	at := time.Now().UTC()
	if err := w.store.ApproveReconciliation(ctx, recordID, record.MovementExternalID, userID, notes, at); err != nil {
		return nil, fmt.Errorf("approve record %s: %w", recordID, err)
	}

	record.Status = ledger.StatusApproved
	record.ApprovedBy = userID
	record.ApprovedAt = &at
	if notes != "" {
		record.Notes = notes
	}

	w.logger.Info("reconciliation approved",
		"record_id", recordID,
		"movement_id", record.MovementExternalID,
		"user", userID,
	)
	w.publisher.Publish(notify.Event{Name: notify.EventApproved, EntityID: recordID, At: at})
	return record, nil
}

// Reject transitions a pending or matched record to rejected. The record is
// kept for audit; the movement stays untouched unless RequeueOnReject is
// set, in which case its status returns to unmatched so the next import run
// reconsiders it.
func (w *Workflow) Reject(ctx context.Context, recordID, userID, reason string) (*ledger.ReconciliationRecord, error) {
	record, err := w.loadDecidable(ctx, recordID)
	if err != nil {
		return nil, err
	}

	at := time.Now().UTC()
	if err := w.store.RejectReconciliation(ctx, recordID, userID, reason, at); err != nil {
		return nil, fmt.Errorf("reject record %s: %w", recordID, err)
	}

	record.Status = ledger.StatusRejected
	record.ApprovedBy = userID
	record.ApprovedAt = &at
	if reason != "" {
		record.Notes = reason
	}

	if w.config.RequeueOnReject {
		if err := w.store.SetMovementStatus(ctx, record.MovementExternalID, ledger.MovementUnmatched); err != nil {
			w.logger.Warn("requeue movement after reject failed",
				"movement_id", record.MovementExternalID, "error", err)
		}
	}

	w.logger.Info("reconciliation rejected",
		"record_id", recordID,
		"movement_id", record.MovementExternalID,
		"user", userID,
	)
	w.publisher.Publish(notify.Event{Name: notify.EventRejected, EntityID: recordID, At: at})
	return record, nil
}

// ManualReconciliation pairs a movement with a receivable chosen by the
// operator. The record is created directly in status approved with score
// 1.0 and match type manual, flagging the movement in the same transaction.
func (w *Workflow) ManualReconciliation(ctx context.Context, movementExternalID, receivableID, userID, notes string) (*ledger.ReconciliationRecord, error) {
	if movementExternalID == "" || receivableID == "" {
		return nil, fmt.Errorf("movement and receivable are required: %w", apperrors.ErrValidation)
	}

	movement, err := w.store.GetBankMovement(ctx, movementExternalID)
	if err != nil {
		return nil, err
	}
	if movement == nil {
		return nil, fmt.Errorf("movement %s: %w", movementExternalID, apperrors.ErrNotFound)
	}
	if movement.Reconciled {
		return nil, fmt.Errorf("movement %s already reconciled: %w", movementExternalID, apperrors.ErrValidation)
	}

	receivable, err := w.store.GetOpenReceivable(ctx, receivableID)
	if err != nil {
		return nil, err
	}
	if receivable == nil {
		return nil, fmt.Errorf("receivable %s: %w", receivableID, apperrors.ErrNotFound)
	}
	if receivable.Paid {
		return nil, fmt.Errorf("receivable %s already paid: %w", receivableID, apperrors.ErrValidation)
	}

	at := time.Now().UTC()
	record := &ledger.ReconciliationRecord{
		ID:                  uuid.NewString(),
		MovementExternalID:  movement.ExternalID,
		MovementDate:        movement.TransactionDate,
		MovementAmount:      movement.Amount,
		MovementDescription: movement.Description,
		MovementReference:   movement.Reference,
		ReceivableID:        receivable.ID,
		CustomerCode:        receivable.CustomerCode,
		InvoiceNumber:       receivable.InvoiceNumber,
		ReceivableAmount:    receivable.Amount,
		MatchScore:          1.0,
		MatchType:           ledger.MatchManual,
		Status:              ledger.StatusApproved,
		Notes:               notes,
		CreatedBy:           userID,
		CreatedAt:           at,
		ApprovedBy:          userID,
		ApprovedAt:          &at,
	}

	if err := w.store.CreateApprovedReconciliation(ctx, record); err != nil {
		return nil, fmt.Errorf("manual reconciliation for movement %s: %w", movementExternalID, err)
	}

	w.logger.Info("manual reconciliation created",
		"record_id", record.ID,
		"movement_id", movementExternalID,
		"receivable_id", receivableID,
		"user", userID,
	)
	w.publisher.Publish(notify.Event{Name: notify.EventManual, EntityID: record.ID, At: at})
	return record, nil
}

// loadDecidable fetches a record and verifies it still awaits a decision.
func (w *Workflow) loadDecidable(ctx context.Context, recordID string) (*ledger.ReconciliationRecord, error) {
	record, err := w.store.GetReconciliationRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("reconciliation record %s: %w", recordID, apperrors.ErrNotFound)
	}
	if !record.Decidable() {
		return nil, fmt.Errorf("record %s is already %s: %w", recordID, record.Status, apperrors.ErrInvalidTransition)
	}
	return record, nil
}
