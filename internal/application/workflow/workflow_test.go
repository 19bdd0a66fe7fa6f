package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/domain/matching"
	"bank-reconciliation-backend/internal/infrastructure/storage"
	"bank-reconciliation-backend/internal/notify"
)

type capturingPublisher struct {
	events []notify.Event
}

func (p *capturingPublisher) Publish(event notify.Event) {
	p.events = append(p.events, event)
}

func newTestWorkflow(t *testing.T) (*Workflow, *storage.MockRepository, *capturingPublisher) {
	t.Helper()
	store := storage.NewMockRepository()
	publisher := &capturingPublisher{}
	return NewWorkflow(store, publisher, nil, DefaultConfig()), store, publisher
}

func seedMovement(t *testing.T, store *storage.MockRepository, externalID string) ledger.BankMovement {
	t.Helper()
	movement := ledger.BankMovement{
		ExternalID:      externalID,
		Amount:          1250.50,
		Description:     "BONIFICO ACME SRL FT100",
		Reference:       "FT100",
		TransactionDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.UpsertBankMovements(context.Background(), []ledger.BankMovement{movement}))
	return movement
}

func seedReceivable(t *testing.T, store *storage.MockRepository, id string) ledger.OpenReceivable {
	t.Helper()
	receivable := ledger.OpenReceivable{
		ID:            id,
		CustomerCode:  "C001",
		CustomerName:  "Acme SRL",
		DueDate:       time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:        1250.50,
		InvoiceNumber: "FT100",
	}
	require.NoError(t, store.UpsertOpenReceivables(context.Background(), []ledger.OpenReceivable{receivable}))
	return receivable
}

func matchFor(receivable ledger.OpenReceivable, score float64) matching.Match {
	return matching.Match{
		Receivable: receivable,
		Score:      score,
		Algorithm:  "combined",
		Reasons:    []string{"exact_amount"},
	}
}

func TestCreateFromMatch_AutoMatchThreshold(t *testing.T) {
	w, store, _ := newTestWorkflow(t)
	ctx := context.Background()
	movement := seedMovement(t, store, "mov-1")
	receivable := seedReceivable(t, store, "rec-1")

	// At or above 0.95 the record starts in matched.
	high, err := w.CreateFromMatch(ctx, movement, matchFor(receivable, 0.97), "system")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusMatched, high.Status)
	assert.Equal(t, ledger.MatchCombined, high.MatchType)
	assert.Equal(t, 0.97, high.MatchScore)

	// Below the threshold it starts in pending.
	low, err := w.CreateFromMatch(ctx, movement, matchFor(receivable, 0.80), "system")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, low.Status)

	// Both sides are snapshotted onto the record.
	assert.Equal(t, movement.Description, high.MovementDescription)
	assert.Equal(t, receivable.InvoiceNumber, high.InvoiceNumber)
	assert.Equal(t, receivable.Amount, high.ReceivableAmount)
}

func TestApprove_FlagsMovementAndPublishes(t *testing.T) {
	w, store, publisher := newTestWorkflow(t)
	ctx := context.Background()
	movement := seedMovement(t, store, "mov-1")
	receivable := seedReceivable(t, store, "rec-1")

	record, err := w.CreateFromMatch(ctx, movement, matchFor(receivable, 0.97), "system")
	require.NoError(t, err)

	approved, err := w.Approve(ctx, record.ID, "mario", "checked against invoice")
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusApproved, approved.Status)
	assert.Equal(t, "mario", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, "checked against invoice", approved.Notes)

	stored, err := store.GetBankMovement(ctx, "mov-1")
	require.NoError(t, err)
	assert.True(t, stored.Reconciled)
	require.NotNil(t, stored.ReconciliationID)
	assert.Equal(t, record.ID, *stored.ReconciliationID)
	assert.Equal(t, ledger.MovementReconciled, stored.Status)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, notify.EventApproved, publisher.events[0].Name)
	assert.Equal(t, record.ID, publisher.events[0].EntityID)
}

func TestApprove_TerminalRecordFails(t *testing.T) {
	w, store, _ := newTestWorkflow(t)
	ctx := context.Background()
	movement := seedMovement(t, store, "mov-1")
	receivable := seedReceivable(t, store, "rec-1")

	record, err := w.CreateFromMatch(ctx, movement, matchFor(receivable, 0.97), "system")
	require.NoError(t, err)

	_, err = w.Approve(ctx, record.ID, "mario", "")
	require.NoError(t, err)

	// A second decision on the same record must fail.
	_, err = w.Approve(ctx, record.ID, "luigi", "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))

	_, err = w.Reject(ctx, record.ID, "luigi", "changed my mind")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
}

func TestApprove_MovementAlreadyReconciled(t *testing.T) {
	w, store, _ := newTestWorkflow(t)
	ctx := context.Background()
	movement := seedMovement(t, store, "mov-1")
	receivable := seedReceivable(t, store, "rec-1")
	other := seedReceivable(t, store, "rec-2")

	first, err := w.CreateFromMatch(ctx, movement, matchFor(receivable, 0.97), "system")
	require.NoError(t, err)
	second, err := w.CreateFromMatch(ctx, movement, matchFor(other, 0.96), "system")
	require.NoError(t, err)

	_, err = w.Approve(ctx, first.ID, "mario", "")
	require.NoError(t, err)

	// The competing record cannot claim an already reconciled movement.
	_, err = w.Approve(ctx, second.ID, "mario", "")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestApprove_StorageFailureLeavesStateUnchanged(t *testing.T) {
	w, store, publisher := newTestWorkflow(t)
	ctx := context.Background()
	movement := seedMovement(t, store, "mov-1")
	receivable := seedReceivable(t, store, "rec-1")

	record, err := w.CreateFromMatch(ctx, movement, matchFor(receivable, 0.97), "system")
	require.NoError(t, err)

	store.FlagMovementErr = errors.New("disk full")

	_, err = w.Approve(ctx, record.ID, "mario", "")
	require.Error(t, err)

	// Neither side changed and nothing was published.
	stored, err := store.GetReconciliationRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusMatched, stored.Status)
	assert.Empty(t, stored.ApprovedBy)

	mov, err := store.GetBankMovement(ctx, "mov-1")
	require.NoError(t, err)
	assert.False(t, mov.Reconciled)
	assert.Empty(t, publisher.events)
}

func TestReject_KeepsRecordAndMovement(t *testing.T) {
	w, store, publisher := newTestWorkflow(t)
	ctx := context.Background()
	movement := seedMovement(t, store, "mov-1")
	receivable := seedReceivable(t, store, "rec-1")

	record, err := w.CreateFromMatch(ctx, movement, matchFor(receivable, 0.97), "system")
	require.NoError(t, err)

	rejected, err := w.Reject(ctx, record.ID, "mario", "amounts differ on closer look")
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusRejected, rejected.Status)
	assert.Equal(t, "mario", rejected.ApprovedBy)
	assert.Equal(t, "amounts differ on closer look", rejected.Notes)

	// The rejected record is kept for audit.
	stored, err := store.GetReconciliationRecord(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, ledger.StatusRejected, stored.Status)

	// The movement is not claimed.
	mov, err := store.GetBankMovement(ctx, "mov-1")
	require.NoError(t, err)
	assert.False(t, mov.Reconciled)
	assert.Nil(t, mov.ReconciliationID)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, notify.EventRejected, publisher.events[0].Name)
}

func TestReject_RequeueOnRejectPolicy(t *testing.T) {
	store := storage.NewMockRepository()
	config := DefaultConfig()
	config.RequeueOnReject = true
	w := NewWorkflow(store, nil, nil, config)
	ctx := context.Background()

	movement := seedMovement(t, store, "mov-1")
	receivable := seedReceivable(t, store, "rec-1")
	require.NoError(t, store.SetMovementStatus(ctx, "mov-1", ledger.MovementMatched))

	record, err := w.CreateFromMatch(ctx, movement, matchFor(receivable, 0.97), "system")
	require.NoError(t, err)

	_, err = w.Reject(ctx, record.ID, "mario", "")
	require.NoError(t, err)

	mov, err := store.GetBankMovement(ctx, "mov-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.MovementUnmatched, mov.Status)
}

func TestManualReconciliation(t *testing.T) {
	w, store, publisher := newTestWorkflow(t)
	ctx := context.Background()
	seedMovement(t, store, "mov-1")
	seedReceivable(t, store, "rec-1")

	record, err := w.ManualReconciliation(ctx, "mov-1", "rec-1", "mario", "customer confirmed by phone")
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusApproved, record.Status)
	assert.Equal(t, ledger.MatchManual, record.MatchType)
	assert.Equal(t, 1.0, record.MatchScore)
	assert.Equal(t, "mario", record.CreatedBy)
	assert.Equal(t, "mario", record.ApprovedBy)
	require.NotNil(t, record.ApprovedAt)

	mov, err := store.GetBankMovement(ctx, "mov-1")
	require.NoError(t, err)
	assert.True(t, mov.Reconciled)
	require.NotNil(t, mov.ReconciliationID)
	assert.Equal(t, record.ID, *mov.ReconciliationID)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, notify.EventManual, publisher.events[0].Name)
}

func TestManualReconciliation_Validation(t *testing.T) {
	w, store, _ := newTestWorkflow(t)
	ctx := context.Background()
	seedMovement(t, store, "mov-1")
	receivable := seedReceivable(t, store, "rec-1")

	_, err := w.ManualReconciliation(ctx, "", "rec-1", "mario", "")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = w.ManualReconciliation(ctx, "mov-missing", "rec-1", "mario", "")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = w.ManualReconciliation(ctx, "mov-1", "rec-missing", "mario", "")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	receivable.Paid = true
	require.NoError(t, store.UpsertOpenReceivables(ctx, []ledger.OpenReceivable{receivable}))
	_, err = w.ManualReconciliation(ctx, "mov-1", "rec-1", "mario", "")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	// After reconciling the movement, another manual pairing must fail.
	receivable.Paid = false
	require.NoError(t, store.UpsertOpenReceivables(ctx, []ledger.OpenReceivable{receivable}))
	_, err = w.ManualReconciliation(ctx, "mov-1", "rec-1", "mario", "")
	require.NoError(t, err)
	_, err = w.ManualReconciliation(ctx, "mov-1", "rec-1", "mario", "")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}
