package dto

import (
	"time"

	"bank-reconciliation-backend/internal/domain/ledger"
)

// MovementPayload is one statement line submitted for import.
type MovementPayload struct {
	ExternalID      string    `json:"external_id" binding:"required"`
	AccountNumber   string    `json:"account_number"`
	TransactionDate time.Time `json:"transaction_date" binding:"required"`
	ValueDate       time.Time `json:"value_date"`
	Amount          float64   `json:"amount" binding:"required"`
	Description     string    `json:"description"`
	Reference       string    `json:"reference"`
	TransactionType string    `json:"transaction_type"`
	Counterpart     string    `json:"counterpart"`
}

// ToLedger converts the payload to the domain type.
func (p MovementPayload) ToLedger() ledger.BankMovement {
	return ledger.BankMovement{
		ExternalID:      p.ExternalID,
		AccountNumber:   p.AccountNumber,
		TransactionDate: p.TransactionDate,
		ValueDate:       p.ValueDate,
		Amount:          p.Amount,
		Description:     p.Description,
		Reference:       p.Reference,
		TransactionType: p.TransactionType,
		Counterpart:     p.Counterpart,
	}
}

// ImportRequest starts a reconciliation import batch.
type ImportRequest struct {
	Movements []MovementPayload `json:"movements" binding:"required,min=1,dive"`

	// Engine overrides; zero values use the configured defaults.
	Algorithms []string `json:"algorithms"`
	MinScore   float64  `json:"min_score"`
	MaxMatches int      `json:"max_matches"`

	// Receivable universe bounds.
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	MinAmount *float64   `json:"min_amount"`

	UserID string `json:"user_id"`
}

// DecisionRequest carries an approve or reject decision.
type DecisionRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Notes  string `json:"notes"`
}

// ManualReconciliationRequest pairs a movement with a receivable by hand.
type ManualReconciliationRequest struct {
	MovementExternalID string `json:"movement_external_id" binding:"required"`
	ReceivableID       string `json:"receivable_id" binding:"required"`
	UserID             string `json:"user_id" binding:"required"`
	Notes              string `json:"notes"`
}

// ReceivablePayload is one open receivable in a snapshot load.
type ReceivablePayload struct {
	ID            string    `json:"id" binding:"required"`
	CustomerCode  string    `json:"customer_code"`
	CustomerName  string    `json:"customer_name"`
	DueDate       time.Time `json:"due_date" binding:"required"`
	Amount        float64   `json:"amount" binding:"required,gt=0"`
	InvoiceNumber string    `json:"invoice_number"`
	Description   string    `json:"description"`
	Paid          bool      `json:"paid"`
}

// ToLedger converts the payload to the domain type.
func (p ReceivablePayload) ToLedger() ledger.OpenReceivable {
	return ledger.OpenReceivable{
		ID:            p.ID,
		CustomerCode:  p.CustomerCode,
		CustomerName:  p.CustomerName,
		DueDate:       p.DueDate,
		Amount:        p.Amount,
		InvoiceNumber: p.InvoiceNumber,
		Description:   p.Description,
		Paid:          p.Paid,
	}
}

// ReceivableSyncRequest replaces or extends the local receivable snapshot.
type ReceivableSyncRequest struct {
	Receivables []ReceivablePayload `json:"receivables" binding:"required,min=1,dive"`
}
