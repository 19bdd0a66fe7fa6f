// Package ledger defines the core data types shared by the matching,
// workflow and reporting services: bank movements imported from statement
// files, open receivables replicated from the external ledger, and the
// reconciliation records linking the two.
package ledger

import "time"

// MovementStatus tracks where a bank movement sits in the reconciliation
// lifecycle. It is derived state maintained by the import pipeline and the
// workflow, used for dashboard filtering.
type MovementStatus string

const (
	MovementPending    MovementStatus = "pending"
	MovementMatched    MovementStatus = "matched"
	MovementUnmatched  MovementStatus = "unmatched"
	MovementReconciled MovementStatus = "reconciled"
)

// RecordStatus is the reconciliation record state machine.
//
// pending and matched are non-terminal and await an operator decision.
// approved and rejected are terminal; rejected records are kept for audit
// but do not claim the movement.
type RecordStatus string

const (
	StatusPending  RecordStatus = "pending"
	StatusMatched  RecordStatus = "matched"
	StatusApproved RecordStatus = "approved"
	StatusRejected RecordStatus = "rejected"
)

// MatchType identifies which algorithm produced a reconciliation record.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchFuzzy    MatchType = "fuzzy"
	MatchAmount   MatchType = "amount"
	MatchDate     MatchType = "date"
	MatchCombined MatchType = "combined"
	MatchManual   MatchType = "manual"
)

// BankMovement is one imported bank-statement line.
//
// ExternalID is the unique identity provided by the source file (or
// generated at parse time). Movements are upserted idempotently by that key
// and never deleted; Reconciled and ReconciliationID are mutated only by the
// workflow's approval step.
type BankMovement struct {
	ExternalID      string         `json:"external_id"`
	AccountNumber   string         `json:"account_number"`
	TransactionDate time.Time      `json:"transaction_date"`
	ValueDate       time.Time      `json:"value_date"`
	Amount          float64        `json:"amount"` // signed: credits positive, debits negative
	Description     string         `json:"description"`
	Reference       string         `json:"reference"`
	TransactionType string         `json:"transaction_type"`
	Counterpart     string         `json:"counterpart"`
	Reconciled      bool           `json:"reconciled"`
	ReconciliationID *string       `json:"reconciliation_id,omitempty"`
	Status          MovementStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}

// OpenReceivable is an unpaid due item owed by a customer, sourced from the
// external ledger. The matching core treats it as immutable, read-only input
// for the lifetime of a run.
type OpenReceivable struct {
	ID            string    `json:"id"`
	CustomerCode  string    `json:"customer_code"`
	CustomerName  string    `json:"customer_name"`
	DueDate       time.Time `json:"due_date"`
	Amount        float64   `json:"amount"` // always positive
	InvoiceNumber string    `json:"invoice_number"`
	Description   string    `json:"description"`
	Paid          bool      `json:"paid"`
}

// ReconciliationRecord is the durable outcome of a match decision.
//
// Movement and receivable fields are snapshots taken at decision time, so
// later edits to either side cannot silently alter history. ApprovedBy and
// ApprovedAt record the deciding operator for both approve and reject.
type ReconciliationRecord struct {
	ID string `json:"id"`

	MovementExternalID  string    `json:"movement_external_id"`
	MovementDate        time.Time `json:"movement_date"`
	MovementAmount      float64   `json:"movement_amount"`
	MovementDescription string    `json:"movement_description"`
	MovementReference   string    `json:"movement_reference"`

	ReceivableID     string  `json:"receivable_id"`
	CustomerCode     string  `json:"customer_code"`
	InvoiceNumber    string  `json:"invoice_number"`
	ReceivableAmount float64 `json:"receivable_amount"`

	MatchScore float64      `json:"match_score"` // in [0,1]
	MatchType  MatchType    `json:"match_type"`
	Status     RecordStatus `json:"status"`
	Notes      string       `json:"notes,omitempty"`

	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

// Decidable reports whether the record still awaits an operator decision.
func (r *ReconciliationRecord) Decidable() bool {
	return r.Status == StatusPending || r.Status == StatusMatched
}
