package dto

import (
	"bank-reconciliation-backend/internal/application/importer"
	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/infrastructure/storage"
)

// RecordListResponse wraps a list of reconciliation records.
type RecordListResponse struct {
	Records []ledger.ReconciliationRecord `json:"records"`
	Count   int                           `json:"count"`
}

// MovementListResponse wraps a list of bank movements.
type MovementListResponse struct {
	Movements []ledger.BankMovement `json:"movements"`
	Count     int                   `json:"count"`
}

// ReceivableListResponse wraps a list of open receivables.
type ReceivableListResponse struct {
	Receivables []ledger.OpenReceivable `json:"receivables"`
	Count       int                     `json:"count"`
}

// ImportRunListResponse wraps a list of import runs.
type ImportRunListResponse struct {
	Runs  []storage.ImportRun `json:"runs"`
	Count int                 `json:"count"`
}

// ImportResponse wraps the result of an import batch.
type ImportResponse struct {
	RunID    string              `json:"run_id"`
	Stats    importer.BatchStats `json:"stats"`
	Outcomes []importer.Outcome  `json:"outcomes"`
}

// SyncResponse reports how many receivables were loaded.
type SyncResponse struct {
	Loaded int `json:"loaded"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
