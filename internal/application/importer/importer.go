// Package importer orchestrates reconciliation import batches: upsert the
// statement movements, fetch the receivable universe once, run the match
// engine per movement and create workflow records from the top matches.
//
// At most one import runs at a time. Scoring itself is stateless, but the
// persistence of "movement reconciled" is shared mutable state, so two
// overlapping batches could claim the same receivable twice.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/domain/matching"
	"bank-reconciliation-backend/internal/domain/scoring"
	"bank-reconciliation-backend/internal/infrastructure/storage"
)

// ReceivableSource supplies the candidate universe for a batch. The SQLite
// store implements it over the locally replicated receivable snapshot.
type ReceivableSource interface {
	ListOpenReceivables(ctx context.Context, filters storage.ReceivableFilters) ([]ledger.OpenReceivable, error)
}

// RecordCreator is the workflow dependency of the pipeline.
type RecordCreator interface {
	CreateFromMatch(ctx context.Context, movement ledger.BankMovement, match matching.Match, createdBy string) (*ledger.ReconciliationRecord, error)
}

// Options controls one import batch.
type Options struct {
	// Algorithms, MinScore and MaxMatches pass through to the engine.
	// Zero values fall back to the engine defaults.
	Algorithms []scoring.Algorithm
	MinScore   float64
	MaxMatches int

	// DateFrom/DateTo and MinAmount bound the receivable universe fetched
	// for the batch.
	DateFrom  *time.Time
	DateTo    *time.Time
	MinAmount *float64

	// UserID is recorded as the creator of the run and its records.
	UserID string
}

// OutcomeStatus classifies what happened to one movement in a batch.
type OutcomeStatus string

const (
	OutcomeMatched   OutcomeStatus = "matched"
	OutcomeUnmatched OutcomeStatus = "unmatched"
	OutcomeSkipped   OutcomeStatus = "skipped" // already reconciled
	OutcomeError     OutcomeStatus = "error"
)

// Outcome is the per-movement result of a batch.
type Outcome struct {
	MovementExternalID string                       `json:"movement_external_id"`
	Status             OutcomeStatus                `json:"status"`
	Record             *ledger.ReconciliationRecord `json:"record,omitempty"`
	Candidates         []matching.Match             `json:"candidates,omitempty"`
	Error              string                       `json:"error,omitempty"`
}

// BatchStats rolls up a batch.
type BatchStats struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
}

// Result is the full outcome of RunImport.
type Result struct {
	RunID    string     `json:"run_id"`
	Outcomes []Outcome  `json:"outcomes"`
	Stats    BatchStats `json:"stats"`
}

// Pipeline runs reconciliation import batches.
type Pipeline struct {
	store       storage.Repository
	receivables ReceivableSource
	engine      *matching.Engine
	workflow    RecordCreator
	logger      *slog.Logger

	mu sync.Mutex
}

// NewPipeline creates an import pipeline. A nil receivable source falls back
// to the store itself.
func NewPipeline(store storage.Repository, receivables ReceivableSource, engine *matching.Engine, workflow RecordCreator, logger *slog.Logger) *Pipeline {
	if receivables == nil {
		receivables = store
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:       store,
		receivables: receivables,
		engine:      engine,
		workflow:    workflow,
		logger:      logger,
	}
}

// RunImport processes one batch of movements. A concurrent call while a
// batch is running returns ErrImportInProgress immediately. Per-movement
// failures are captured as error outcomes and the batch continues; only
// batch-level failures (upsert, universe fetch) abort the run.
func (p *Pipeline) RunImport(ctx context.Context, movements []ledger.BankMovement, opts Options) (*Result, error) {
	if !p.mu.TryLock() {
		return nil, fmt.Errorf("reconciliation import: %w", apperrors.ErrImportInProgress)
	}
	defer p.mu.Unlock()

	if len(movements) == 0 {
		return nil, fmt.Errorf("no movements to import: %w", apperrors.ErrValidation)
	}

	createdBy := opts.UserID
	if createdBy == "" {
		createdBy = "system"
	}

	run := &storage.ImportRun{
		ID:             uuid.NewString(),
		StartedAt:      time.Now().UTC(),
		TotalMovements: len(movements),
		CreatedBy:      createdBy,
	}
	if err := p.store.StartImportRun(ctx, run); err != nil {
		return nil, fmt.Errorf("start import run: %w", err)
	}

	p.logger.Info("import started",
		"run_id", run.ID,
		"movements", len(movements),
		"user", createdBy,
	)

	if err := p.store.UpsertBankMovements(ctx, movements); err != nil {
		return nil, fmt.Errorf("import run %s: %w", run.ID, err)
	}

	universe, err := p.receivables.ListOpenReceivables(ctx, storage.ReceivableFilters{
		DateFrom:  opts.DateFrom,
		DateTo:    opts.DateTo,
		MinAmount: opts.MinAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("import run %s: fetch receivables: %w", run.ID, err)
	}

	engineOpts := matching.DefaultOptions()
	if len(opts.Algorithms) > 0 {
		engineOpts.Algorithms = opts.Algorithms
	}
	if opts.MinScore > 0 {
		engineOpts.MinScore = opts.MinScore
	}
	if opts.MaxMatches > 0 {
		engineOpts.MaxMatches = opts.MaxMatches
	}
	// Receivables claimed earlier in this batch are excluded for the rest
	// of it, so one receivable never backs two movements.
	engineOpts.Exclude = make(map[string]bool)

	result := &Result{RunID: run.ID}
	for _, movement := range movements {
		outcome := p.processMovement(ctx, movement, universe, engineOpts, createdBy)
		result.Outcomes = append(result.Outcomes, outcome)

		result.Stats.Total++
		switch outcome.Status {
		case OutcomeMatched:
			result.Stats.Matched++
		case OutcomeUnmatched:
			result.Stats.Unmatched++
		case OutcomeSkipped:
			result.Stats.Skipped++
		case OutcomeError:
			result.Stats.Errored++
		}
	}

	if err := p.store.CompleteImportRun(ctx, run.ID,
		result.Stats.Matched, result.Stats.Unmatched, result.Stats.Errored); err != nil {
		p.logger.Warn("complete import run failed", "run_id", run.ID, "error", err)
	}

	p.logger.Info("import completed",
		"run_id", run.ID,
		"matched", result.Stats.Matched,
		"unmatched", result.Stats.Unmatched,
		"skipped", result.Stats.Skipped,
		"errored", result.Stats.Errored,
	)
	return result, nil
}

func (p *Pipeline) processMovement(ctx context.Context, movement ledger.BankMovement, universe []ledger.OpenReceivable, engineOpts matching.Options, createdBy string) Outcome {
	outcome := Outcome{MovementExternalID: movement.ExternalID}

	stored, err := p.store.GetBankMovement(ctx, movement.ExternalID)
	if err != nil {
		outcome.Status = OutcomeError
		outcome.Error = err.Error()
		return outcome
	}
	if stored != nil && stored.Reconciled {
		outcome.Status = OutcomeSkipped
		return outcome
	}

	matches := p.engine.FindMatches(movement, universe, engineOpts)
	if len(matches) == 0 {
		if err := p.store.SetMovementStatus(ctx, movement.ExternalID, ledger.MovementUnmatched); err != nil {
			outcome.Status = OutcomeError
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Status = OutcomeUnmatched
		return outcome
	}

	best := matches[0]
	record, err := p.workflow.CreateFromMatch(ctx, movement, best, createdBy)
	if err != nil {
		p.logger.Warn("record creation failed",
			"movement_id", movement.ExternalID, "error", err)
		outcome.Status = OutcomeError
		outcome.Error = err.Error()
		return outcome
	}

	if err := p.store.SetMovementStatus(ctx, movement.ExternalID, ledger.MovementMatched); err != nil {
		outcome.Status = OutcomeError
		outcome.Error = err.Error()
		return outcome
	}

	engineOpts.Exclude[best.Receivable.ID] = true
	outcome.Status = OutcomeMatched
	outcome.Record = record
	outcome.Candidates = matches
	return outcome
}

// LoadReceivables replaces or extends the local receivable snapshot. It is
// the ingestion side of the ReceivableSource collaborator: replication from
// the external ledger happens outside, this just stores what it sent.
func (p *Pipeline) LoadReceivables(ctx context.Context, receivables []ledger.OpenReceivable) (int, error) {
	if len(receivables) == 0 {
		return 0, fmt.Errorf("no receivables to load: %w", apperrors.ErrValidation)
	}
	for _, r := range receivables {
		if r.ID == "" {
			return 0, fmt.Errorf("receivable without id: %w", apperrors.ErrValidation)
		}
		if r.Amount <= 0 {
			return 0, fmt.Errorf("receivable %s: non-positive amount: %w", r.ID, apperrors.ErrValidation)
		}
	}
	if err := p.store.UpsertOpenReceivables(ctx, receivables); err != nil {
		return 0, fmt.Errorf("load receivables: %w", err)
	}
	p.logger.Info("receivable snapshot loaded", "count", len(receivables))
	return len(receivables), nil
}
