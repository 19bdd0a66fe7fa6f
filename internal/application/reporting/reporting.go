// Package reporting computes the dashboard-level counts and rates from
// persisted reconciliation records.
package reporting

import (
	"context"
	"fmt"
	"sort"

	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/infrastructure/storage"
)

// Stats are the aggregate reconciliation figures shown on the dashboard.
type Stats struct {
	Counts storage.RecordStats `json:"counts"`

	// MatchRate is (matched+approved)/total as a percentage.
	MatchRate float64 `json:"match_rate"`

	// AutoApprovalRate is the share of engine-created records (those that
	// reached matched or approved) that were approved without manual
	// creation, as a percentage.
	AutoApprovalRate float64 `json:"auto_approval_rate"`
}

// Dashboard bundles the operator landing-page data.
type Dashboard struct {
	PendingReview         []ledger.ReconciliationRecord `json:"pending_review"`
	RecentDecisions       []ledger.ReconciliationRecord `json:"recent_decisions"`
	UnreconciledMovements []ledger.BankMovement         `json:"unreconciled_movements"`
	Stats                 Stats                         `json:"stats"`
}

// Service assembles reporting views from the repository.
type Service struct {
	store storage.Repository
}

// NewService creates a reporting service.
func NewService(store storage.Repository) *Service {
	return &Service{store: store}
}

// Stats computes the aggregate rates. Both rates are 0 when their
// denominator is 0, never NaN.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.GetReconciliationStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconciliation stats: %w", err)
	}

	stats := &Stats{Counts: *counts}
	if counts.Total > 0 {
		stats.MatchRate = float64(counts.Matched+counts.Approved) / float64(counts.Total) * 100
	}
	if engineRecords := counts.Matched + counts.Approved - counts.Manual; engineRecords > 0 {
		stats.AutoApprovalRate = float64(counts.AutoApproved) / float64(engineRecords) * 100
	}
	return stats, nil
}

// Dashboard assembles the decidable queue, the recent decisions, the
// movements still waiting for reconciliation and the stats. limit bounds
// each list; 0 means the default of 20.
func (s *Service) Dashboard(ctx context.Context, limit int) (*Dashboard, error) {
	if limit <= 0 {
		limit = 20
	}

	pending, err := s.decidableQueue(ctx, limit)
	if err != nil {
		return nil, err
	}

	recent, err := s.recentDecisions(ctx, limit)
	if err != nil {
		return nil, err
	}

	unreconciled := false
	movements, err := s.store.ListBankMovements(ctx, storage.MovementFilters{
		Reconciled: &unreconciled,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard movements: %w", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		PendingReview:         pending,
		RecentDecisions:       recent,
		UnreconciledMovements: movements,
		Stats:                 *stats,
	}, nil
}

// decidableQueue returns pending and matched records awaiting a decision,
// most recent first.
func (s *Service) decidableQueue(ctx context.Context, limit int) ([]ledger.ReconciliationRecord, error) {
	var queue []ledger.ReconciliationRecord
	for _, status := range []ledger.RecordStatus{ledger.StatusMatched, ledger.StatusPending} {
		records, err := s.store.ListReconciliationRecords(ctx, storage.RecordFilters{
			Status: status,
			Limit:  limit,
		})
		if err != nil {
			return nil, fmt.Errorf("dashboard queue: %w", err)
		}
		queue = append(queue, records...)
	}
	sortRecordsByCreatedAtDesc(queue)
	if len(queue) > limit {
		queue = queue[:limit]
	}
	return queue, nil
}

// recentDecisions returns approved and rejected records, most recently
// decided first.
func (s *Service) recentDecisions(ctx context.Context, limit int) ([]ledger.ReconciliationRecord, error) {
	var decisions []ledger.ReconciliationRecord
	for _, status := range []ledger.RecordStatus{ledger.StatusApproved, ledger.StatusRejected} {
		records, err := s.store.ListReconciliationRecords(ctx, storage.RecordFilters{
			Status: status,
			Limit:  limit,
		})
		if err != nil {
			return nil, fmt.Errorf("dashboard decisions: %w", err)
		}
		decisions = append(decisions, records...)
	}
	sort.SliceStable(decisions, func(i, j int) bool {
		ti, tj := decisions[i].CreatedAt, decisions[j].CreatedAt
		if decisions[i].ApprovedAt != nil {
			ti = *decisions[i].ApprovedAt
		}
		if decisions[j].ApprovedAt != nil {
			tj = *decisions[j].ApprovedAt
		}
		return ti.After(tj)
	})
	if len(decisions) > limit {
		decisions = decisions[:limit]
	}
	return decisions, nil
}

func sortRecordsByCreatedAtDesc(records []ledger.ReconciliationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
