// Package matching runs the selected scorers over a movement and a
// candidate set of receivables, then ranks, deduplicates and truncates the
// results.
//
// The engine is pure CPU-bound computation with no I/O: callers are
// responsible for bounding the candidate set (date window, amount band)
// before invoking it.
package matching

import (
	"sort"

	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/domain/scoring"
)

// Match is one ranked candidate pairing for a movement.
type Match struct {
	Receivable ledger.OpenReceivable `json:"receivable"`
	Score      float64               `json:"score"`
	Algorithm  scoring.Algorithm     `json:"algorithm"`
	Reasons    []string              `json:"reasons"`
}

// Options controls a FindMatches run.
type Options struct {
	// Algorithms to evaluate for every candidate. Default: combined.
	Algorithms []scoring.Algorithm

	// MinScore filters out candidates scoring below it. Default: 0.7.
	MinScore float64

	// MaxMatches truncates the ranked result list. Default: 5.
	MaxMatches int

	// Exclude holds receivable IDs that must not be considered, e.g.
	// receivables already claimed earlier in the same import batch.
	Exclude map[string]bool
}

// DefaultOptions returns the standard engine parameters.
func DefaultOptions() Options {
	return Options{
		Algorithms: []scoring.Algorithm{scoring.AlgorithmCombined},
		MinScore:   0.7,
		MaxMatches: 5,
	}
}

// Engine scores and ranks receivable candidates for bank movements.
type Engine struct {
	scoringOpts scoring.Options
}

// NewEngine creates an engine with the given scoring tolerances.
func NewEngine(scoringOpts scoring.Options) *Engine {
	return &Engine{scoringOpts: scoringOpts}
}

// FindMatches evaluates every (receivable, algorithm) pair, keeps scores at
// or above MinScore, sorts descending (ties keep encounter order),
// deduplicates by receivable identity keeping the highest-scoring
// occurrence, and truncates to MaxMatches.
//
// A receivable never appears twice in the result, even when several
// algorithms matched it.
func (e *Engine) FindMatches(movement ledger.BankMovement, receivables []ledger.OpenReceivable, opts Options) []Match {
	algorithms := opts.Algorithms
	if len(algorithms) == 0 {
		algorithms = DefaultOptions().Algorithms
	}
	maxMatches := opts.MaxMatches
	if maxMatches <= 0 {
		maxMatches = DefaultOptions().MaxMatches
	}

	var candidates []Match
	for _, receivable := range receivables {
		if receivable.Paid || opts.Exclude[receivable.ID] {
			continue
		}
		for _, alg := range algorithms {
			scorer, ok := scoring.ForAlgorithm(alg)
			if !ok {
				continue
			}
			res := scorer(movement, receivable, e.scoringOpts)
			if res.Score < opts.MinScore {
				continue
			}
			candidates = append(candidates, Match{
				Receivable: receivable,
				Score:      res.Score,
				Algorithm:  alg,
				Reasons:    res.Reasons,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	seen := make(map[string]bool, len(candidates))
	matches := make([]Match, 0, maxMatches)
	for _, c := range candidates {
		if seen[c.Receivable.ID] {
			continue
		}
		seen[c.Receivable.ID] = true
		matches = append(matches, c)
		if len(matches) == maxMatches {
			break
		}
	}

	return matches
}
