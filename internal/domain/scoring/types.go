package scoring

import "bank-reconciliation-backend/internal/domain/ledger"

// Algorithm names a scoring strategy.
type Algorithm string

const (
	AlgorithmExact    Algorithm = "exact"
	AlgorithmFuzzy    Algorithm = "fuzzy"
	AlgorithmAmount   Algorithm = "amount"
	AlgorithmDate     Algorithm = "date"
	AlgorithmCombined Algorithm = "combined"
)

// Reason names the contributing factors of a score. Reasons are
// operator-facing explanation only and never feed back into scoring.
const (
	ReasonExactAmount      = "exact_amount"
	ReasonExactDescription = "exact_description"
	ReasonExactReference   = "exact_reference"
	ReasonFuzzyAmount      = "fuzzy_amount"
	ReasonFuzzyDescription = "fuzzy_description"
	ReasonFuzzyReference   = "fuzzy_reference"
	ReasonAmountProximity  = "amount_proximity"
	ReasonDateProximity    = "date_proximity"
)

// Options holds the tolerances and windows used by the scorers.
type Options struct {
	// ExactAmountTolerance is the absolute difference under which two
	// amounts count as equal. Default: 0.01.
	ExactAmountTolerance float64

	// FuzzyAmountTolerance is the relative tolerance band of the fuzzy
	// amount term, as a fraction of the receivable amount. Default: 0.02.
	FuzzyAmountTolerance float64

	// AmountBandTolerance is the relative band of the amount-only scorer,
	// as a fraction of the larger amount. Default: 0.05.
	AmountBandTolerance float64

	// ExactDateWindowDays / FuzzyDateWindowDays / DateWindowDays are the
	// date-proximity windows of the exact, fuzzy and date-only scorers.
	// Defaults: 5, 15 and 30 days.
	ExactDateWindowDays int
	FuzzyDateWindowDays int
	DateWindowDays      int

	// DescriptionSimilarityFloor is the minimum description/customer-name
	// similarity counted by the fuzzy scorer. Default: 0.6.
	DescriptionSimilarityFloor float64

	// ReferenceSimilarityFloor is the minimum reference/invoice-number
	// similarity counted by the fuzzy scorer. Default: 0.7.
	ReferenceSimilarityFloor float64

	// TokenSimilarityFloor is the per-token similarity under which two
	// tokens are not considered a match. Default: 0.8.
	TokenSimilarityFloor float64
}

// DefaultOptions returns the standard tolerances.
func DefaultOptions() Options {
	return Options{
		ExactAmountTolerance:       0.01,
		FuzzyAmountTolerance:       0.02,
		AmountBandTolerance:        0.05,
		ExactDateWindowDays:        5,
		FuzzyDateWindowDays:        15,
		DateWindowDays:             30,
		DescriptionSimilarityFloor: 0.6,
		ReferenceSimilarityFloor:   0.7,
		TokenSimilarityFloor:       0.8,
	}
}

// Result is the outcome of scoring one (movement, receivable) pair.
type Result struct {
	Score   float64
	Reasons []string
}

// Scorer maps a (movement, receivable) pair to a score in [0,1].
// Scorers are pure: they never mutate input, never fail, and degrade
// absent or invalid fields to a contribution of 0.
type Scorer func(m ledger.BankMovement, r ledger.OpenReceivable, opts Options) Result

// ForAlgorithm returns the scorer registered under the given name.
func ForAlgorithm(alg Algorithm) (Scorer, bool) {
	switch alg {
	case AlgorithmExact:
		return ExactMatch, true
	case AlgorithmFuzzy:
		return FuzzyMatch, true
	case AlgorithmAmount:
		return AmountMatch, true
	case AlgorithmDate:
		return DateMatch, true
	case AlgorithmCombined:
		return CombinedMatch, true
	default:
		return nil, false
	}
}
