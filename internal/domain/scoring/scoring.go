// Package scoring implements the family of independent match scorers.
//
// Each scorer maps a (movement, receivable) pair to a confidence in [0,1]
// along with the named factors that contributed. Amounts are compared on
// the movement's absolute value, since statement credits and receivable
// amounts carry opposite sign conventions across banks.
package scoring

import (
	"math"
	"strings"
	"time"

	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/domain/normalize"
)

// ExactMatch scores strict correspondence on all four dimensions:
// amount equality (0.40), description/customer-name containment (0.30),
// reference/invoice-number containment (0.20) and date proximity within
// five days (up to 0.10). The weights sum to 1.0.
func ExactMatch(m ledger.BankMovement, r ledger.OpenReceivable, opts Options) Result {
	var res Result

	// r.Amount > 0 by invariant; a zero amount on either side means the
	// field is absent and must not count as an exact hit.
	if diff := amountDiff(m, r); r.Amount > 0 && m.Amount != 0 && diff <= opts.ExactAmountTolerance {
		res.Score += 0.40
		res.Reasons = append(res.Reasons, ReasonExactAmount)
	}

	desc := normalize.Normalize(m.Description)
	name := normalize.Normalize(r.CustomerName)
	if containsEither(desc, name) {
		res.Score += 0.30
		res.Reasons = append(res.Reasons, ReasonExactDescription)
	}

	ref := normalize.Normalize(m.Reference)
	invoice := normalize.Normalize(r.InvoiceNumber)
	if containsEither(ref, invoice) {
		res.Score += 0.20
		res.Reasons = append(res.Reasons, ReasonExactReference)
	}

	window := float64(opts.ExactDateWindowDays)
	if days := dateDistanceDays(m.TransactionDate, r.DueDate); window > 0 && days <= window {
		res.Score += 0.10 * (1 - days/window)
		res.Reasons = append(res.Reasons, ReasonDateProximity)
	}

	return res
}

// FuzzyMatch scores approximate correspondence: a linear amount term over a
// relative tolerance band (0.35), description similarity counted only above
// its floor (0.40·similarity), reference similarity above its floor
// (0.15·similarity), and date proximity within fifteen days (up to 0.10).
func FuzzyMatch(m ledger.BankMovement, r ledger.OpenReceivable, opts Options) Result {
	var res Result

	tolerance := opts.FuzzyAmountTolerance * r.Amount
	if diff := amountDiff(m, r); tolerance > 0 && diff <= tolerance {
		res.Score += 0.35 * (1 - diff/tolerance)
		res.Reasons = append(res.Reasons, ReasonFuzzyAmount)
	}

	if sim := descriptionSimilarity(m.Description, r.CustomerName, opts); sim >= opts.DescriptionSimilarityFloor {
		res.Score += 0.40 * sim
		res.Reasons = append(res.Reasons, ReasonFuzzyDescription)
	}

	if sim := StringSimilarity(m.Reference, r.InvoiceNumber); sim >= opts.ReferenceSimilarityFloor {
		res.Score += 0.15 * sim
		res.Reasons = append(res.Reasons, ReasonFuzzyReference)
	}

	window := float64(opts.FuzzyDateWindowDays)
	if days := dateDistanceDays(m.TransactionDate, r.DueDate); window > 0 && days <= window {
		res.Score += 0.10 * (1 - days/window)
		res.Reasons = append(res.Reasons, ReasonDateProximity)
	}

	return res
}

// AmountMatch scores linearly over a relative amount band and 0 outside it.
// AmountMatch(a, a) is always 1 for a > 0.
func AmountMatch(m ledger.BankMovement, r ledger.OpenReceivable, opts Options) Result {
	band := opts.AmountBandTolerance * math.Max(math.Abs(m.Amount), r.Amount)
	if band <= 0 {
		return Result{}
	}

	diff := amountDiff(m, r)
	if diff > band {
		return Result{}
	}

	return Result{
		Score:   1 - diff/band,
		Reasons: []string{ReasonAmountProximity},
	}
}

// DateMatch scores linearly over a thirty-day window and 0 outside it.
func DateMatch(m ledger.BankMovement, r ledger.OpenReceivable, opts Options) Result {
	window := float64(opts.DateWindowDays)
	if window <= 0 {
		return Result{}
	}

	days := dateDistanceDays(m.TransactionDate, r.DueDate)
	if days > window {
		return Result{}
	}

	return Result{
		Score:   1 - days/window,
		Reasons: []string{ReasonDateProximity},
	}
}

// CombinedMatch takes the better of the exact score with a 10% bonus and the
// fuzzy score, clamped to 1.0 so the universal [0,1] invariant holds. The
// bonus rewards exact hits without letting the combined score exceed what an
// operator would read as certainty.
func CombinedMatch(m ledger.BankMovement, r ledger.OpenReceivable, opts Options) Result {
	exact := ExactMatch(m, r, opts)
	fuzzy := FuzzyMatch(m, r, opts)

	boosted := exact.Score * 1.1
	if boosted >= fuzzy.Score {
		return Result{Score: math.Min(boosted, 1.0), Reasons: exact.Reasons}
	}
	return fuzzy
}

// amountDiff compares the movement's absolute amount against the receivable
// amount.
func amountDiff(m ledger.BankMovement, r ledger.OpenReceivable) float64 {
	return math.Abs(math.Abs(m.Amount) - r.Amount)
}

// descriptionSimilarity compares a free-text movement description with a
// customer display name: token overlap for multi-word names, plain edit
// distance as a fallback for short ones.
func descriptionSimilarity(description, customerName string, opts Options) float64 {
	return math.Max(
		TokenSimilarity(description, customerName, opts.TokenSimilarityFloor),
		StringSimilarity(description, customerName),
	)
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func dateDistanceDays(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return math.Inf(1)
	}
	return math.Abs(a.Sub(b).Hours() / 24)
}
