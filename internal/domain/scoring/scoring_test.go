package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bank-reconciliation-backend/internal/domain/ledger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Fixture pair used by the scenario tests: a restaurant payment that lines
// up with its receivable on every dimension.
func perfectPair() (ledger.BankMovement, ledger.OpenReceivable) {
	movement := ledger.BankMovement{
		ExternalID:      "mov-1",
		Amount:          1250.50,
		Description:     "PAGAMENTO RISTORANTE DA MARIO",
		Reference:       "FT2024",
		TransactionDate: day(2024, 2, 14),
	}
	receivable := ledger.OpenReceivable{
		ID:            "rcv-1",
		CustomerName:  "Ristorante Da Mario",
		InvoiceNumber: "FT2024",
		Amount:        1250.50,
		DueDate:       day(2024, 2, 14),
	}
	return movement, receivable
}

func TestExactMatch_AllComponentsHit(t *testing.T) {
	movement, receivable := perfectPair()

	res := ExactMatch(movement, receivable, DefaultOptions())

	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.ElementsMatch(t, []string{
		ReasonExactAmount,
		ReasonExactDescription,
		ReasonExactReference,
		ReasonDateProximity,
	}, res.Reasons)
}

func TestExactMatch_AmountOffByThreePercent(t *testing.T) {
	movement, receivable := perfectPair()
	movement.Amount = receivable.Amount * 1.03

	res := ExactMatch(movement, receivable, DefaultOptions())

	// Loses only the 0.40 amount term: 0.30 + 0.20 + 0.10 remain.
	assert.InDelta(t, 0.60, res.Score, 1e-9)
	assert.NotContains(t, res.Reasons, ReasonExactAmount)
}

func TestFuzzyMatch_AmountOffByThreePercent(t *testing.T) {
	movement, receivable := perfectPair()
	movement.Amount = receivable.Amount * 1.03

	res := FuzzyMatch(movement, receivable, DefaultOptions())

	// 3% is outside the default 2% tolerance band, so the amount term is 0.
	// Description tokens: 3 of max(4,3) match -> 0.40*0.75 = 0.30.
	// Reference similarity 1.0 -> 0.15. Date distance 0 -> 0.10.
	assert.InDelta(t, 0.55, res.Score, 1e-9)
	assert.NotContains(t, res.Reasons, ReasonFuzzyAmount)
	assert.Contains(t, res.Reasons, ReasonFuzzyDescription)
	assert.Contains(t, res.Reasons, ReasonFuzzyReference)
}

func TestFuzzyMatch_AmountWithinTolerance(t *testing.T) {
	movement, receivable := perfectPair()
	movement.Amount = receivable.Amount * 1.01 // half way into the 2% band

	res := FuzzyMatch(movement, receivable, DefaultOptions())

	assert.Contains(t, res.Reasons, ReasonFuzzyAmount)
	// Amount term: 0.35 * (1 - 0.5) = 0.175; plus 0.30 + 0.15 + 0.10.
	assert.InDelta(t, 0.725, res.Score, 1e-9)
}

func TestAmountMatch_Properties(t *testing.T) {
	opts := DefaultOptions()

	for _, amount := range []float64{0.5, 100, 1250.50, 99999.99} {
		m := ledger.BankMovement{Amount: amount}
		r := ledger.OpenReceivable{Amount: amount}
		assert.InDelta(t, 1.0, AmountMatch(m, r, opts).Score, 1e-9,
			"equal amounts must score 1, amount=%v", amount)
	}

	// Outside the 5% band of the larger amount the score is exactly 0.
	m := ledger.BankMovement{Amount: 100}
	r := ledger.OpenReceivable{Amount: 106}
	assert.Zero(t, AmountMatch(m, r, opts).Score)

	// Halfway through the band the score is linear.
	m = ledger.BankMovement{Amount: 100}
	r = ledger.OpenReceivable{Amount: 102.5}
	res := AmountMatch(m, r, opts)
	band := opts.AmountBandTolerance * 102.5
	assert.InDelta(t, 1-2.5/band, res.Score, 1e-9)
}

func TestDateMatch_Window(t *testing.T) {
	opts := DefaultOptions()
	m := ledger.BankMovement{TransactionDate: day(2024, 2, 14)}

	r := ledger.OpenReceivable{DueDate: day(2024, 2, 14)}
	assert.InDelta(t, 1.0, DateMatch(m, r, opts).Score, 1e-9)

	r.DueDate = day(2024, 2, 29) // 15 days
	assert.InDelta(t, 0.5, DateMatch(m, r, opts).Score, 1e-9)

	r.DueDate = day(2024, 4, 1) // beyond 30 days
	assert.Zero(t, DateMatch(m, r, opts).Score)
}

func TestCombinedMatch_ClampedToOne(t *testing.T) {
	movement, receivable := perfectPair()

	res := CombinedMatch(movement, receivable, DefaultOptions())

	// A perfect exact score boosted by 10% would be 1.1; the combined
	// scorer clamps to keep every score inside [0,1].
	assert.InDelta(t, 1.0, res.Score, 1e-9)
}

func TestCombinedMatch_FallsBackToFuzzy(t *testing.T) {
	movement, receivable := perfectPair()
	movement.Amount = receivable.Amount * 1.01
	movement.Description = "BONIFICO RISTORANTI DA MARIO SALDO"
	movement.Reference = ""

	exact := ExactMatch(movement, receivable, DefaultOptions())
	fuzzy := FuzzyMatch(movement, receivable, DefaultOptions())
	combined := CombinedMatch(movement, receivable, DefaultOptions())

	if fuzzy.Score > exact.Score*1.1 {
		assert.InDelta(t, fuzzy.Score, combined.Score, 1e-9)
		assert.Equal(t, fuzzy.Reasons, combined.Reasons)
	} else {
		assert.InDelta(t, exact.Score*1.1, combined.Score, 1e-9)
	}
}

func TestScorers_BoundsAndZeroValues(t *testing.T) {
	opts := DefaultOptions()
	movement, receivable := perfectPair()
	empty := ledger.BankMovement{}

	for _, alg := range []Algorithm{AlgorithmExact, AlgorithmFuzzy, AlgorithmAmount, AlgorithmDate, AlgorithmCombined} {
		scorer, ok := ForAlgorithm(alg)
		assert.True(t, ok, "algorithm %s must be registered", alg)

		res := scorer(movement, receivable, opts)
		assert.GreaterOrEqual(t, res.Score, 0.0, "%s lower bound", alg)
		assert.LessOrEqual(t, res.Score, 1.0, "%s upper bound", alg)

		// Absent fields degrade to 0, never an error or panic.
		assert.Zero(t, scorer(empty, ledger.OpenReceivable{}, opts).Score, "%s zero values", alg)
	}

	_, ok := ForAlgorithm("nonsense")
	assert.False(t, ok)
}

func TestStringSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, StringSimilarity("Ristorante Da Mario", "RISTORANTE DA MARIO"), 1e-9)
	assert.Zero(t, StringSimilarity("", ""))
	assert.Less(t, StringSimilarity("acme srl", "completely different"), 0.5)

	// One substitution over ten runes.
	assert.InDelta(t, 0.9, StringSimilarity("ristorante", "ristoranti"), 1e-9)
}

func TestTokenSimilarity(t *testing.T) {
	// Both tokens of the shorter side find a near-identical counterpart.
	sim := TokenSimilarity("PAGAMENTO RISTORANTI MARIO", "Ristorante Mario", 0.8)
	assert.InDelta(t, 2.0/3.0, sim, 1e-9)

	assert.Zero(t, TokenSimilarity("", "acme", 0.8))
	assert.Zero(t, TokenSimilarity("acme", "", 0.8))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"mario", "mario", 0},
		{"mario", "maria", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
