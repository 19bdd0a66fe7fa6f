package scoring

import (
	"math"
	"strings"

	"bank-reconciliation-backend/internal/domain/normalize"
)

// Levenshtein computes the edit distance between two strings, rune-wise.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}

	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minOf(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// StringSimilarity converts the edit distance between the normalized forms
// of a and b into a similarity in [0,1]: 1 - distance/max(len1,len2).
// Two empty strings have similarity 0, not 1: an absent field must never
// raise a score.
func StringSimilarity(a, b string) float64 {
	na := normalize.Normalize(a)
	nb := normalize.Normalize(b)

	maxLen := math.Max(float64(len([]rune(na))), float64(len([]rune(nb))))
	if maxLen == 0 {
		return 0
	}

	return 1 - float64(Levenshtein(na, nb))/maxLen
}

// TokenSimilarity splits both normalized strings on whitespace and, for each
// token of the shorter side, looks for any token on the other side with
// similarity at or above floor. The score is the matched count over the
// larger token count.
func TokenSimilarity(a, b string, floor float64) float64 {
	tokensA := strings.Fields(normalize.Normalize(a))
	tokensB := strings.Fields(normalize.Normalize(b))
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	shorter, longer := tokensA, tokensB
	if len(tokensB) < len(tokensA) {
		shorter, longer = tokensB, tokensA
	}

	matched := 0
	for _, tok := range shorter {
		for _, other := range longer {
			if tokenSim(tok, other) >= floor {
				matched++
				break
			}
		}
	}

	return float64(matched) / math.Max(float64(len(tokensA)), float64(len(tokensB)))
}

// tokenSim compares two already-normalized tokens.
func tokenSim(a, b string) float64 {
	maxLen := math.Max(float64(len([]rune(a))), float64(len([]rune(b))))
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(Levenshtein(a, b))/maxLen
}

func minOf(a, b, c int) int {
	if a < b && a < c {
		return a
	}
	if b < c {
		return b
	}
	return c
}
