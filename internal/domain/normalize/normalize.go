// Package normalize provides the string and number canonicalization
// utilities shared by all match scorers.
//
// All functions are pure and total: empty or absent input yields an empty
// result, never an error.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes characters and drops combining marks, so
// "società" normalizes the same as "societa".
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// Patterns typical of document codes in bank descriptions.
	// Applied to the original-case string: lowercasing first would break
	// the uppercase letter-run detection.
	referencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`[A-Z]{2,}\d{3,}`),    // FT2024001
		regexp.MustCompile(`\b\d{4,}\b`),         // 20240117
		regexp.MustCompile(`\b[A-Za-z]\d{2,}\b`), // F123
		regexp.MustCompile(`\b\d{2,}[A-Za-z]{2,}\b`), // 17INV
	}
)

// Normalize lowercases, strips diacritics, replaces any run of
// non-alphanumeric characters with a single space and trims. Idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}

	return b.String()
}

// ExtractNumbers returns every maximal digit run, optionally with one
// decimal point, as a numeric sequence in order of appearance.
func ExtractNumbers(s string) []float64 {
	if s == "" {
		return nil
	}

	var numbers []float64
	for _, raw := range numberPattern.FindAllString(s, -1) {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers
}

// ExtractReferences returns the de-duplicated union of substrings matching
// patterns typical of document codes (invoice numbers, payment references),
// in order of first appearance.
func ExtractReferences(s string) []string {
	if s == "" {
		return nil
	}

	seen := make(map[string]bool)
	var refs []string
	for _, pattern := range referencePatterns {
		for _, match := range pattern.FindAllString(s, -1) {
			if seen[match] {
				continue
			}
			seen[match] = true
			refs = append(refs, match)
		}
	}
	return refs
}
