package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"lowercases", "PAGAMENTO FATTURA", "pagamento fattura"},
		{"strips diacritics", "Società Àcme È", "societa acme e"},
		{"collapses punctuation runs", "ACME  S.R.L. -- bonifico", "acme s r l bonifico"},
		{"trims edges", "  *** ACME ***  ", "acme"},
		{"keeps digits", "FT-2024/001", "ft 2024 001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"PAGAMENTO RISTORANTE DA MARIO",
		"Società Àcme S.p.A. -- REF 12345",
		"   mixed   CASE   with  runs!!  ",
	}

	for _, s := range inputs {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", s)
	}
}

func TestExtractNumbers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []float64
	}{
		{"empty", "", nil},
		{"no digits", "bonifico ordinario", nil},
		{"integers in order", "FT 2024 n. 17", []float64{2024, 17}},
		{"decimal point", "importo 1250.50 eur", []float64{1250.50}},
		{"mixed", "rif 123 saldo 45.5 del 2024", []float64{123, 45.5, 2024}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractNumbers(tt.input))
		})
	}
}

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"letters plus digits", "PAGAMENTO FT2024001 BONIFICO", []string{"FT2024001"}},
		{"bare digit run", "rif. 20240117", []string{"20240117"}},
		{"single letter code", "fattura F123", []string{"F123"}},
		{"digits then letters", "ordine 17INV cliente", []string{"17INV"}},
		{"deduplicated", "FT2024001 e ancora FT2024001", []string{"FT2024001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractReferences(tt.input))
		})
	}
}

func TestExtractReferences_RunsOnOriginalCase(t *testing.T) {
	// Uppercase letter runs must be detected before any lowercasing.
	refs := ExtractReferences("PAGAMENTO AB1234")
	assert.Contains(t, refs, "AB1234")

	// The same string lowercased loses the uppercase-run pattern.
	assert.Empty(t, ExtractReferences("pagamento ab1234"))
}
