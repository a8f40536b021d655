package parser

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"european thousands and decimals", "1.234,56", 1234.56},
		{"comma decimal", "12,50", 12.50},
		{"three digits after comma", "12,500", 12.5},
		{"comma thousands", "1,234567", 1234567},
		{"us thousands", "1,234.56", 1234.56},
		{"plain decimal", "12.50", 12.50},
		{"currency prefix", "€199,99", 199.99},
		{"currency suffix", "45,00 EUR", 45},
		{"integer", "199", 199},
		{"letters", "abc", 0},
		{"empty", "", 0},
		{"dots only", "...", 0},
		{"ambiguous dots", "1.234.567", 0},
		{"multiple comma groups", "1.234.567,89", 1234567.89},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizePrice(tt.input), 1e-9)
		})
	}
}

func TestNormalizePrice_Idempotent(t *testing.T) {
	for _, in := range []string{"12.5", "1234.56", "0.99", "199"} {
		t.Run(in, func(t *testing.T) {
			first := NormalizePrice(in)
			second := NormalizePrice(strconv.FormatFloat(first, 'f', -1, 64))
			assert.Equal(t, first, second)
		})
	}
}
