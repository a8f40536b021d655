package models

import (
	"go/format"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductRecord(t *testing.T) {
	p := NewProductRecord("iPhone 12 Pro", "https://shop.example/goods.php?id=7")

	assert.Equal(t, UnknownGrade, p.ConditionGrade)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, 1, p.MinOrderQuantity)
	assert.NotNil(t, p.Images)
	assert.NotNil(t, p.Specifications)
	assert.False(t, p.ScrapedAt.IsZero())
}

func TestProductRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ProductRecord)
		want   []string
	}{
		{
			name:   "valid record",
			mutate: func(p *ProductRecord) {},
			want:   nil,
		},
		{
			name:   "missing id",
			mutate: func(p *ProductRecord) { p.ID = "" },
			want:   []string{"ID is required"},
		},
		{
			name:   "inverted prices",
			mutate: func(p *ProductRecord) { p.PriceCurrent = 30 },
			want:   []string{"PriceCurrent exceeds PriceOriginal"},
		},
		{
			name:   "out of stock with quantity",
			mutate: func(p *ProductRecord) { p.InStock = false; p.StockQuantity = 3 },
			want:   []string{"StockQuantity must be 0 when out of stock"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProductRecord("Galaxy S21 screen", "https://shop.example/p/12")
			p.ID = "12"
			p.PriceOriginal = 20
			p.PriceCurrent = 10
			p.InStock = true
			p.StockQuantity = 5
			tt.mutate(p)

			assert.Equal(t, tt.want, p.Validate())
		})
	}
}

func TestRunStats_Finish(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := &RunStats{
		StartedAt:        start,
		ProductsScraped:  40,
		CategoryErrors:   1,
		ExtractionErrors: 2,
	}

	s.Finish(start.Add(20 * time.Second))

	assert.Equal(t, 20.0, s.DurationSeconds)
	assert.Equal(t, 3, s.ErrorCount)
	assert.Equal(t, 2.0, s.ProductsPerSecond)
}

func TestRunStats_FinishZeroDuration(t *testing.T) {
	start := time.Now()
	s := &RunStats{StartedAt: start, ProductsScraped: 4}

	s.Finish(start)

	assert.Zero(t, s.ProductsPerSecond)
}

func TestSourceIsFormatted(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		src, err := os.ReadFile(file)
		require.NoError(t, err)

		formatted, err := format.Source(src)
		require.NoError(t, err)
		assert.Equal(t, string(formatted), string(src), "%s is not gofmt-formatted", file)
	}
}
