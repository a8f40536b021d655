package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// Sink receives the products and statistics of a finished run.
type Sink interface {
	Store(ctx context.Context, products []*models.ProductRecord, stats *models.RunStats) error
}

// MultiSink fans a run out to several sinks. Every sink is attempted; the
// errors are joined.
type MultiSink []Sink

func (m MultiSink) Store(ctx context.Context, products []*models.ProductRecord, stats *models.RunStats) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Store(ctx, products, stats); err != nil {
			errs = append(errs, fmt.Errorf("sink %T: %w", sink, err))
		}
	}
	return errors.Join(errs...)
}
