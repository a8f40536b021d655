package scraper

import (
	"sync/atomic"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// Tally accumulates counters for a single run. It is passed explicitly to the
// components of that run and is safe for concurrent use.
type Tally struct {
	pagesFetched      atomic.Int64
	emptyPages        atomic.Int64
	extractionErrors  atomic.Int64
	detailErrors      atomic.Int64
	categoriesCrawled atomic.Int64
	categoryErrors    atomic.Int64
}

func (t *Tally) PageFetched()     { t.pagesFetched.Add(1) }
func (t *Tally) EmptyPage()       { t.emptyPages.Add(1) }
func (t *Tally) DetailError()     { t.detailErrors.Add(1) }
func (t *Tally) CategoryCrawled() { t.categoriesCrawled.Add(1) }
func (t *Tally) CategoryError()   { t.categoryErrors.Add(1) }

func (t *Tally) ExtractionErrors(n int) { t.extractionErrors.Add(int64(n)) }

// Apply copies the counters onto stats.
func (t *Tally) Apply(stats *models.RunStats) {
	stats.PagesFetched = int(t.pagesFetched.Load())
	stats.EmptyPages = int(t.emptyPages.Load())
	stats.ExtractionErrors = int(t.extractionErrors.Load())
	stats.DetailErrors = int(t.detailErrors.Load())
	stats.CategoriesCrawled = int(t.categoriesCrawled.Load())
	stats.CategoryErrors = int(t.categoryErrors.Load())
}
