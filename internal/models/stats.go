package models

import (
	"time"
)

// RunStats summarizes one orchestrator run.
type RunStats struct {
	RunID             string    `json:"run_id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	DurationSeconds   float64   `json:"duration_seconds"`
	CategoriesFound   int       `json:"categories_found"`
	CategoriesCrawled int       `json:"categories_crawled"`
	CategoryErrors    int       `json:"category_errors"`
	PagesFetched      int       `json:"pages_fetched"`
	EmptyPages        int       `json:"empty_pages"`
	ProductsScraped   int       `json:"products_scraped"`
	DuplicatesDropped int       `json:"duplicates_dropped"`
	ExtractionErrors  int       `json:"extraction_errors"`
	DetailErrors      int       `json:"detail_errors"`
	ErrorCount        int       `json:"errors_count"`
	ProductsPerSecond float64   `json:"products_per_second"`
	TimedOut          bool      `json:"timed_out"`
}

// Finish stamps the end time and derives duration, error count and throughput.
func (s *RunStats) Finish(at time.Time) {
	s.FinishedAt = at
	s.DurationSeconds = at.Sub(s.StartedAt).Seconds()
	s.ErrorCount = s.CategoryErrors + s.ExtractionErrors
	if s.DurationSeconds > 0 {
		s.ProductsPerSecond = float64(s.ProductsScraped) / s.DurationSeconds
	}
}
