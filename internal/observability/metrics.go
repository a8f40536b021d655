package observability

import (
	"errors"
	"net/http"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog_scraper"

const (
	StatusSuccess      = "success"
	StatusTimeout      = "timeout"
	StatusAuthFailed   = "auth_failed"
	StatusNoCategories = "no_categories"
	StatusFailed       = "failed"
)

// Metrics holds the run collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal             *prometheus.CounterVec
	PagesFetchedTotal     prometheus.Counter
	EmptyPagesTotal       prometheus.Counter
	ProductsScrapedTotal  prometheus.Counter
	ExtractionErrorsTotal prometheus.Counter
	CategoryErrorsTotal   prometheus.Counter
	RunDuration           prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scrape runs by final status.",
		}, []string{"status"}),
		PagesFetchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Listing pages requested.",
		}),
		EmptyPagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_pages_total",
			Help:      "Listing pages that yielded no products.",
		}),
		ProductsScrapedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_scraped_total",
			Help:      "Unique products collected.",
		}),
		ExtractionErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_errors_total",
			Help:      "Product containers skipped because extraction failed.",
		}),
		CategoryErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_errors_total",
			Help:      "Categories skipped because their crawl failed.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of scrape runs.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.PagesFetchedTotal,
		m.EmptyPagesTotal,
		m.ProductsScrapedTotal,
		m.ExtractionErrorsTotal,
		m.CategoryErrorsTotal,
		m.RunDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(stats *models.RunStats, err error) {
	if m == nil {
		return
	}

	m.RunsTotal.WithLabelValues(RunStatus(stats, err)).Inc()
	if stats == nil {
		return
	}

	m.PagesFetchedTotal.Add(float64(stats.PagesFetched))
	m.EmptyPagesTotal.Add(float64(stats.EmptyPages))
	m.ProductsScrapedTotal.Add(float64(stats.ProductsScraped))
	m.ExtractionErrorsTotal.Add(float64(stats.ExtractionErrors))
	m.CategoryErrorsTotal.Add(float64(stats.CategoryErrors))
	m.RunDuration.Observe(stats.DurationSeconds)
}

// RunStatus maps a run outcome to its status label.
func RunStatus(stats *models.RunStats, err error) string {
	switch {
	case errors.Is(err, scraper.ErrAuthentication):
		return StatusAuthFailed
	case errors.Is(err, scraper.ErrNoCategories):
		return StatusNoCategories
	case err != nil:
		return StatusFailed
	case stats != nil && stats.TimedOut:
		return StatusTimeout
	default:
		return StatusSuccess
	}
}
