package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/maltedev/catalog-scraper/internal/app"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/jobs"
	"github.com/maltedev/catalog-scraper/internal/observability"
	"github.com/maltedev/catalog-scraper/internal/storage"
	"github.com/maltedev/catalog-scraper/pkg/logger"
)

func main() {
	var (
		maxCategories = flag.Int("max-categories", 0, "Maximum number of categories to crawl (0 uses MAX_CATEGORIES)")
		maxPages      = flag.Int("max-pages", 0, "Maximum pages per category (0 uses MAX_PAGES_PER_CATEGORY)")
		detailed      = flag.String("detailed", "", "Override DETAILED_SCRAPE: true or false")
		output        = flag.String("out", "", "Output file (defaults to a timestamped file in OUTPUT_DIR)")
		timeout       = flag.Duration("timeout", 0, "Overall run timeout (0 uses RUN_TIMEOUT)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *timeout > 0 {
		cfg.Scraper.RunTimeout = *timeout
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	params := jobs.RunParams{MaxCategories: *maxCategories, MaxPages: *maxPages}
	if *detailed != "" {
		v, err := strconv.ParseBool(*detailed)
		if err != nil {
			log.Fatalf("Invalid -detailed value %q: %v", *detailed, err)
		}
		params.Detailed = &v
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks, closeSinks, err := app.OpenExternalSinks(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open sinks", "error", err)
		os.Exit(1)
	}
	defer closeSinks()

	logger.Info("starting catalog scrape",
		"site", cfg.Site.BaseURL,
		"fetch_mode", cfg.Scraper.FetchMode,
		"run_timeout", cfg.Scraper.RunTimeout,
	)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	result, runErr := app.NewOrchestrator(cfg, params, metrics, logger).Run(ctx)
	if result == nil {
		logger.Error("scrape failed", "error", runErr)
		closeSinks()
		os.Exit(1)
	}
	if errors.Is(runErr, context.Canceled) {
		logger.Warn("scrape interrupted, exporting partial results", "products", len(result.Products))
	}

	// The run context may already be cancelled; exports still complete.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	exporter := storage.NewJSONExporter(cfg.Export.OutputDir, cfg.Site.BaseURL, logger)
	path := *output
	if path != "" {
		err = exporter.ExportTo(path, result.Products, result.Stats)
	} else {
		path, err = exporter.Export(result.Products, result.Stats)
	}
	if err != nil {
		logger.Error("failed to export products", "error", err)
		closeSinks()
		os.Exit(1)
	}

	if err := sinks.Store(storeCtx, result.Products, result.Stats); err != nil {
		logger.Error("failed to store run", "error", err)
	}

	s := result.Stats
	logger.Info("scrape finished",
		"run_id", s.RunID,
		"output", path,
		"categories_found", s.CategoriesFound,
		"categories_crawled", s.CategoriesCrawled,
		"products", s.ProductsScraped,
		"duplicates_dropped", s.DuplicatesDropped,
		"pages_fetched", s.PagesFetched,
		"errors", s.ErrorCount,
		"timed_out", s.TimedOut,
		"duration_seconds", s.DurationSeconds,
	)
}
