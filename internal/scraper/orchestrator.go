package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/ratelimit"
)

// RunObserver receives the statistics of every finished run.
type RunObserver interface {
	ObserveRun(stats *models.RunStats, err error)
}

type Options struct {
	BaseURL       string
	MaxCategories int
	CategoryDelay time.Duration
	RunTimeout    time.Duration
	Crawl         CrawlOptions
}

// Result is the output of one run. Products are deduplicated by ID and keep
// crawl order.
type Result struct {
	Products []*models.ProductRecord
	Stats    *models.RunStats
}

// Orchestrator sequences login, category discovery and the category crawls of
// a run.
type Orchestrator struct {
	sessions   SessionFactory
	auth       *Authenticator
	discoverer *Discoverer
	opts       Options
	observer   RunObserver
	logger     *slog.Logger

	newCrawler func(Fetcher) CategoryCrawler
	now        func() time.Time
}

func NewOrchestrator(sessions SessionFactory, auth *Authenticator, opts Options, observer RunObserver, logger *slog.Logger) *Orchestrator {
	if opts.MaxCategories < 1 {
		opts.MaxCategories = 10
	}
	logger = logger.With("component", "orchestrator")

	o := &Orchestrator{
		sessions:   sessions,
		auth:       auth,
		discoverer: NewDiscoverer(),
		opts:       opts,
		observer:   observer,
		logger:     logger,
		now:        time.Now,
	}
	o.newCrawler = func(f Fetcher) CategoryCrawler {
		return NewCrawler(f, opts.Crawl, logger)
	}
	return o
}

// Run performs one full scrape. Authentication failures and an empty
// category list are fatal and return a nil Result. Otherwise the Result holds
// everything collected; a run cut short by RunTimeout is marked TimedOut and
// returns no error, while cancellation of ctx is returned alongside the
// partial Result.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	stats := &models.RunStats{
		RunID:     uuid.NewString(),
		StartedAt: o.now().UTC(),
	}
	logger := o.logger.With("run_id", stats.RunID)
	logger.Info("starting scrape run", "site", o.opts.BaseURL)

	runCtx := ctx
	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	result, err := o.run(runCtx, stats, logger)

	stats.Finish(o.now().UTC())
	if o.observer != nil {
		o.observer.ObserveRun(stats, err)
	}

	if err != nil {
		logger.Error("scrape run failed", "error", err, "duration_seconds", stats.DurationSeconds)
		return result, err
	}

	logger.Info("scrape run completed",
		"products", stats.ProductsScraped,
		"categories_found", stats.CategoriesFound,
		"errors", stats.ErrorCount,
		"duration_seconds", stats.DurationSeconds,
		"products_per_second", stats.ProductsPerSecond,
		"timed_out", stats.TimedOut,
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, stats *models.RunStats, logger *slog.Logger) (*Result, error) {
	session, err := o.sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close session", "error", err)
		}
	}()

	if o.auth != nil {
		if err := o.auth.Login(ctx, session); err != nil {
			return nil, err
		}
	}

	categories, err := o.discover(ctx, session)
	if err != nil {
		return nil, err
	}
	stats.CategoriesFound = len(categories)
	logger.Info("categories discovered", "count", len(categories))

	if len(categories) > o.opts.MaxCategories {
		categories = categories[:o.opts.MaxCategories]
	}

	tally := &Tally{}
	crawler := o.newCrawler(session)
	collector := newCollector()

	for i, category := range categories {
		if ctx.Err() != nil {
			break
		}
		logger.Info("crawling category", "index", i+1, "total", len(categories), "category", category.Name)

		products, err := o.crawlSafely(ctx, crawler, category, tally)
		if err != nil && ctx.Err() == nil {
			tally.CategoryError()
			logger.Error("category crawl failed, skipping", "category", category.Name, "error", err, "discarded", len(products))
		} else {
			for _, product := range products {
				product.Category = category.Name
				product.Subcategory = fmt.Sprintf("Level %d", category.Level)
			}
			collector.add(products)

			if err != nil {
				break
			}
			tally.CategoryCrawled()
			logger.Info("category completed", "category", category.Name, "products", len(products))
		}

		if i < len(categories)-1 {
			if err := ratelimit.Sleep(ctx, o.opts.CategoryDelay); err != nil {
				break
			}
		}
	}

	tally.Apply(stats)
	stats.ProductsScraped = len(collector.products)
	stats.DuplicatesDropped = collector.duplicates

	result := &Result{Products: collector.products, Stats: stats}

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			stats.TimedOut = true
			logger.Warn("run timeout reached, returning partial results", "products", len(collector.products))
			return result, nil
		}
		return result, err
	}

	return result, nil
}

func (o *Orchestrator) discover(ctx context.Context, session Fetcher) ([]models.Category, error) {
	resp, err := session.Fetch(ctx, o.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load landing page: %v", ErrNoCategories, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: landing page returned status %d", ErrNoCategories, resp.StatusCode)
	}

	base, err := url.Parse(o.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %v", ErrNoCategories, err)
	}

	categories, err := o.discoverer.Discover(strings.NewReader(resp.Body), base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCategories, err)
	}
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}
	return categories, nil
}

func (o *Orchestrator) crawlSafely(ctx context.Context, crawler CategoryCrawler, category models.Category, tally *Tally) (products []*models.ProductRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while crawling %s: %v", category.Name, r)
		}
	}()
	return crawler.CrawlCategory(ctx, category, tally)
}

type collector struct {
	products   []*models.ProductRecord
	seen       map[string]bool
	duplicates int
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

func (c *collector) add(products []*models.ProductRecord) {
	for _, product := range products {
		if product == nil {
			continue
		}
		if c.seen[product.ID] {
			c.duplicates++
			continue
		}
		c.seen[product.ID] = true
		c.products = append(c.products, product)
	}
}
