package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
	"github.com/maltedev/catalog-scraper/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

// MaxConsecutiveEmptyPages ends a category crawl after this many pages in a
// row without products.
const MaxConsecutiveEmptyPages = 3

type CrawlOptions struct {
	MaxPages       int
	RequestDelay   time.Duration
	DetailedScrape bool
	DetailDelay    time.Duration
	MaxConcurrent  int
}

// Crawler walks the pagination of one category at a time over a shared
// session.
type Crawler struct {
	fetcher       Fetcher
	parser        *parser.CatalogParser
	opts          CrawlOptions
	detailLimiter ratelimit.RateLimiter
	logger        *slog.Logger
}

func NewCrawler(fetcher Fetcher, opts CrawlOptions, logger *slog.Logger) *Crawler {
	if opts.MaxPages < 1 {
		opts.MaxPages = 20
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Crawler{
		fetcher:       fetcher,
		parser:        parser.NewCatalogParser(),
		opts:          opts,
		detailLimiter: ratelimit.NewSimpleRateLimiter(opts.DetailDelay, opts.DetailDelay),
		logger:        logger.With("component", "crawler"),
	}
}

// PageURL appends the page parameter to a category URL.
func PageURL(categoryURL string, page int) string {
	sep := "?"
	if strings.Contains(categoryURL, "?") {
		sep = "&"
	}
	return categoryURL + sep + "page=" + strconv.Itoa(page)
}

// CrawlCategory fetches pages in increasing order until the page cap or
// MaxConsecutiveEmptyPages empty pages in a row. Transport failures count as
// empty pages. On cancellation it returns what was collected with ctx.Err().
func (c *Crawler) CrawlCategory(ctx context.Context, category models.Category, tally *Tally) ([]*models.ProductRecord, error) {
	if _, err := url.ParseRequestURI(category.URL); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategoryURL, category.URL)
	}

	logger := c.logger.With("category", category.Name)
	logger.Info("crawling category", "url", category.URL)

	var products []*models.ProductRecord
	empty := 0

	for page := 1; page <= c.opts.MaxPages && empty < MaxConsecutiveEmptyPages; page++ {
		if err := ctx.Err(); err != nil {
			return products, err
		}

		found, err := c.crawlPage(ctx, PageURL(category.URL, page), tally, logger)
		products = append(products, found...)
		if err != nil {
			return products, err
		}

		if len(found) == 0 {
			empty++
			tally.EmptyPage()
			logger.Debug("empty page", "page", page, "consecutive", empty)
		} else {
			empty = 0
			logger.Info("page crawled", "page", page, "products", len(found))
		}

		if err := ratelimit.Sleep(ctx, c.opts.RequestDelay); err != nil {
			return products, err
		}
	}

	logger.Info("category crawled", "products", len(products))
	return products, nil
}

// crawlPage returns the products of one listing page. Only context errors are
// returned; every other failure yields an empty page.
func (c *Crawler) crawlPage(ctx context.Context, pageURL string, tally *Tally, logger *slog.Logger) ([]*models.ProductRecord, error) {
	tally.PageFetched()

	resp, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("failed to fetch page", "url", pageURL, "error", err)
		return nil, nil
	}
	if !resp.OK() {
		logger.Warn("page returned non-success status", "url", pageURL, "status", resp.StatusCode)
		return nil, nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil
	}

	listing, err := c.parser.ParseListing(strings.NewReader(resp.Body), base)
	if err != nil {
		logger.Warn("failed to parse page", "url", pageURL, "error", err)
		return nil, nil
	}

	if len(listing.Failures) > 0 {
		tally.ExtractionErrors(len(listing.Failures))
		logger.Debug("containers skipped", "url", pageURL, "count", len(listing.Failures))
	}

	products := listing.Products

	if c.opts.DetailedScrape && len(products) > 0 {
		if err := c.enrich(ctx, products, tally, logger); err != nil {
			return products, err
		}
	}

	return products, nil
}

// enrich merges detail pages into products in place. Products keep their
// order; a failed detail fetch leaves the listing fields untouched.
func (c *Crawler) enrich(ctx context.Context, products []*models.ProductRecord, tally *Tally, logger *slog.Logger) error {
	var g errgroup.Group
	g.SetLimit(c.opts.MaxConcurrent)

	for _, product := range products {
		g.Go(func() error {
			if err := c.detailLimiter.Wait(ctx); err != nil {
				return err
			}

			detail, err := c.fetchDetail(ctx, product.ProductURL)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				tally.DetailError()
				logger.Debug("failed to fetch product detail", "url", product.ProductURL, "error", err)
				return nil
			}

			parser.MergeDetail(product, detail)
			return nil
		})
	}

	return g.Wait()
}

func (c *Crawler) fetchDetail(ctx context.Context, productURL string) (*parser.Detail, error) {
	resp, err := c.fetcher.Fetch(ctx, productURL)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("detail page returned status %d", resp.StatusCode)
	}

	base, err := url.Parse(productURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product url: %w", err)
	}

	return c.parser.ParseDetail(strings.NewReader(resp.Body), base)
}
