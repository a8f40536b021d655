package scraper

import (
	"context"
	"errors"
	"net/url"

	"github.com/maltedev/catalog-scraper/internal/fetch"
	"github.com/maltedev/catalog-scraper/internal/models"
)

var (
	ErrAuthentication     = errors.New("authentication failed")
	ErrNoCategories       = errors.New("no categories discovered")
	ErrInvalidCategoryURL = errors.New("invalid category url")
)

// Fetcher is the transport the crawl depends on. Non-2xx responses are
// returned as responses, not errors.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*fetch.Response, error)
	SubmitForm(ctx context.Context, target string, fields url.Values) (*fetch.Response, error)
}

// Session is a Fetcher owned by one run and closed when it ends.
type Session interface {
	Fetcher
	Close() error
}

// SessionFactory opens a fresh session per run.
type SessionFactory func(ctx context.Context) (Session, error)

// CategoryCrawler walks one category. It returns whatever it collected, plus
// an error when the crawl was cut short.
type CategoryCrawler interface {
	CrawlCategory(ctx context.Context, category models.Category, tally *Tally) ([]*models.ProductRecord, error)
}
