package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCategoryURL = testBase + "/category.php?id=7"

func testCategory() models.Category {
	return models.Category{Name: "Displays", URL: testCategoryURL, Level: 1}
}

func productIDs(products []*models.ProductRecord) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		url  string
		page int
		want string
	}{
		{url: "https://shop.example/category/phones", page: 1, want: "https://shop.example/category/phones?page=1"},
		{url: "https://shop.example/category.php?id=3", page: 4, want: "https://shop.example/category.php?id=3&page=4"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PageURL(tt.url, tt.page))
	}
}

func TestCrawlCategory_StopsAfterThreeEmptyPages(t *testing.T) {
	f := newFakeFetcher()
	f.pages[PageURL(testCategoryURL, 1)] = listingHTML(1, 2)
	f.pages[PageURL(testCategoryURL, 2)] = listingHTML(3)
	f.pages[PageURL(testCategoryURL, 3)] = listingHTML(4, 5)
	f.pages[PageURL(testCategoryURL, 4)] = emptyListing
	f.pages[PageURL(testCategoryURL, 5)] = emptyListing
	f.pages[PageURL(testCategoryURL, 6)] = emptyListing
	f.pages[PageURL(testCategoryURL, 7)] = listingHTML(99)

	c := NewCrawler(f, CrawlOptions{MaxPages: 20}, testLogger())
	tally := &Tally{}

	products, err := c.CrawlCategory(context.Background(), testCategory(), tally)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, productIDs(products))
	assert.Len(t, f.requests(), 6)
	assert.False(t, f.fetched(PageURL(testCategoryURL, 7)))

	var stats models.RunStats
	tally.Apply(&stats)
	assert.Equal(t, 6, stats.PagesFetched)
	assert.Equal(t, 3, stats.EmptyPages)
}

func TestCrawlCategory_PagesInOrder(t *testing.T) {
	f := newFakeFetcher()
	for page := 1; page <= 3; page++ {
		f.pages[PageURL(testCategoryURL, page)] = listingHTML(page)
	}

	c := NewCrawler(f, CrawlOptions{MaxPages: 3}, testLogger())
	_, err := c.CrawlCategory(context.Background(), testCategory(), &Tally{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		PageURL(testCategoryURL, 1),
		PageURL(testCategoryURL, 2),
		PageURL(testCategoryURL, 3),
	}, f.requests())
}

func TestCrawlCategory_EmptyStreakResets(t *testing.T) {
	f := newFakeFetcher()
	f.pages[PageURL(testCategoryURL, 1)] = listingHTML(1)
	f.pages[PageURL(testCategoryURL, 2)] = emptyListing
	f.pages[PageURL(testCategoryURL, 3)] = emptyListing
	f.pages[PageURL(testCategoryURL, 4)] = listingHTML(2)

	c := NewCrawler(f, CrawlOptions{MaxPages: 20}, testLogger())
	products, err := c.CrawlCategory(context.Background(), testCategory(), &Tally{})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, productIDs(products))
	assert.Len(t, f.requests(), 7)
}

func TestCrawlCategory_TransportFailuresCountAsEmpty(t *testing.T) {
	f := newFakeFetcher()
	f.pages[PageURL(testCategoryURL, 1)] = listingHTML(1)
	f.errs[PageURL(testCategoryURL, 2)] = errors.New("connection reset")
	f.pages[PageURL(testCategoryURL, 3)] = listingHTML(2)
	f.status[PageURL(testCategoryURL, 3)] = http.StatusInternalServerError

	c := NewCrawler(f, CrawlOptions{MaxPages: 20}, testLogger())
	tally := &Tally{}
	products, err := c.CrawlCategory(context.Background(), testCategory(), tally)
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, productIDs(products))
	assert.Len(t, f.requests(), 4)
}

func TestCrawlCategory_PageCap(t *testing.T) {
	f := newFakeFetcher()
	for page := 1; page <= 5; page++ {
		f.pages[PageURL(testCategoryURL, page)] = listingHTML(page)
	}

	c := NewCrawler(f, CrawlOptions{MaxPages: 2}, testLogger())
	products, err := c.CrawlCategory(context.Background(), testCategory(), &Tally{})
	require.NoError(t, err)

	assert.Len(t, products, 2)
	assert.Len(t, f.requests(), 2)
}

func TestCrawlCategory_CountsExtractionErrors(t *testing.T) {
	f := newFakeFetcher()
	f.pages[PageURL(testCategoryURL, 1)] = `<div class="product-item"><a href="/goods.php?id=1">USB Cable</a></div>
		<div class="product-item"><span>no link</span></div>
		<div class="product-item"><span>no link either</span></div>`

	c := NewCrawler(f, CrawlOptions{MaxPages: 1}, testLogger())
	tally := &Tally{}
	products, err := c.CrawlCategory(context.Background(), testCategory(), tally)
	require.NoError(t, err)

	assert.Len(t, products, 1)
	var stats models.RunStats
	tally.Apply(&stats)
	assert.Equal(t, 2, stats.ExtractionErrors)
}

func TestCrawlCategory_DetailedScrape(t *testing.T) {
	f := newFakeFetcher()
	f.pages[PageURL(testCategoryURL, 1)] = listingHTML(1, 2, 3)
	f.pages[testBase+"/goods.php?id=1"] = `<div class="product-description">OEM display assembly</div>
		<p>Code: ECS000111</p>
		<table class="specifications"><tr><td>Color</td><td>Black</td></tr></table>`
	f.pages[testBase+"/goods.php?id=3"] = `<div class="description">Refurbished part</div>`

	c := NewCrawler(f, CrawlOptions{MaxPages: 1, DetailedScrape: true, MaxConcurrent: 2}, testLogger())
	tally := &Tally{}
	products, err := c.CrawlCategory(context.Background(), testCategory(), tally)
	require.NoError(t, err)

	require.Equal(t, []string{"1", "2", "3"}, productIDs(products))
	assert.Equal(t, "ECS000111", products[0].SourceCode)
	assert.Equal(t, "OEM display assembly", products[0].Description)
	assert.Equal(t, "Black", products[0].Specifications["Color"])

	assert.Equal(t, "2", products[1].SourceCode)
	assert.Empty(t, products[1].Description)

	assert.Equal(t, "Refurbished part", products[2].Description)

	var stats models.RunStats
	tally.Apply(&stats)
	assert.Equal(t, 1, stats.DetailErrors)
}

func TestCrawlCategory_Cancelled(t *testing.T) {
	f := newFakeFetcher()
	f.pages[PageURL(testCategoryURL, 1)] = listingHTML(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCrawler(f, CrawlOptions{MaxPages: 20}, testLogger())
	products, err := c.CrawlCategory(ctx, testCategory(), &Tally{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, products)
	assert.Empty(t, f.requests())
}

func TestCrawlCategory_InvalidURL(t *testing.T) {
	c := NewCrawler(newFakeFetcher(), CrawlOptions{}, testLogger())

	_, err := c.CrawlCategory(context.Background(), models.Category{Name: "Broken", URL: "not a url"}, &Tally{})
	assert.ErrorIs(t, err, ErrInvalidCategoryURL)
}
