package scraper

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
)

const (
	MaxDiscoveredCategories = 50
	maxCategoryNameLen      = 100
	maxCategoryLevel        = 3
	highPriorityWeight      = 10
	mediumPriorityWeight    = 5
	nameLengthBonus         = 3
)

var (
	categorySelectors = []string{
		`div.categories a[href*="category"]`,
		`ul.category-menu a`,
		`nav a[href*="category"]`,
		`.sidebar a[href*="category"]`,
		`a[href*="goods.php"]`,
		`a[href*="category"]`,
	}

	categoryLinkKeywords = []string{"category", "goods", "repair", "phone", "tablet"}

	highPriorityKeywords = []string{
		"iphone", "samsung", "huawei", "xiaomi", "apple",
		"screen", "display", "battery", "repair parts",
	}

	mediumPriorityKeywords = []string{"phone", "mobile", "smartphone", "android", "ios"}
)

// Discoverer finds the category navigation of a landing page.
type Discoverer struct{}

func NewDiscoverer() *Discoverer {
	return &Discoverer{}
}

// Discover parses a landing page and returns its categories.
func (d *Discoverer) Discover(body io.Reader, base *url.URL) ([]models.Category, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse landing page: %w", err)
	}
	return d.DiscoverDocument(doc, base), nil
}

// DiscoverDocument returns at most MaxDiscoveredCategories categories sorted by
// descending priority. Duplicates by name or resolved URL keep the first
// link encountered; equal priorities keep document order.
func (d *Discoverer) DiscoverDocument(doc *goquery.Document, base *url.URL) []models.Category {
	links := categoryLinks(doc)

	seenNames := make(map[string]bool)
	seenURLs := make(map[string]bool)
	categories := make([]models.Category, 0)

	links.Each(func(_ int, link *goquery.Selection) {
		href := strings.TrimSpace(link.AttrOr("href", ""))
		name := strings.TrimSpace(link.Text())
		if href == "" || name == "" || utf8.RuneCountInString(name) > maxCategoryNameLen {
			return
		}
		if skipHref(href) {
			return
		}

		resolved, ok := parser.ResolveURL(base, href)
		if !ok || seenNames[name] || seenURLs[resolved] {
			return
		}
		seenNames[name] = true
		seenURLs[resolved] = true

		categories = append(categories, models.Category{
			Name:     name,
			URL:      resolved,
			Level:    nestingLevel(link),
			Priority: Priority(name, href),
		})
	})

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Priority > categories[j].Priority
	})

	if len(categories) > MaxDiscoveredCategories {
		categories = categories[:MaxDiscoveredCategories]
	}
	return categories
}

func categoryLinks(doc *goquery.Document) *goquery.Selection {
	if found := parser.FirstMatching(doc.Selection, categorySelectors); found != nil {
		return found
	}

	return doc.Find("a[href]").FilterFunction(func(_ int, link *goquery.Selection) bool {
		href := strings.ToLower(link.AttrOr("href", ""))
		for _, keyword := range categoryLinkKeywords {
			if strings.Contains(href, keyword) {
				return true
			}
		}
		return false
	})
}

func skipHref(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "#") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:")
}

func nestingLevel(link *goquery.Selection) int {
	level := link.ParentsFiltered("ul, li, div").Length()
	if level > maxCategoryLevel {
		return maxCategoryLevel
	}
	return level
}

// Priority scores a category link by keyword hits in its name or href.
func Priority(name, href string) int {
	nameLower := strings.ToLower(name)
	hrefLower := strings.ToLower(href)

	hits := func(keywords []string) int {
		n := 0
		for _, keyword := range keywords {
			if strings.Contains(nameLower, keyword) || strings.Contains(hrefLower, keyword) {
				n++
			}
		}
		return n
	}

	priority := highPriorityWeight*hits(highPriorityKeywords) + mediumPriorityWeight*hits(mediumPriorityKeywords)

	if n := utf8.RuneCountInString(name); n >= 5 && n <= 20 {
		priority += nameLengthBonus
	}
	return priority
}
