package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
)

var (
	descriptionSelectors = []string{
		".product-description",
		".description",
		".product-details",
		`div[class*="desc"]`,
		`p[class*="desc"]`,
	}

	specTableSelectors = []string{
		"table.specifications",
		"table.specs",
		"table.details",
	}
)

// Detail carries the fields only a product's own page provides.
type Detail struct {
	Code           string
	Description    string
	Specifications map[string]string
	Images         []string
}

// ListingPage is the outcome of parsing one listing page.
type ListingPage struct {
	Products []*models.ProductRecord
	Failures []error
}

// ParseListing parses a listing page body into product records. Containers
// that fail extraction or validation are reported in Failures and skipped.
func (p *CatalogParser) ParseListing(body io.Reader, pageURL *url.URL) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &ListingPage{}
	p.FindContainers(doc).Each(func(_ int, container *goquery.Selection) {
		product, err := p.ExtractProduct(container, pageURL)
		if err == nil {
			err = checkRecord(product)
		}
		if err != nil {
			page.Failures = append(page.Failures, err)
			return
		}
		page.Products = append(page.Products, product)
	})

	return page, nil
}

func checkRecord(product *models.ProductRecord) error {
	if problems := product.Validate(); len(problems) > 0 {
		return fmt.Errorf("%w %s: %s", ErrInvalidRecord, product.ID, strings.Join(problems, "; "))
	}
	return nil
}

// ParseDetail extracts code, description, specifications and images from a
// product page.
func (p *CatalogParser) ParseDetail(body io.Reader, pageURL *url.URL) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return p.ExtractDetail(doc, pageURL), nil
}

func (p *CatalogParser) ExtractDetail(doc *goquery.Document, pageURL *url.URL) *Detail {
	detail := &Detail{
		Code:           p.extractCode(doc.Text()),
		Specifications: make(map[string]string),
		Images:         p.ExtractImages(doc.Selection, pageURL),
	}

	if desc, ok := FirstOf(doc.Selection, textStrategies(descriptionSelectors)...); ok {
		detail.Description = desc
	}

	if specs, ok := FirstOf(doc.Selection, specTableStrategies()...); ok {
		detail.Specifications = specs
	}

	return detail
}

func (p *CatalogParser) extractCode(text string) string {
	for _, pattern := range p.codePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 1 {
			return m[1]
		}
		return m[0]
	}
	return ""
}

func textStrategies(selectors []string) []Strategy[string] {
	strategies := make([]Strategy[string], 0, len(selectors))
	for _, selector := range selectors {
		strategies = append(strategies, func(sel *goquery.Selection) (string, bool) {
			text := strings.TrimSpace(sel.Find(selector).First().Text())
			return text, text != ""
		})
	}
	return strategies
}

func specTableStrategies() []Strategy[map[string]string] {
	strategies := make([]Strategy[map[string]string], 0, len(specTableSelectors))
	for _, selector := range specTableSelectors {
		strategies = append(strategies, func(sel *goquery.Selection) (map[string]string, bool) {
			table := sel.Find(selector).First()
			if table.Length() == 0 {
				return nil, false
			}
			specs := readSpecRows(table)
			return specs, len(specs) > 0
		})
	}
	return strategies
}

func readSpecRows(table *goquery.Selection) map[string]string {
	specs := make(map[string]string)
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		key := cleanText(cells.Eq(0).Text())
		value := cleanText(cells.Eq(1).Text())
		if key != "" && value != "" {
			specs[key] = value
		}
	})
	return specs
}

// MergeDetail folds detail-page fields into a listing record. Listing images
// come first; detail images are appended when new.
func MergeDetail(product *models.ProductRecord, detail *Detail) {
	if detail == nil {
		return
	}
	if detail.Code != "" {
		product.SourceCode = detail.Code
	}
	if detail.Description != "" {
		product.Description = detail.Description
	}
	for k, v := range detail.Specifications {
		product.Specifications[k] = v
	}

	seen := make(map[string]bool, len(product.Images))
	for _, img := range product.Images {
		seen[img] = true
	}
	for _, img := range detail.Images {
		if !seen[img] {
			seen[img] = true
			product.Images = append(product.Images, img)
		}
	}
}
