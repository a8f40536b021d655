package parser

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/identity"
	"github.com/maltedev/catalog-scraper/internal/models"
)

var (
	ErrNoName        = errors.New("product name not found")
	ErrNoProductURL  = errors.New("product url not found")
	ErrInvalidRecord = errors.New("invalid product record")
)

const (
	minNameLength       = 3
	inStockPlaceholder  = 10
	defaultStockPending = 5
)

var (
	containerSelectors = []string{
		"div.product-item",
		"div.goods-item",
		"tr.product-row",
		"div.item",
		".product",
		`tr[id*="goods"]`,
		`tr[class*="goods"]`,
	}

	rowKeywords = []string{"€", "eur", "price", "stock", "grade"}

	nameSelectors = []string{
		"h3", "h4", "h5",
		".product-name", ".title", ".name",
		"a[title]", "td:first-child a",
		"strong", "b",
	}

	priceSelectors = []string{
		".price", ".cost", ".amount",
		`span[class*="price"]`, `td[class*="price"]`,
		"strong", "b",
	}

	outOfStockPhrases = []string{
		"out of stock", "sold out", "unavailable", "not available",
		"esaurito", "non disponibile", "缺货", "无库存",
	}

	inStockPhrases = []string{
		"in stock", "available", "disponibile", "有库存", "现货",
	}

	imageAttributes = []string{"src", "data-src", "data-original"}

	imageDenylist = []string{
		"logo", "icon", "button", "arrow", "banner",
		"placeholder", "loading", "1x1", "spacer",
	}

	knownBrands = []string{
		"APPLE", "SAMSUNG", "HUAWEI", "XIAOMI", "OPPO", "VIVO", "ONEPLUS",
		"GOOGLE", "LG", "SONY", "MOTOROLA", "NOKIA", "REALME", "HONOR",
		"IPHONE", "GALAXY", "PIXEL", "XPERIA",
	}

	conditionKeywords = []struct {
		keyword string
		grade   models.ConditionGrade
	}{
		{"grade a", models.GradeA},
		{"grade b", models.GradeB},
		{"grade c", models.GradeC},
		{"new in blister", models.NewInBlister},
		{"original bulk", models.OriginalBulk},
		{"used", models.Used},
		{"refurbished", models.Refurbished},
		{"new", models.New},
		{"original", models.Original},
	}
)

// PricePair holds the current and original price of one listing.
type PricePair struct {
	Current  float64
	Original float64
	Currency string
}

type StockInfo struct {
	Quantity int
	InStock  bool
	MinOrder int
}

// CatalogParser extracts product records from listing containers and detail pages.
type CatalogParser struct {
	pricePatterns []*regexp.Regexp
	modelPatterns []*regexp.Regexp
	codePatterns  []*regexp.Regexp
}

func NewCatalogParser() *CatalogParser {
	return &CatalogParser{
		pricePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(\d+[.,]\d+)\s*€`),
			regexp.MustCompile(`€\s*(\d+[.,]\d+)`),
			regexp.MustCompile(`(\d+[.,]\d+)\s*EUR`),
			regexp.MustCompile(`EUR\s*(\d+[.,]\d+)`),
			regexp.MustCompile(`(\d+[.,]\d+)`),
		},
		modelPatterns: []*regexp.Regexp{
			regexp.MustCompile(`IPHONE\s*(\d+\s*(?:PRO|PLUS|MINI|MAX)?)`),
			regexp.MustCompile(`GALAXY\s*([A-Z]\d+)`),
			regexp.MustCompile(`(\w+\s*\d+\w*)`),
			regexp.MustCompile(`([A-Z]+\d+[A-Z]*)`),
		},
		codePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ECS\d+`),
			regexp.MustCompile(`(?i)Product\s*ID:\s*(\w+)`),
			regexp.MustCompile(`(?i)SKU:\s*(\w+)`),
			regexp.MustCompile(`(?i)Code:\s*(\w+)`),
		},
	}
}

// FindContainers returns the product containers of a listing page. The first
// selector family with any match wins; table rows that look like product rows
// are the fallback.
func (p *CatalogParser) FindContainers(doc *goquery.Document) *goquery.Selection {
	if found := FirstMatching(doc.Selection, containerSelectors); found != nil {
		return found
	}

	return doc.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
		if row.Find("td, th").Length() < 3 {
			return false
		}
		text := strings.ToLower(row.Text())
		return containsAny(text, rowKeywords)
	})
}

// ExtractProduct builds a record from one listing container. Category,
// subcategory and detail fields are left for the caller.
func (p *CatalogParser) ExtractProduct(container *goquery.Selection, pageURL *url.URL) (*models.ProductRecord, error) {
	href, ok := container.Find("a[href]").First().Attr("href")
	if !ok {
		return nil, ErrNoProductURL
	}
	productURL, ok := ResolveURL(pageURL, href)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProductURL, href)
	}

	name, ok := p.ExtractName(container)
	if !ok {
		return nil, ErrNoName
	}

	product := models.NewProductRecord(name, productURL)
	product.ID = identity.Generate(productURL, name)
	product.SourceCode = product.ID

	price := p.ExtractPricePair(container)
	product.PriceCurrent = price.Current
	product.PriceOriginal = price.Original
	product.Currency = price.Currency

	stock := p.ExtractStock(container)
	product.StockQuantity = stock.Quantity
	product.InStock = stock.InStock
	product.MinOrderQuantity = stock.MinOrder

	product.Images = p.ExtractImages(container, pageURL)
	product.Brand, product.Model = p.ExtractBrandModel(name)
	product.ConditionGrade = p.ExtractCondition(name, container)

	return product, nil
}

func (p *CatalogParser) ExtractName(container *goquery.Selection) (string, bool) {
	strategies := make([]Strategy[string], 0, len(nameSelectors)+1)
	for _, selector := range nameSelectors {
		strategies = append(strategies, nameBySelector(selector))
	}
	strategies = append(strategies, firstLinkText)

	return FirstOf(container, strategies...)
}

func nameBySelector(selector string) Strategy[string] {
	return func(sel *goquery.Selection) (string, bool) {
		elem := sel.Find(selector).First()
		if elem.Length() == 0 {
			return "", false
		}
		name := cleanText(elem.AttrOr("title", ""))
		if name == "" {
			name = cleanText(elem.Text())
		}
		return name, validName(name)
	}
}

func firstLinkText(sel *goquery.Selection) (string, bool) {
	name := cleanText(sel.Find("a").First().Text())
	return name, validName(name)
}

func validName(name string) bool {
	return utf8.RuneCountInString(name) >= minNameLength
}

// ExtractPricePair collects every price candidate matched by the price
// selectors. The lowest becomes the current price and the highest the original
// price, so unrelated numbers larger than the list price are reported as the
// original price. The free-text fallback yields only the first amount found.
func (p *CatalogParser) ExtractPricePair(container *goquery.Selection) PricePair {
	text := container.Text()
	pair := PricePair{Currency: detectCurrency(text)}

	candidates, ok := FirstOf[[]float64](container, p.pricesBySelectors, p.pricesByPatterns)
	if !ok {
		return pair
	}

	pair.Current, pair.Original = candidates[0], candidates[0]
	for _, c := range candidates[1:] {
		if c < pair.Current {
			pair.Current = c
		}
		if c > pair.Original {
			pair.Original = c
		}
	}
	return pair
}

func (p *CatalogParser) pricesBySelectors(container *goquery.Selection) ([]float64, bool) {
	var prices []float64
	for _, selector := range priceSelectors {
		container.Find(selector).Each(func(_ int, elem *goquery.Selection) {
			if price := NormalizePrice(strings.TrimSpace(elem.Text())); price > 0 {
				prices = append(prices, price)
			}
		})
	}
	return prices, len(prices) > 0
}

func (p *CatalogParser) pricesByPatterns(container *goquery.Selection) ([]float64, bool) {
	text := container.Text()
	for _, pattern := range p.pricePatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			if price := NormalizePrice(m[1]); price > 0 {
				return []float64{price}, true
			}
		}
	}
	return nil, false
}

func detectCurrency(text string) string {
	switch {
	case strings.Contains(text, "€"), strings.Contains(strings.ToUpper(text), "EUR"):
		return models.DefaultCurrency
	case strings.Contains(text, "£"):
		return "GBP"
	case strings.Contains(text, "$"):
		return "USD"
	default:
		return models.DefaultCurrency
	}
}

// ExtractStock classifies availability from free text. Quantities other than 0
// or an explicit input maximum are placeholders, not observed stock.
func (p *CatalogParser) ExtractStock(container *goquery.Selection) StockInfo {
	info := StockInfo{MinOrder: 1}
	text := strings.ToLower(container.Text())

	qtyInput := container.Find(`input[name="quantity"], input[name="qty"]`).First()
	if minAttr, ok := qtyInput.Attr("min"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(minAttr)); err == nil && n > 0 {
			info.MinOrder = n
		}
	}

	switch {
	case containsAny(text, outOfStockPhrases):
		return info
	case containsAny(text, inStockPhrases):
		info.Quantity = inStockPlaceholder
	case qtyInput.Length() > 0:
		info.Quantity = defaultStockPending
		if maxAttr := strings.TrimSpace(qtyInput.AttrOr("max", "")); isDigits(maxAttr) {
			info.Quantity, _ = strconv.Atoi(maxAttr)
		}
	default:
		info.Quantity = defaultStockPending
	}

	info.InStock = info.Quantity > 0
	return info
}

// ExtractImages returns absolute product image URLs in document order, without
// site chrome.
func (p *CatalogParser) ExtractImages(sel *goquery.Selection, base *url.URL) []string {
	images := make([]string, 0)

	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" {
			return
		}
		abs, ok := ResolveURL(base, src)
		if !ok || !IsProductImage(abs) {
			return
		}
		images = append(images, abs)
	})

	return images
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range imageAttributes {
		src := strings.TrimSpace(img.AttrOr(attr, ""))
		if src != "" && !strings.HasPrefix(src, "data:") {
			return src
		}
	}
	return ""
}

func IsProductImage(imageURL string) bool {
	return !containsAny(strings.ToLower(imageURL), imageDenylist)
}

// ExtractBrandModel derives brand and model from a product name.
func (p *CatalogParser) ExtractBrandModel(name string) (brand, model string) {
	upper := strings.ToUpper(name)

	brand = "Unknown"
	for _, b := range knownBrands {
		if strings.Contains(upper, b) {
			brand = b
			break
		}
	}

	for _, pattern := range p.modelPatterns {
		if m := pattern.FindStringSubmatch(upper); len(m) > 1 {
			if model = strings.TrimSpace(m[1]); model != "" {
				return brand, model
			}
		}
	}

	words := strings.Fields(name)
	if len(words) > 3 {
		words = words[:3]
	}
	model = strings.Join(words, " ")
	if model == "" {
		model = "Unknown"
	}
	return brand, model
}

func (p *CatalogParser) ExtractCondition(name string, container *goquery.Selection) models.ConditionGrade {
	text := strings.ToLower(name + " " + container.Text())
	for _, c := range conditionKeywords {
		if strings.Contains(text, c.keyword) {
			return c.grade
		}
	}
	return models.UnknownGrade
}

// ResolveURL resolves ref against base and accepts only http(s) results.
func ResolveURL(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
