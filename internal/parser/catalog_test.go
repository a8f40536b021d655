package parser

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://shop.example"

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func firstContainer(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc := mustDoc(t, html)
	containers := NewCatalogParser().FindContainers(doc)
	require.Greater(t, containers.Length(), 0)
	return containers.First()
}

func TestExtractProduct_MinimalContainer(t *testing.T) {
	html := `<div class="product-item">
		<a href="/goods.php?id=42"><img src="/p.jpg"></a>
		<h3>iPhone 12 Pro</h3>
		<span class="price">€199,99</span>
	</div>`

	p := NewCatalogParser()
	product, err := p.ExtractProduct(firstContainer(t, html), mustURL(t, testBase+"/category.php?id=3"))
	require.NoError(t, err)

	assert.Equal(t, "iPhone 12 Pro", product.Name)
	assert.Equal(t, "42", product.ID)
	assert.Equal(t, testBase+"/goods.php?id=42", product.ProductURL)
	assert.Equal(t, "IPHONE", product.Brand)
	assert.Equal(t, "12 PRO", product.Model)
	assert.Equal(t, 199.99, product.PriceCurrent)
	assert.Equal(t, 199.99, product.PriceOriginal)
	assert.Equal(t, "EUR", product.Currency)
	assert.Equal(t, []string{testBase + "/p.jpg"}, product.Images)
	assert.Equal(t, models.UnknownGrade, product.ConditionGrade)
	assert.Equal(t, 5, product.StockQuantity)
	assert.True(t, product.InStock)
	assert.Equal(t, 1, product.MinOrderQuantity)
	assert.Empty(t, product.Validate())
}

func TestExtractProduct_Failures(t *testing.T) {
	p := NewCatalogParser()
	base := mustURL(t, testBase)

	t.Run("no link", func(t *testing.T) {
		_, err := p.ExtractProduct(firstContainer(t, `<div class="product-item"><h3>Battery S20</h3></div>`), base)
		assert.ErrorIs(t, err, ErrNoProductURL)
	})

	t.Run("javascript link", func(t *testing.T) {
		_, err := p.ExtractProduct(firstContainer(t, `<div class="product-item"><a href="javascript:void(0)">Battery S20</a></div>`), base)
		assert.ErrorIs(t, err, ErrNoProductURL)
	})

	t.Run("name too short", func(t *testing.T) {
		_, err := p.ExtractProduct(firstContainer(t, `<div class="product-item"><a href="/p/1">ok</a></div>`), base)
		assert.ErrorIs(t, err, ErrNoName)
	})
}

func TestFindContainers(t *testing.T) {
	p := NewCatalogParser()

	t.Run("first selector family wins", func(t *testing.T) {
		doc := mustDoc(t, `<div class="goods-item">a</div><div class="goods-item">b</div><div class="item">c</div>`)
		assert.Equal(t, 2, p.FindContainers(doc).Length())
	})

	t.Run("table row fallback", func(t *testing.T) {
		doc := mustDoc(t, `<table>
			<tr><th>Name</th><th>Qty</th></tr>
			<tr><td>Menu</td><td>Home</td><td>Contact</td></tr>
			<tr><td><a href="/p/1">LCD S21</a></td><td>Grade A</td><td>45,00 €</td></tr>
			<tr><td><a href="/p/2">LCD S22</a></td><td>In stock</td><td>55,00 €</td></tr>
		</table>`)
		rows := p.FindContainers(doc)
		assert.Equal(t, 2, rows.Length())
	})

	t.Run("nothing", func(t *testing.T) {
		doc := mustDoc(t, `<p>empty category</p>`)
		assert.Equal(t, 0, p.FindContainers(doc).Length())
	})
}

func TestExtractName(t *testing.T) {
	p := NewCatalogParser()

	tests := []struct {
		name string
		html string
		want string
	}{
		{"heading", `<div class="item"><h4>  Display   Galaxy S21 </h4></div>`, "Display Galaxy S21"},
		{"title attribute preferred", `<div class="item"><a title="Battery iPhone X" href="/x">Bat</a></div>`, "Battery iPhone X"},
		{"short heading skipped", `<div class="item"><h3>X</h3><span class="name">Back Cover P30</span></div>`, "Back Cover P30"},
		{"first link fallback", `<div class="item"><a href="/p/9">Flex Cable Mi 11</a></div>`, "Flex Cable Mi 11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.ExtractName(firstContainer(t, tt.html))
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPricePair(t *testing.T) {
	p := NewCatalogParser()

	tests := []struct {
		name     string
		html     string
		current  float64
		original float64
		currency string
	}{
		{
			name:     "discount pair from selectors",
			html:     `<div class="item"><span class="price-old">€ 59,90</span><span class="price">€ 49,90</span></div>`,
			current:  49.90,
			original: 59.90,
			currency: "EUR",
		},
		{
			name:     "regex fallback amount before symbol",
			html:     `<div class="item">Only today 12,50 € instead of 15,00 €</div>`,
			current:  12.50,
			original: 12.50,
			currency: "EUR",
		},
		{
			name:     "regex fallback keeps first amount only",
			html:     `<div class="item"><a href="/goods-1">Display LCD</a><span>Now 12,50 € instead of 19,90 €</span></div>`,
			current:  12.50,
			original: 12.50,
			currency: "EUR",
		},
		{
			name:     "regex fallback bare decimal",
			html:     `<div class="item">cost 7.25 per piece</div>`,
			current:  7.25,
			original: 7.25,
			currency: "EUR",
		},
		{
			name:     "pound currency",
			html:     `<div class="item"><span class="price">£10.00</span></div>`,
			current:  10,
			original: 10,
			currency: "GBP",
		},
		{
			name:     "no price",
			html:     `<div class="item">call us</div>`,
			currency: "EUR",
		},
		{
			// A model number in bold is read as a price candidate and
			// becomes the original price.
			name:     "unrelated number inflates original",
			html:     `<div class="item"><b>A2172</b><span class="price">€89,00</span></div>`,
			current:  89,
			original: 2172,
			currency: "EUR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := p.ExtractPricePair(firstContainer(t, tt.html))
			assert.InDelta(t, tt.current, pair.Current, 1e-9)
			assert.InDelta(t, tt.original, pair.Original, 1e-9)
			assert.Equal(t, tt.currency, pair.Currency)
			assert.LessOrEqual(t, pair.Current, pair.Original)
		})
	}
}

func TestExtractStock(t *testing.T) {
	p := NewCatalogParser()

	tests := []struct {
		name     string
		html     string
		quantity int
		inStock  bool
		minOrder int
	}{
		{
			name:     "out of stock beats quantity input",
			html:     `<div class="item">Out of stock <input name="quantity" max="40"></div>`,
			quantity: 0,
			inStock:  false,
			minOrder: 1,
		},
		{
			name:     "unavailable is not available",
			html:     `<div class="item">Currently unavailable</div>`,
			quantity: 0,
			inStock:  false,
			minOrder: 1,
		},
		{
			name:     "in stock placeholder",
			html:     `<div class="item">In Stock</div>`,
			quantity: 10,
			inStock:  true,
			minOrder: 1,
		},
		{
			name:     "quantity input max",
			html:     `<div class="item"><input name="quantity" max="7" min="2"></div>`,
			quantity: 7,
			inStock:  true,
			minOrder: 2,
		},
		{
			name:     "quantity input zero max",
			html:     `<div class="item"><input name="quantity" max="0"></div>`,
			quantity: 0,
			inStock:  false,
			minOrder: 1,
		},
		{
			name:     "non numeric max",
			html:     `<div class="item"><input name="qty" max="many"></div>`,
			quantity: 5,
			inStock:  true,
			minOrder: 1,
		},
		{
			name:     "no signal",
			html:     `<div class="item">LCD</div>`,
			quantity: 5,
			inStock:  true,
			minOrder: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ExtractStock(firstContainer(t, tt.html))
			assert.Equal(t, tt.quantity, got.Quantity)
			assert.Equal(t, tt.inStock, got.InStock)
			assert.Equal(t, tt.minOrder, got.MinOrder)
		})
	}
}

func TestExtractImages(t *testing.T) {
	p := NewCatalogParser()
	html := `<div class="item">
		<img src="/img/logo.png">
		<img src="img/a.jpg">
		<img data-src="https://cdn.example/b.jpg">
		<img src="data:image/gif;base64,R0l" data-original="/img/c.jpg">
		<img src="/img/spacer.gif">
		<img src="img/a.jpg">
		<img>
	</div>`

	images := p.ExtractImages(firstContainer(t, html), mustURL(t, testBase+"/shop/list.php"))

	assert.Equal(t, []string{
		testBase + "/shop/img/a.jpg",
		"https://cdn.example/b.jpg",
		testBase + "/img/c.jpg",
		testBase + "/shop/img/a.jpg",
	}, images)
}

func TestExtractBrandModel(t *testing.T) {
	p := NewCatalogParser()

	tests := []struct {
		name  string
		brand string
		model string
	}{
		{"iPhone 12 Pro Max LCD", "IPHONE", "12 PRO"},
		{"Apple iPhone 11 battery", "APPLE", "11"},
		{"Samsung Galaxy S21 display", "SAMSUNG", "S21"},
		{"Huawei P30 back cover", "HUAWEI", "P30"},
		{"Generic screen protector", "Unknown", "Generic screen protector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brand, model := p.ExtractBrandModel(tt.name)
			assert.Equal(t, tt.brand, brand)
			assert.Equal(t, tt.model, model)
		})
	}
}

func TestExtractCondition(t *testing.T) {
	p := NewCatalogParser()

	tests := []struct {
		name string
		text string
		want models.ConditionGrade
	}{
		{"grade letter", "LCD S21 Grade B", models.GradeB},
		{"grade before generic", "New battery grade a", models.GradeA},
		{"blister before new", "Battery new in blister", models.NewInBlister},
		{"refurbished", "Refurbished display", models.Refurbished},
		{"nothing", "Display S21", models.UnknownGrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container := firstContainer(t, `<div class="item"><span>`+tt.text+`</span></div>`)
			assert.Equal(t, tt.want, p.ExtractCondition("", container))
		})
	}
}

func TestResolveURL(t *testing.T) {
	base := mustURL(t, testBase+"/dir/page.php")

	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"/goods.php?id=1", testBase + "/goods.php?id=1", true},
		{"item.php#top", testBase + "/dir/item.php", true},
		{"https://other.example/x", "https://other.example/x", true},
		{"mailto:info@shop.example", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := ResolveURL(base, tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
