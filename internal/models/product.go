package models

import (
	"time"
)

type ConditionGrade string

const (
	GradeA       ConditionGrade = "Grade A"
	GradeB       ConditionGrade = "Grade B"
	GradeC       ConditionGrade = "Grade C"
	NewInBlister ConditionGrade = "New In Blister"
	OriginalBulk ConditionGrade = "Original Bulk"
	Used         ConditionGrade = "Used"
	Refurbished  ConditionGrade = "Refurbished"
	New          ConditionGrade = "New"
	Original     ConditionGrade = "Original"
	UnknownGrade ConditionGrade = "Unknown"
)

const DefaultCurrency = "EUR"

// ProductRecord is one catalog entry as exported by a run. StockQuantity is an
// estimate unless the page exposed a quantity input.
type ProductRecord struct {
	ID               string            `json:"id"`
	SourceCode       string            `json:"source_code"`
	Name             string            `json:"name"`
	Brand            string            `json:"brand"`
	Model            string            `json:"model"`
	Category         string            `json:"category"`
	Subcategory      string            `json:"subcategory"`
	ConditionGrade   ConditionGrade    `json:"condition_grade"`
	PriceOriginal    float64           `json:"price_original"`
	PriceCurrent     float64           `json:"price_current"`
	Currency         string            `json:"currency"`
	StockQuantity    int               `json:"stock_quantity"`
	InStock          bool              `json:"in_stock"`
	MinOrderQuantity int               `json:"min_order_quantity"`
	Images           []string          `json:"images"`
	ProductURL       string            `json:"product_url"`
	Specifications   map[string]string `json:"specifications"`
	Description      string            `json:"description"`
	ScrapedAt        time.Time         `json:"scraped_at"`
}

func NewProductRecord(name, productURL string) *ProductRecord {
	return &ProductRecord{
		Name:             name,
		ProductURL:       productURL,
		ConditionGrade:   UnknownGrade,
		Currency:         DefaultCurrency,
		MinOrderQuantity: 1,
		Images:           make([]string, 0),
		Specifications:   make(map[string]string),
		ScrapedAt:        time.Now().UTC(),
	}
}

// Category is a discovered listing entry point.
type Category struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Level    int    `json:"level"`
	Priority int    `json:"priority"`
}

// Validate lists the reasons a record must not be emitted.
func (p *ProductRecord) Validate() []string {
	var errors []string

	if p.ID == "" {
		errors = append(errors, "ID is required")
	}

	if p.Name == "" {
		errors = append(errors, "Name is required")
	}

	if p.ProductURL == "" {
		errors = append(errors, "ProductURL is required")
	}

	if p.PriceCurrent > p.PriceOriginal {
		errors = append(errors, "PriceCurrent exceeds PriceOriginal")
	}

	if !p.InStock && p.StockQuantity != 0 {
		errors = append(errors, "StockQuantity must be 0 when out of stock")
	}

	if p.MinOrderQuantity < 1 {
		errors = append(errors, "MinOrderQuantity must be at least 1")
	}

	return errors
}
