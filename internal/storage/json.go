package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
)

const filePrefix = "catalog_products_"

// Document is the layout of an export file.
type Document struct {
	ScrapingInfo ScrapingInfo            `json:"scraping_info"`
	Products     []*models.ProductRecord `json:"products"`
}

type ScrapingInfo struct {
	Website       string           `json:"website"`
	TotalProducts int              `json:"total_products"`
	ScrapedAt     time.Time        `json:"scraped_at"`
	Stats         *models.RunStats `json:"stats"`
}

// JSONExporter writes one self-describing JSON file per run.
type JSONExporter struct {
	dir     string
	website string
	logger  *slog.Logger
	now     func() time.Time
}

func NewJSONExporter(dir, website string, logger *slog.Logger) *JSONExporter {
	if dir == "" {
		dir = "."
	}
	return &JSONExporter{
		dir:     dir,
		website: website,
		logger:  logger.With("component", "json_exporter"),
		now:     time.Now,
	}
}

// Filename returns the timestamped export name for t.
func Filename(t time.Time) string {
	return filePrefix + t.Format("20060102_150405") + ".json"
}

func (e *JSONExporter) Store(ctx context.Context, products []*models.ProductRecord, stats *models.RunStats) error {
	_, err := e.Export(products, stats)
	return err
}

// Export writes products into the output directory and returns the file path.
func (e *JSONExporter) Export(products []*models.ProductRecord, stats *models.RunStats) (string, error) {
	path := filepath.Join(e.dir, Filename(e.now()))
	if err := e.ExportTo(path, products, stats); err != nil {
		return "", err
	}
	return path, nil
}

// ExportTo writes products to path. The file is replaced atomically.
func (e *JSONExporter) ExportTo(path string, products []*models.ProductRecord, stats *models.RunStats) error {
	if products == nil {
		products = []*models.ProductRecord{}
	}

	doc := Document{
		ScrapingInfo: ScrapingInfo{
			Website:       e.website,
			TotalProducts: len(products),
			ScrapedAt:     e.now().UTC(),
			Stats:         stats,
		},
		Products: products,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to finalize export: %w", err)
	}

	e.logger.Info("products exported", "path", path, "products", len(products))
	return nil
}

// Load reads an export file back.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode export %s: %w", path, err)
	}
	return &doc, nil
}
