package database

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maltedev/catalog-scraper/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const insertRunQuery = `
	INSERT INTO scrape_runs (run_id, started_at, finished_at, duration_seconds,
		categories_found, products_scraped, errors_count, timed_out, stats)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (run_id) DO UPDATE SET
		finished_at = EXCLUDED.finished_at,
		duration_seconds = EXCLUDED.duration_seconds,
		products_scraped = EXCLUDED.products_scraped,
		errors_count = EXCLUDED.errors_count,
		timed_out = EXCLUDED.timed_out,
		stats = EXCLUDED.stats`

const upsertProductQuery = `
	INSERT INTO catalog_products (id, source_code, name, brand, model, category,
		subcategory, condition_grade, price_original, price_current, currency,
		stock_quantity, in_stock, min_order_quantity, images, product_url,
		specifications, description, scraped_at, last_run_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	ON CONFLICT (id) DO UPDATE SET
		source_code = EXCLUDED.source_code,
		name = EXCLUDED.name,
		brand = EXCLUDED.brand,
		model = EXCLUDED.model,
		category = EXCLUDED.category,
		subcategory = EXCLUDED.subcategory,
		condition_grade = EXCLUDED.condition_grade,
		price_original = EXCLUDED.price_original,
		price_current = EXCLUDED.price_current,
		currency = EXCLUDED.currency,
		stock_quantity = EXCLUDED.stock_quantity,
		in_stock = EXCLUDED.in_stock,
		min_order_quantity = EXCLUDED.min_order_quantity,
		images = EXCLUDED.images,
		product_url = EXCLUDED.product_url,
		specifications = EXCLUDED.specifications,
		description = EXCLUDED.description,
		scraped_at = EXCLUDED.scraped_at,
		last_run_id = EXCLUDED.last_run_id,
		updated_at = CURRENT_TIMESTAMP`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProductRepository persists runs and upserts their products by ID.
type ProductRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewProductRepository(db *DB, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger.With("component", "product_repository"),
	}
}

// EnsureSchema creates the tables when they do not exist.
func (r *ProductRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Store writes the run and its products in one transaction.
func (r *ProductRepository) Store(ctx context.Context, products []*models.ProductRecord, stats *models.RunStats) error {
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return storeRun(ctx, tx, products, stats)
	})
	if err != nil {
		return err
	}

	r.logger.Info("run persisted", "run_id", stats.RunID, "products", len(products))
	return nil
}

func storeRun(ctx context.Context, ex execer, products []*models.ProductRecord, stats *models.RunStats) error {
	if stats == nil || stats.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	if err := insertRun(ctx, ex, stats); err != nil {
		return err
	}

	for _, p := range products {
		if err := upsertProduct(ctx, ex, p, stats.RunID); err != nil {
			return err
		}
	}
	return nil
}

func insertRun(ctx context.Context, ex execer, stats *models.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}

	_, err = ex.Exec(ctx, insertRunQuery,
		stats.RunID, stats.StartedAt, stats.FinishedAt, stats.DurationSeconds,
		stats.CategoriesFound, stats.ProductsScraped, stats.ErrorCount, stats.TimedOut, statsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", stats.RunID, err)
	}
	return nil
}

func upsertProduct(ctx context.Context, ex execer, p *models.ProductRecord, runID string) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}
	specs, err := json.Marshal(p.Specifications)
	if err != nil {
		return fmt.Errorf("failed to marshal specifications: %w", err)
	}

	_, err = ex.Exec(ctx, upsertProductQuery,
		p.ID, p.SourceCode, p.Name, p.Brand, p.Model, p.Category,
		p.Subcategory, string(p.ConditionGrade), p.PriceOriginal, p.PriceCurrent, p.Currency,
		p.StockQuantity, p.InStock, p.MinOrderQuantity, images, p.ProductURL,
		specs, p.Description, p.ScrapedAt, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}
