package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	EventProductScraped = "PRODUCT_SCRAPED"
	EventRunCompleted   = "RUN_COMPLETED"

	DefaultStream = "stream:catalog_products"
	source        = "catalog-scraper"
)

// RedisClient is the subset of the redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Event is the envelope stored in the data field of a stream entry.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     string          `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      Metadata        `json:"metadata"`
}

type Metadata struct {
	Source string `json:"source"`
	RunID  string `json:"run_id"`
}

// Publisher emits one PRODUCT_SCRAPED entry per product and a closing
// RUN_COMPLETED entry to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
		now:    time.Now,
	}
}

func (p *Publisher) Store(ctx context.Context, products []*models.ProductRecord, stats *models.RunStats) error {
	runID := ""
	if stats != nil {
		runID = stats.RunID
	}

	published := 0
	for _, product := range products {
		if err := p.publish(ctx, EventProductScraped, "catalog_product", product.ID, runID, product); err != nil {
			return err
		}
		published++
	}

	if err := p.publish(ctx, EventRunCompleted, "scrape_run", runID, runID, stats); err != nil {
		return err
	}

	p.logger.Info("events published", "stream", p.stream, "run_id", runID, "products", published)
	return nil
}

func (p *Publisher) publish(ctx context.Context, eventType, aggregateType, aggregateID, runID string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := p.now().UTC()
	event := Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Timestamp:     now.Format(time.RFC3339),
		Payload:       payloadJSON,
		Metadata:      Metadata{Source: source, RunID: runID},
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":           string(data),
			"type":           eventType,
			"timestamp":      fmt.Sprintf("%d", now.UnixNano()),
			"original_id":    event.ID,
			"aggregate_id":   aggregateID,
			"aggregate_type": aggregateType,
		},
	}

	if _, err := p.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish %s for %s: %w", eventType, aggregateID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
