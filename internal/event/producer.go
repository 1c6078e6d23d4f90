package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	pkgkafka "github.com/kidsdesign/storefront/pkg/kafka"
)

// Kafka topics for storefront catalog events.
var (
	TopicPageViewed   = pkgkafka.Topic("catalog", "page_viewed")
	TopicProductSaved = pkgkafka.Topic("wishlist", "product_saved")
)

// Aggregate types.
const (
	AggregateTypeCategory = "category"
	AggregateTypeProduct  = "product"
)

// SourceStorefront identifies events published by this service.
const SourceStorefront = "storefront-bff"

// PageViewedData is the payload for a catalog.page_viewed event.
type PageViewedData struct {
	CategoryID int    `json:"category_id"`
	Page       int    `json:"page"`
	Sort       string `json:"sort"`
	State      string `json:"state"`
	Items      int    `json:"items"`
	TotalPages int    `json:"total_pages"`
}

// ProductSavedData is the payload for a wishlist.product_saved event.
type ProductSavedData struct {
	ProductID int  `json:"product_id"`
	Saved     bool `json:"saved"`
	EntryID   int  `json:"entry_id,omitempty"`
}

// Publisher is the part of pkg/kafka.Producer the event producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront analytics events. Events are best effort:
// failures are logged and returned but must never fail a page render.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates an event producer. A nil publisher yields a producer
// that drops every event, which is how the service runs without Kafka.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// Enabled reports whether events are actually published.
func (p *Producer) Enabled() bool {
	return p != nil && p.kafka != nil
}

// PublishPageViewed publishes a catalog.page_viewed event.
func (p *Producer) PublishPageViewed(ctx context.Context, data PageViewedData) error {
	if !p.Enabled() {
		return nil
	}
	aggregateID := strconv.Itoa(data.CategoryID)
	return p.publish(ctx, TopicPageViewed, aggregateID, AggregateTypeCategory, data)
}

// PublishProductSaved publishes a wishlist.product_saved event.
func (p *Producer) PublishProductSaved(ctx context.Context, data ProductSavedData) error {
	if !p.Enabled() {
		return nil
	}
	aggregateID := strconv.Itoa(data.ProductID)
	return p.publish(ctx, TopicProductSaved, aggregateID, AggregateTypeProduct, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, SourceStorefront, pkgkafka.Aggregate{Type: aggregateType, ID: aggregateID}, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		p.logger.WarnContext(ctx, "event publish failed",
			slog.String("topic", topic),
			slog.String("aggregate_id", aggregateID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
