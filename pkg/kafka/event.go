package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kidsdesign/storefront/pkg/logger"
)

// SchemaVersion is the envelope version stamped on every event.
const SchemaVersion = 1

// Aggregate identifies what an event is about, e.g. a category or a product.
// Its ID is used as the message key so events about one aggregate stay ordered.
type Aggregate struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Event is the envelope every storefront message is published in. Request
// identity (correlation, user and session ids) travels in the envelope so
// payloads only carry domain fields.
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"event_type"`
	Aggregate     Aggregate       `json:"aggregate"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent builds an event for data, taking request identity from ctx.
func NewEvent(ctx context.Context, eventType, source string, aggregate Aggregate, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Aggregate:     aggregate,
		SchemaVersion: SchemaVersion,
		OccurredAt:    time.Now().UTC(),
		Source:        source,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		UserID:        logger.UserIDFromContext(ctx),
		SessionID:     logger.SessionIDFromContext(ctx),
		Data:          payload,
	}, nil
}
