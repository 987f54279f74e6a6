package ports

import (
	"context"
	"encoding/json"
	"time"
)

// IntegrationEvent is an element mutation surfaced to external consumers
// on an event bus. Publishing is fire-and-forget and never gates the room
// broadcast.
type IntegrationEvent struct {
	Type      string          `json:"type"`
	BoardID   string          `json:"boardId"`
	ElementID string          `json:"elementId"`
	UserID    string          `json:"userId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventPublisher publishes integration events.
type EventPublisher interface {
	Publish(ctx context.Context, event IntegrationEvent) error
}
