// Package eventbridge publishes element mutation events to an AWS
// EventBridge bus for external consumers.
package eventbridge

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"boardsync-backend/application/ports"
)

const source = "boardsync.backend"

// Publisher implements ports.EventPublisher using AWS EventBridge.
type Publisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// Compile-time interface check
var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Publish sends a single integration event to EventBridge.
func (p *Publisher) Publish(ctx context.Context, event ports.IntegrationEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return err
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.eventBusName),
				Source:       aws.String(source),
				DetailType:   aws.String(event.Type),
				Detail:       aws.String(string(detail)),
				Time:         aws.Time(event.Timestamp),
			},
		},
	})
	if err != nil {
		return err
	}
	if out.FailedEntryCount > 0 {
		p.logger.Warn("EventBridge rejected event",
			zap.String("eventType", event.Type),
			zap.String("boardID", event.BoardID),
		)
	}
	return nil
}

// NoopPublisher discards integration events; used when publishing is
// disabled.
type NoopPublisher struct{}

// Publish implements ports.EventPublisher.
func (NoopPublisher) Publish(ctx context.Context, event ports.IntegrationEvent) error {
	return nil
}
