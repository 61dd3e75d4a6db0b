package interfaces

import (
	"context"

	"settlement-engine/internal/eventing"
	"settlement-engine/internal/settlement/application"
)

// OutboxPublisher writes settlement events to the event outbox, where
// the surrounding audit system picks them up.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishStatusChanged writes the transition event to the outbox.
func (p *OutboxPublisher) PublishStatusChanged(ctx context.Context, event application.StatusChanged) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, event)
}

// PublishSettlementGenerated writes the creation event to the outbox.
func (p *OutboxPublisher) PublishSettlementGenerated(ctx context.Context, event application.SettlementGenerated) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, event)
}
