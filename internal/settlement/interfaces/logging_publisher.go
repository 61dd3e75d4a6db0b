package interfaces

import (
	"context"
	"errors"
	"log"

	"settlement-engine/internal/settlement/application"
)

// LoggingPublisher writes settlement events to the process log. It is
// the default audit sink when no outbox is wired.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishStatusChanged logs the transition.
func (p *LoggingPublisher) PublishStatusChanged(ctx context.Context, event application.StatusChanged) error {
	_ = ctx
	if p == nil {
		return errors.New("settlement publisher: nil publisher")
	}
	p.logger.Printf("settlement status changed: record=%s %s→%s actor=%s at=%s",
		event.RecordID, event.FromStatus, event.ToStatus, event.Actor, event.OccurredAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

// PublishSettlementGenerated logs the creation.
func (p *LoggingPublisher) PublishSettlementGenerated(ctx context.Context, event application.SettlementGenerated) error {
	_ = ctx
	if p == nil {
		return errors.New("settlement publisher: nil publisher")
	}
	p.logger.Printf("settlement generated: record=%s customer=%s amount=%s %s",
		event.RecordID, event.CustomerID, event.TotalAmount, event.Currency)
	return nil
}
