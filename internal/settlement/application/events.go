package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StatusChanged is emitted on every settlement status transition so the
// surrounding system can audit-log it.
type StatusChanged struct {
	RecordID   string
	FromStatus string
	ToStatus   string
	Actor      string
	OccurredAt time.Time
}

// SettlementGenerated is emitted when a batch run creates a pending record.
type SettlementGenerated struct {
	RecordID    string
	CustomerID  string
	TotalAmount decimal.Decimal
	Currency    string
	OccurredAt  time.Time
}

// StatusPublisher delivers settlement events to the audit sink.
type StatusPublisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChanged) error
	PublishSettlementGenerated(ctx context.Context, event SettlementGenerated) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
