package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RecordRepository persists settlement records. Get returns (nil, nil)
// when the record does not exist. Update compares the version the caller
// read and fails with ErrVersionConflict when a concurrent writer won.
type RecordRepository interface {
	Create(ctx context.Context, record *SettlementRecord) error
	Get(ctx context.Context, id string) (*SettlementRecord, error)
	Update(ctx context.Context, record *SettlementRecord) error
	// FindPrevious returns the customer's record with the latest period
	// end strictly before the given boundary, or (nil, nil).
	FindPrevious(ctx context.Context, customerID string, before time.Time) (*SettlementRecord, error)
}

// ConfigRepository resolves pricing configurations. Writes and versioning
// of configurations belong to the configuration management side.
type ConfigRepository interface {
	FindActiveByCustomer(ctx context.Context, customerID string) ([]PricingConfiguration, error)
}

// UsageSource supplies the metered quantity for a customer and period.
type UsageSource interface {
	Usage(ctx context.Context, customerID string, periodStart, periodEnd time.Time) (decimal.Decimal, error)
}

// CustomerSource lists the customers a batch run covers when no explicit
// id set is given.
type CustomerSource interface {
	ListCustomerIDs(ctx context.Context) ([]string, error)
}
