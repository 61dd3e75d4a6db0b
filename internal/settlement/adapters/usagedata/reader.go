package usagedata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	settlement "settlement-engine/internal/settlement/domain"
)

const defaultUsageTable = "usage_records"

// Reader sums metered usage rows for a customer and billing period. It
// implements the usage-data collaborator contract; a period with no rows
// is a source failure the batch reports per customer.
type Reader struct {
	db    *sql.DB
	table string
}

// ReaderOption configures the reader.
type ReaderOption func(*Reader)

// WithTable overrides the usage table name.
func WithTable(table string) ReaderOption {
	return func(reader *Reader) {
		if reader != nil && table != "" {
			reader.table = table
		}
	}
}

// NewReader constructs a reader.
func NewReader(db *sql.DB, opts ...ReaderOption) *Reader {
	reader := &Reader{db: db, table: defaultUsageTable}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Usage returns the total metered quantity in the half-open period.
func (r *Reader) Usage(ctx context.Context, customerID string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	if r == nil || r.db == nil {
		return decimal.Zero, errors.New("usage reader: nil db")
	}
	if customerID == "" {
		return decimal.Zero, errors.New("usage reader: empty customer id")
	}
	if periodStart.IsZero() || periodEnd.IsZero() || !periodStart.Before(periodEnd) {
		return decimal.Zero, errors.New("usage reader: invalid period")
	}

	query := fmt.Sprintf(`
SELECT COUNT(*), COALESCE(SUM(quantity), 0)
FROM %s
WHERE customer_id = $1 AND recorded_at >= $2 AND recorded_at < $3`, r.table)

	var count int64
	var total string
	if err := r.db.QueryRowContext(ctx, query, customerID, periodStart.UTC(), periodEnd.UTC()).Scan(&count, &total); err != nil {
		return decimal.Zero, err
	}
	if count == 0 {
		return decimal.Zero, fmt.Errorf("%w: customer %s", settlement.ErrUsageUnavailable, customerID)
	}
	quantity, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, err
	}
	return quantity, nil
}
