package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	settlement "settlement-engine/internal/settlement/domain"
)

// RecordRepository is an in-memory settlement record store with the same
// optimistic concurrency contract as the postgres implementation. Used by
// tests and the default wiring.
type RecordRepository struct {
	mu   sync.RWMutex
	data map[string]*settlement.SettlementRecord
}

// NewRecordRepository constructs a repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{data: make(map[string]*settlement.SettlementRecord)}
}

// Create persists a new record. The customer+period uniqueness guard
// lives here, at the storage boundary.
func (r *RecordRepository) Create(ctx context.Context, record *settlement.SettlementRecord) error {
	_ = ctx
	if record == nil {
		return settlement.ErrNilRecord
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.CustomerID == record.CustomerID &&
			existing.PeriodStart.Equal(record.PeriodStart) &&
			existing.PeriodEnd.Equal(record.PeriodEnd) {
			return settlement.ErrDuplicatePeriod
		}
	}
	record.Version = 1
	r.data[record.ID] = record.Clone()
	return nil
}

// Get loads a record copy, or (nil, nil) when absent.
func (r *RecordRepository) Get(ctx context.Context, id string) (*settlement.SettlementRecord, error) {
	_ = ctx
	r.mu.RLock()
	record := r.data[id]
	r.mu.RUnlock()
	return record.Clone(), nil
}

// Update persists a mutated record when the caller still holds the
// current version; a concurrent writer having bumped it first yields
// ErrVersionConflict.
func (r *RecordRepository) Update(ctx context.Context, record *settlement.SettlementRecord) error {
	_ = ctx
	if record == nil {
		return settlement.ErrNilRecord
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[record.ID]
	if !ok {
		return settlement.ErrNotFound
	}
	if stored.Version != record.Version {
		return settlement.ErrVersionConflict
	}
	record.Version++
	r.data[record.ID] = record.Clone()
	return nil
}

// FindPrevious returns the customer record with the latest period end
// strictly before the boundary, or (nil, nil).
func (r *RecordRepository) FindPrevious(ctx context.Context, customerID string, before time.Time) (*settlement.SettlementRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *settlement.SettlementRecord
	for _, record := range r.data {
		if record.CustomerID != customerID || !record.PeriodEnd.Before(before) {
			continue
		}
		if latest == nil || record.PeriodEnd.After(latest.PeriodEnd) {
			latest = record
		}
	}
	return latest.Clone(), nil
}

// ListByCustomer returns the customer's records, for assertions.
func (r *RecordRepository) ListByCustomer(ctx context.Context, customerID string) ([]*settlement.SettlementRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*settlement.SettlementRecord
	for _, record := range r.data {
		if record.CustomerID == customerID {
			records = append(records, record.Clone())
		}
	}
	return records, nil
}

// ConfigRepository is an in-memory pricing configuration store.
type ConfigRepository struct {
	mu      sync.RWMutex
	configs map[string][]settlement.PricingConfiguration
}

// NewConfigRepository constructs the store.
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{configs: make(map[string][]settlement.PricingConfiguration)}
}

// Put registers a configuration for its customer.
func (r *ConfigRepository) Put(config settlement.PricingConfiguration) {
	r.mu.Lock()
	r.configs[config.CustomerID] = append(r.configs[config.CustomerID], config)
	r.mu.Unlock()
}

// FindActiveByCustomer returns the customer's active configurations.
func (r *ConfigRepository) FindActiveByCustomer(ctx context.Context, customerID string) ([]settlement.PricingConfiguration, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []settlement.PricingConfiguration
	for _, config := range r.configs[customerID] {
		if config.Active {
			active = append(active, config)
		}
	}
	return active, nil
}

// UsageStore is an in-memory usage source.
type UsageStore struct {
	mu   sync.RWMutex
	data map[string]decimal.Decimal
}

// NewUsageStore constructs the store.
func NewUsageStore() *UsageStore {
	return &UsageStore{data: make(map[string]decimal.Decimal)}
}

// Set records the usage for a customer and period.
func (s *UsageStore) Set(customerID string, periodStart, periodEnd time.Time, quantity decimal.Decimal) {
	s.mu.Lock()
	s.data[usageKey(customerID, periodStart, periodEnd)] = quantity
	s.mu.Unlock()
}

// Usage returns the recorded quantity. An unknown customer+period is a
// usage source failure, surfaced as a per-customer batch error.
func (s *UsageStore) Usage(ctx context.Context, customerID string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	_ = ctx
	s.mu.RLock()
	quantity, ok := s.data[usageKey(customerID, periodStart, periodEnd)]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero, settlement.ErrUsageUnavailable
	}
	return quantity, nil
}

// CustomerList is a static customer source.
type CustomerList []string

// ListCustomerIDs returns the configured ids.
func (c CustomerList) ListCustomerIDs(ctx context.Context) ([]string, error) {
	_ = ctx
	return append([]string(nil), c...), nil
}

func usageKey(customerID string, periodStart, periodEnd time.Time) string {
	return customerID + "|" + periodStart.UTC().Format(time.RFC3339) + "|" + periodEnd.UTC().Format(time.RFC3339)
}
