package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"settlement-engine/internal/observability/metrics"
	settlement "settlement-engine/internal/settlement/domain"
)

const (
	GenerationStatusCompleted = "completed"
	GenerationStatusPartial   = "partial"
)

const defaultWorkers = 4

// GenerationError reports one customer that could not be settled.
type GenerationError struct {
	CustomerID string
	Error      string
}

// GenerationResult aggregates per-customer outcomes of one batch run.
type GenerationResult struct {
	GenerationID   string
	TotalCustomers int
	Generated      int
	Failed         int
	Errors         []GenerationError
	Status         string
}

// BatchGenerator orchestrates resolve → usage → calculate → create across
// a set of customers for one period. Customers are processed by a bounded
// worker pool; each customer's pipeline touches only that customer's data,
// so no cross-customer coordination is needed.
type BatchGenerator struct {
	resolver   *PricingResolver
	calculator Calculator
	usage      settlement.UsageSource
	records    settlement.RecordRepository
	customers  settlement.CustomerSource
	publisher  StatusPublisher
	clock      Clock
	workers    int
	unit       string
}

// NewBatchGenerator constructs the generator. workers <= 0 selects the
// default pool size.
func NewBatchGenerator(
	resolver *PricingResolver,
	usage settlement.UsageSource,
	records settlement.RecordRepository,
	customers settlement.CustomerSource,
	publisher StatusPublisher,
	clock Clock,
	workers int,
	unit string,
) (*BatchGenerator, error) {
	if resolver == nil {
		return nil, errors.New("batch generator: nil pricing resolver")
	}
	if usage == nil {
		return nil, errors.New("batch generator: nil usage source")
	}
	if records == nil {
		return nil, errors.New("batch generator: nil record repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if unit == "" {
		unit = "units"
	}
	return &BatchGenerator{
		resolver:  resolver,
		usage:     usage,
		records:   records,
		customers: customers,
		publisher: publisher,
		clock:     clock,
		workers:   workers,
		unit:      unit,
	}, nil
}

// Generate settles the period for the given customers, or for all known
// customers when customerIDs is empty. A failing customer is recorded and
// processing continues; the batch never aborts because one customer
// failed. On context cancellation the customers already settled stay
// committed and the partial result is returned alongside the context
// error.
func (g *BatchGenerator) Generate(ctx context.Context, customerIDs []string, periodStart, periodEnd time.Time, generatedBy string) (GenerationResult, error) {
	start := g.clock.Now()
	outcome := metrics.ResultSuccess
	defer func() {
		metrics.ObserveBatchGenerate(outcome, time.Since(start))
	}()

	result := GenerationResult{GenerationID: uuid.NewString()}

	if len(customerIDs) == 0 {
		if g.customers == nil {
			outcome = metrics.ResultError
			return result, errors.New("batch generator: no customer ids and no customer source")
		}
		all, err := g.customers.ListCustomerIDs(ctx)
		if err != nil {
			outcome = metrics.ResultError
			return result, err
		}
		customerIDs = all
	}
	result.TotalCustomers = len(customerIDs)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, g.workers)
	)
	ctxErr := error(nil)

	for _, customerID := range customerIDs {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(customerID string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := g.generateOne(ctx, customerID, periodStart, periodEnd, generatedBy)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, GenerationError{CustomerID: customerID, Error: err.Error()})
				metrics.IncBatchCustomer(metrics.ResultError)
				return
			}
			result.Generated++
			metrics.IncBatchCustomer(metrics.ResultSuccess)
		}(customerID)
	}
	wg.Wait()

	result.Status = GenerationStatusCompleted
	if result.Failed > 0 || result.Generated < result.TotalCustomers {
		result.Status = GenerationStatusPartial
	}
	if result.Failed > 0 || ctxErr != nil {
		outcome = metrics.ResultError
	}
	return result, ctxErr
}

// generateOne runs the full pipeline for a single customer and persists a
// pending record carrying the frozen pricing snapshot.
func (g *BatchGenerator) generateOne(ctx context.Context, customerID string, periodStart, periodEnd time.Time, generatedBy string) error {
	config, err := g.resolver.Resolve(ctx, customerID, periodStart, periodEnd)
	if err != nil {
		return err
	}
	quantity, err := g.usage.Usage(ctx, customerID, periodStart, periodEnd)
	if err != nil {
		return err
	}
	calcStart := g.clock.Now()
	calc, err := g.calculator.Calculate(config, quantity)
	if err != nil {
		metrics.ObserveCalculate(metrics.ResultError, time.Since(calcStart))
		return err
	}
	metrics.ObserveCalculate(metrics.ResultSuccess, time.Since(calcStart))

	now := g.clock.Now().UTC()
	record := &settlement.SettlementRecord{
		ID:            uuid.NewString(),
		CustomerID:    customerID,
		ConfigID:      config.ID,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		UsageQuantity: quantity,
		Unit:          g.unit,
		Model:         calc.Model,
		UnitPrice:     calc.UnitPrice,
		TotalAmount:   calc.TotalAmount,
		Currency:      config.Currency,
		Formula:       calc.Formula,
		Breakdown:     calc.Breakdown,
		Status:        settlement.StatusPending,
		GeneratedBy:   generatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := g.records.Create(ctx, record); err != nil {
		return err
	}

	if g.publisher != nil {
		_ = g.publisher.PublishSettlementGenerated(ctx, SettlementGenerated{
			RecordID:    record.ID,
			CustomerID:  customerID,
			TotalAmount: record.TotalAmount,
			Currency:    record.Currency,
			OccurredAt:  now,
		})
	}
	return nil
}
