package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"settlement-engine/internal/observability/metrics"
	settlement "settlement-engine/internal/settlement/domain"
)

// conflictRetries bounds re-reads after a lost optimistic update.
const conflictRetries = 3

// BulkError reports one failed id inside a bulk operation.
type BulkError struct {
	ID    string
	Error string
}

// BulkResult aggregates per-id outcomes of a bulk transition.
type BulkResult struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    []BulkError
}

// Lifecycle governs settlement status transitions. Each transition is
// guarded on the domain record before any mutation, persisted through the
// record repository's optimistic update, and emitted to the audit sink.
type Lifecycle struct {
	records   settlement.RecordRepository
	publisher StatusPublisher
	clock     Clock
}

// NewLifecycle constructs the service. The publisher may be nil when no
// audit sink is wired.
func NewLifecycle(records settlement.RecordRepository, publisher StatusPublisher, clock Clock) (*Lifecycle, error) {
	if records == nil {
		return nil, errors.New("settlement lifecycle: nil record repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Lifecycle{records: records, publisher: publisher, clock: clock}, nil
}

// Approve transitions a pending record to approved.
func (l *Lifecycle) Approve(ctx context.Context, id, approvedBy, remarks string) (*settlement.SettlementRecord, error) {
	return l.transition(ctx, id, "approve", approvedBy, func(record *settlement.SettlementRecord) error {
		return record.Approve(approvedBy, remarks, l.clock.Now().UTC())
	})
}

// Reject transitions a pending record to the terminal rejected status.
// The reason is validated before the record is even loaded.
func (l *Lifecycle) Reject(ctx context.Context, id, rejectedBy, reason string) (*settlement.SettlementRecord, error) {
	if strings.TrimSpace(reason) == "" {
		metrics.ObserveApproval("reject", metrics.ResultError, 0)
		return nil, settlement.ErrReasonRequired
	}
	return l.transition(ctx, id, "reject", rejectedBy, func(record *settlement.SettlementRecord) error {
		return record.Reject(rejectedBy, reason, l.clock.Now().UTC())
	})
}

// MarkPaid transitions an approved record to paid. A zero paidAt means
// the current time.
func (l *Lifecycle) MarkPaid(ctx context.Context, id string, paidAt time.Time) (*settlement.SettlementRecord, error) {
	if paidAt.IsZero() {
		paidAt = l.clock.Now().UTC()
	}
	return l.transition(ctx, id, "mark_paid", "", func(record *settlement.SettlementRecord) error {
		return record.MarkPaid(paidAt)
	})
}

// BulkApprove approves each id independently. One id's failure never
// prevents processing of the rest; every successful transition is
// persisted in its own store call and survives later failures.
func (l *Lifecycle) BulkApprove(ctx context.Context, ids []string, approvedBy string) (BulkResult, error) {
	return l.bulk(ctx, ids, func(id string) error {
		_, err := l.Approve(ctx, id, approvedBy, "")
		return err
	})
}

// BulkReject rejects each id independently with one shared reason.
func (l *Lifecycle) BulkReject(ctx context.Context, ids []string, rejectedBy, reason string) (BulkResult, error) {
	if strings.TrimSpace(reason) == "" {
		return BulkResult{Total: len(ids)}, settlement.ErrReasonRequired
	}
	return l.bulk(ctx, ids, func(id string) error {
		_, err := l.Reject(ctx, id, rejectedBy, reason)
		return err
	})
}

// transition loads, guards, mutates and persists one record. On a lost
// optimistic update the record is re-read so the caller observes the
// winning writer's state through the usual guard errors.
func (l *Lifecycle) transition(ctx context.Context, id, operation, actor string, apply func(*settlement.SettlementRecord) error) (*settlement.SettlementRecord, error) {
	start := l.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveApproval(operation, result, time.Since(start))
	}()

	for attempt := 0; ; attempt++ {
		record, err := l.records.Get(ctx, id)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		if record == nil {
			result = metrics.ResultError
			return nil, settlement.ErrNotFound
		}

		from := record.Status
		if err := apply(record); err != nil {
			result = metrics.ResultError
			return nil, err
		}

		err = l.records.Update(ctx, record)
		if errors.Is(err, settlement.ErrVersionConflict) && attempt < conflictRetries {
			continue
		}
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}

		l.publishStatusChanged(ctx, record, from, actor)
		return record, nil
	}
}

func (l *Lifecycle) bulk(ctx context.Context, ids []string, apply func(id string) error) (BulkResult, error) {
	result := BulkResult{Total: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			// Cooperative early stop: already-committed
			// transitions stay committed.
			return result, err
		}
		if err := apply(id); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkError{ID: id, Error: err.Error()})
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

func (l *Lifecycle) publishStatusChanged(ctx context.Context, record *settlement.SettlementRecord, from, actor string) {
	if l.publisher == nil {
		return
	}
	_ = l.publisher.PublishStatusChanged(ctx, StatusChanged{
		RecordID:   record.ID,
		FromStatus: from,
		ToStatus:   record.Status,
		Actor:      actor,
		OccurredAt: l.clock.Now().UTC(),
	})
}
