package integration_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	appsettlement "settlement-engine/internal/settlement/application"
	settlement "settlement-engine/internal/settlement/domain"
	"settlement-engine/internal/settlement/infrastructure/memory"
)

func TestLifecycle_ApproveThenPayClosedLoop(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRecordRepository()
	recorder := newEventRecorder()
	clock := fixedClock{now: time.Date(2026, time.August, 5, 10, 0, 0, 0, time.UTC)}

	lifecycle := newLifecycle(t, repo, recorder, clock)
	start, end := july2026()
	mustCreate(t, repo, pendingRecord("rec-1", "customer-1", start, end))

	approved, err := lifecycle.Approve(ctx, "rec-1", "finance", "monthly review passed")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != settlement.StatusApproved {
		t.Fatalf("status mismatch: got=%s want=%s", approved.Status, settlement.StatusApproved)
	}

	paid, err := lifecycle.MarkPaid(ctx, "rec-1", time.Time{})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != settlement.StatusPaid {
		t.Fatalf("status mismatch: got=%s want=%s", paid.Status, settlement.StatusPaid)
	}
	if !paid.PaidAt.Equal(clock.now.UTC()) {
		t.Fatalf("zero paidAt must default to the clock: got=%s", paid.PaidAt)
	}

	stored, err := repo.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != settlement.StatusPaid {
		t.Fatalf("persisted status mismatch: got=%s", stored.Status)
	}

	changes := recorder.StatusChanges()
	if len(changes) != 2 {
		t.Fatalf("expected 2 status events, got %d", len(changes))
	}
	if changes[0].FromStatus != settlement.StatusPending || changes[0].ToStatus != settlement.StatusApproved {
		t.Fatalf("first event mismatch: %+v", changes[0])
	}
	if changes[1].FromStatus != settlement.StatusApproved || changes[1].ToStatus != settlement.StatusPaid {
		t.Fatalf("second event mismatch: %+v", changes[1])
	}
}

func TestLifecycle_RejectIsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRecordRepository()
	lifecycle := newLifecycle(t, repo, newEventRecorder(), fixedClock{now: time.Now()})
	start, end := july2026()
	mustCreate(t, repo, pendingRecord("rec-1", "customer-1", start, end))

	if _, err := lifecycle.Reject(ctx, "rec-1", "finance", ""); !errors.Is(err, settlement.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	rejected, err := lifecycle.Reject(ctx, "rec-1", "finance", "usage disputed")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectionReason != "usage disputed" {
		t.Fatalf("reason mismatch: got=%s", rejected.RejectionReason)
	}

	if _, err := lifecycle.Approve(ctx, "rec-1", "finance", ""); !errors.Is(err, settlement.ErrAlreadyRejected) {
		t.Fatalf("expected ErrAlreadyRejected, got %v", err)
	}
	if _, err := lifecycle.MarkPaid(ctx, "rec-1", time.Time{}); !errors.Is(err, settlement.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestLifecycle_BulkApprovePartialFailure(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRecordRepository()
	lifecycle := newLifecycle(t, repo, newEventRecorder(), fixedClock{now: time.Now()})

	start, end := july2026()
	mustCreate(t, repo, pendingRecord("rec-1", "customer-1", start, end))
	mustCreate(t, repo, pendingRecord("rec-3", "customer-3", start, end))

	result, err := lifecycle.BulkApprove(ctx, []string{"rec-1", "rec-2", "rec-3"}, "finance")
	if err != nil {
		t.Fatalf("bulk approve: %v", err)
	}
	if result.Total != 3 || result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("result mismatch: %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].ID != "rec-2" {
		t.Fatalf("expected rec-2 failure, got %+v", result.Errors)
	}

	for _, id := range []string{"rec-1", "rec-3"} {
		stored, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if stored.Status != settlement.StatusApproved {
			t.Fatalf("%s must stay approved despite the failed id: got=%s", id, stored.Status)
		}
	}
}

func TestLifecycle_BulkApproveStopsOnCancelledContext(t *testing.T) {
	repo := memory.NewRecordRepository()
	lifecycle := newLifecycle(t, repo, newEventRecorder(), fixedClock{now: time.Now()})
	start, end := july2026()
	mustCreate(t, repo, pendingRecord("rec-1", "customer-1", start, end))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := lifecycle.BulkApprove(ctx, []string{"rec-1"}, "finance")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if result.Succeeded != 0 {
		t.Fatalf("no id should be processed after cancellation: %+v", result)
	}
}

func TestLifecycle_ConcurrentApproveSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRecordRepository()
	lifecycle := newLifecycle(t, repo, newEventRecorder(), fixedClock{now: time.Now()})
	start, end := july2026()
	mustCreate(t, repo, pendingRecord("rec-1", "customer-1", start, end))

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = lifecycle.Approve(ctx, "rec-1", "finance", "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, settlement.ErrAlreadyApproved):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning approval, got %d", wins)
	}
}

func newLifecycle(t *testing.T, repo settlement.RecordRepository, publisher appsettlement.StatusPublisher, clock appsettlement.Clock) *appsettlement.Lifecycle {
	t.Helper()
	lifecycle, err := appsettlement.NewLifecycle(repo, publisher, clock)
	if err != nil {
		t.Fatalf("new lifecycle: %v", err)
	}
	return lifecycle
}

func mustCreate(t *testing.T, repo *memory.RecordRepository, record *settlement.SettlementRecord) {
	t.Helper()
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("create %s: %v", record.ID, err)
	}
}

func pendingRecord(id, customerID string, start, end time.Time) *settlement.SettlementRecord {
	return &settlement.SettlementRecord{
		ID:            id,
		CustomerID:    customerID,
		ConfigID:      "cfg-1",
		PeriodStart:   start,
		PeriodEnd:     end,
		UsageQuantity: decimal.NewFromInt(100),
		Unit:          "kWh",
		Model:         settlement.ModelSingle,
		UnitPrice:     decimal.RequireFromString("0.10"),
		TotalAmount:   decimal.RequireFromString("10.00"),
		Currency:      "CNY",
		Status:        settlement.StatusPending,
	}
}

func july2026() (time.Time, time.Time) {
	start := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type eventRecorder struct {
	mu        sync.Mutex
	changes   []appsettlement.StatusChanged
	generated []appsettlement.SettlementGenerated
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{}
}

func (r *eventRecorder) PublishStatusChanged(_ context.Context, event appsettlement.StatusChanged) error {
	r.mu.Lock()
	r.changes = append(r.changes, event)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) PublishSettlementGenerated(_ context.Context, event appsettlement.SettlementGenerated) error {
	r.mu.Lock()
	r.generated = append(r.generated, event)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) StatusChanges() []appsettlement.StatusChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]appsettlement.StatusChanged(nil), r.changes...)
}

func (r *eventRecorder) Generated() []appsettlement.SettlementGenerated {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]appsettlement.SettlementGenerated(nil), r.generated...)
}
