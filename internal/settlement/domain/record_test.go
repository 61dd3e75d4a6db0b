package settlement_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	settlement "settlement-engine/internal/settlement/domain"
)

var transitionTime = time.Date(2026, time.August, 5, 10, 0, 0, 0, time.UTC)

func TestApprove_FromPending(t *testing.T) {
	record := pendingRecord()

	if err := record.Approve("ops", "looks fine", transitionTime); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if record.Status != settlement.StatusApproved {
		t.Fatalf("status mismatch: got=%s want=%s", record.Status, settlement.StatusApproved)
	}
	if record.ApprovedBy != "ops" || record.ApprovalRemarks != "looks fine" {
		t.Fatalf("approval metadata not recorded")
	}
	if !record.ApprovedAt.Equal(transitionTime) {
		t.Fatalf("approved at mismatch: got=%s", record.ApprovedAt)
	}
}

func TestApprove_TwiceKeepsOriginalMetadata(t *testing.T) {
	record := pendingRecord()
	if err := record.Approve("first", "", transitionTime); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	err := record.Approve("second", "", transitionTime.Add(time.Hour))
	if !errors.Is(err, settlement.ErrAlreadyApproved) {
		t.Fatalf("expected ErrAlreadyApproved, got %v", err)
	}
	if record.ApprovedBy != "first" {
		t.Fatalf("approver overwritten: got=%s want=first", record.ApprovedBy)
	}
	if !record.ApprovedAt.Equal(transitionTime) {
		t.Fatalf("approval time overwritten: got=%s", record.ApprovedAt)
	}
}

func TestApprove_RequiresActor(t *testing.T) {
	record := pendingRecord()

	err := record.Approve("  ", "", transitionTime)
	if !errors.Is(err, settlement.ErrActorRequired) {
		t.Fatalf("expected ErrActorRequired, got %v", err)
	}
	if record.Status != settlement.StatusPending {
		t.Fatalf("failed guard must not mutate: got=%s", record.Status)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	record := pendingRecord()

	err := record.Reject("ops", "   ", transitionTime)
	if !errors.Is(err, settlement.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if record.Status != settlement.StatusPending {
		t.Fatalf("failed guard must not mutate: got=%s", record.Status)
	}
}

func TestReject_IsTerminal(t *testing.T) {
	record := pendingRecord()
	if err := record.Reject("ops", "period under dispute", transitionTime); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if err := record.Approve("ops", "", transitionTime); !errors.Is(err, settlement.ErrAlreadyRejected) {
		t.Fatalf("expected ErrAlreadyRejected on approve, got %v", err)
	}
	if err := record.MarkPaid(transitionTime); !errors.Is(err, settlement.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on pay, got %v", err)
	}
}

func TestMarkPaid_OnlyFromApproved(t *testing.T) {
	record := pendingRecord()

	if err := record.MarkPaid(transitionTime); !errors.Is(err, settlement.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from pending, got %v", err)
	}

	if err := record.Approve("ops", "", transitionTime); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := record.MarkPaid(transitionTime.Add(time.Hour)); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if record.Status != settlement.StatusPaid {
		t.Fatalf("status mismatch: got=%s want=%s", record.Status, settlement.StatusPaid)
	}

	if err := record.Approve("ops", "", transitionTime); !errors.Is(err, settlement.ErrInvalidTransition) {
		t.Fatalf("paid must be terminal, got %v", err)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	record := pendingRecord()
	record.Breakdown = []settlement.BreakdownLine{{
		Range:    "0-∞",
		Quantity: decimal.NewFromInt(100),
	}}
	record.ValidationErrors = []string{"original"}

	clone := record.Clone()
	clone.Status = settlement.StatusApproved
	clone.Breakdown[0].Range = "mutated"
	clone.ValidationErrors[0] = "mutated"

	if record.Status != settlement.StatusPending {
		t.Fatalf("clone mutation leaked into status")
	}
	if record.Breakdown[0].Range != "0-∞" {
		t.Fatalf("clone mutation leaked into breakdown")
	}
	if record.ValidationErrors[0] != "original" {
		t.Fatalf("clone mutation leaked into validation errors")
	}
}

func TestClone_NilReceiver(t *testing.T) {
	var record *settlement.SettlementRecord
	if record.Clone() != nil {
		t.Fatalf("nil clone must stay nil")
	}
}

func pendingRecord() *settlement.SettlementRecord {
	return &settlement.SettlementRecord{
		ID:            "rec-1",
		CustomerID:    "customer-1",
		PeriodStart:   time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		UsageQuantity: decimal.NewFromInt(100),
		UnitPrice:     decimal.RequireFromString("0.10"),
		TotalAmount:   decimal.RequireFromString("10.00"),
		Status:        settlement.StatusPending,
	}
}
