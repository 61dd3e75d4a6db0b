package settlement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusPaid     = "paid"
)

const (
	ValidationStatusValidated = "validated"
	ValidationStatusInvalid   = "invalid"
)

// BreakdownLine is one step of the frozen calculation audit trail.
type BreakdownLine struct {
	Range     string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

// SettlementRecord is one billing computation for one customer and period.
// Pricing inputs and outputs are a frozen snapshot taken at calculation
// time and are never re-derived from the live configuration.
type SettlementRecord struct {
	ID         string
	CustomerID string
	ConfigID   string

	PeriodStart time.Time
	PeriodEnd   time.Time

	UsageQuantity decimal.Decimal
	Unit          string
	Model         PriceModel
	UnitPrice     decimal.Decimal
	TotalAmount   decimal.Decimal
	Currency      string
	Formula       string
	Breakdown     []BreakdownLine

	Status  string
	Version int

	GeneratedBy string
	Remarks     string

	ApprovedAt      time.Time
	ApprovedBy      string
	ApprovalRemarks string

	RejectedAt      time.Time
	RejectedBy      string
	RejectionReason string

	PaidAt time.Time

	ValidationStatus   string
	ValidationErrors   []string
	ValidationWarnings []string
	ValidatedAt        time.Time
	ValidatedBy        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Approve transitions the record to approved. The guard runs before any
// mutation so a failed call leaves the record untouched.
func (r *SettlementRecord) Approve(approvedBy, remarks string, at time.Time) error {
	if strings.TrimSpace(approvedBy) == "" {
		return ErrActorRequired
	}
	if err := r.guardTransition(StatusApproved); err != nil {
		return err
	}
	r.Status = StatusApproved
	r.ApprovedAt = at
	r.ApprovedBy = approvedBy
	r.ApprovalRemarks = remarks
	r.UpdatedAt = at
	return nil
}

// Reject transitions the record to the terminal rejected status.
// A reason is mandatory.
func (r *SettlementRecord) Reject(rejectedBy, reason string, at time.Time) error {
	if strings.TrimSpace(rejectedBy) == "" {
		return ErrActorRequired
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if err := r.guardTransition(StatusRejected); err != nil {
		return err
	}
	r.Status = StatusRejected
	r.RejectedAt = at
	r.RejectedBy = rejectedBy
	r.RejectionReason = reason
	r.UpdatedAt = at
	return nil
}

// MarkPaid transitions an approved record to the terminal paid status.
func (r *SettlementRecord) MarkPaid(at time.Time) error {
	if err := r.guardTransition(StatusPaid); err != nil {
		return err
	}
	r.Status = StatusPaid
	r.PaidAt = at
	r.UpdatedAt = at
	return nil
}

// guardTransition rejects illegal status changes. Rejected and paid are
// terminal; there is no way back to pending.
func (r *SettlementRecord) guardTransition(to string) error {
	switch r.Status {
	case StatusPending:
		if to == StatusPaid {
			return ErrInvalidTransition
		}
		return nil
	case StatusApproved:
		if to == StatusPaid {
			return nil
		}
		if to == StatusApproved {
			return ErrAlreadyApproved
		}
		return ErrInvalidTransition
	case StatusRejected:
		if to == StatusPaid {
			return ErrInvalidTransition
		}
		return ErrAlreadyRejected
	case StatusPaid:
		return ErrInvalidTransition
	default:
		return ErrInvalidTransition
	}
}

// Clone returns a detached deep copy.
func (r *SettlementRecord) Clone() *SettlementRecord {
	if r == nil {
		return nil
	}
	copied := *r
	if r.Breakdown != nil {
		copied.Breakdown = make([]BreakdownLine, len(r.Breakdown))
		copy(copied.Breakdown, r.Breakdown)
	}
	if r.ValidationErrors != nil {
		copied.ValidationErrors = append([]string(nil), r.ValidationErrors...)
	}
	if r.ValidationWarnings != nil {
		copied.ValidationWarnings = append([]string(nil), r.ValidationWarnings...)
	}
	return &copied
}
