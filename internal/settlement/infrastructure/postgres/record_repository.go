package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	settlement "settlement-engine/internal/settlement/domain"
)

// RecordRepository persists settlement records in postgres. Updates use
// an optimistic version check so concurrent transitions on one record
// cannot both succeed; the customer+period uniqueness constraint on the
// table serializes generation for overlapping periods.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository constructs a repository.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

type breakdownLineRow struct {
	Range     string `json:"range"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Amount    string `json:"amount"`
}

// Create inserts a new record at version 1.
func (r *RecordRepository) Create(ctx context.Context, record *settlement.SettlementRecord) error {
	if r == nil || r.db == nil {
		return errors.New("record repo: nil db")
	}
	if record == nil {
		return settlement.ErrNilRecord
	}

	breakdown, err := marshalBreakdown(record.Breakdown)
	if err != nil {
		return err
	}
	record.Version = 1
	_, err = r.db.ExecContext(ctx, `
INSERT INTO settlement_records (
	id, customer_id, config_id, period_start, period_end,
	usage_quantity, unit, price_model, unit_price, total_amount, currency,
	formula, calculation_breakdown, status, version, generated_by, remarks,
	created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)`,
		record.ID, record.CustomerID, record.ConfigID, record.PeriodStart, record.PeriodEnd,
		record.UsageQuantity.String(), record.Unit, string(record.Model),
		record.UnitPrice.String(), record.TotalAmount.String(), record.Currency,
		record.Formula, breakdown, record.Status, record.Version,
		record.GeneratedBy, record.Remarks, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return settlement.ErrDuplicatePeriod
	}
	return err
}

// Get loads a record, or (nil, nil) when absent.
func (r *RecordRepository) Get(ctx context.Context, id string) (*settlement.SettlementRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, selectRecordColumns+`
FROM settlement_records
WHERE id = $1
LIMIT 1`, id)
	return scanRecord(row)
}

// Update persists a mutated record when the version the caller read is
// still current. Zero matched rows means either a concurrent writer won
// or the record is gone; the two are told apart by a follow-up read.
func (r *RecordRepository) Update(ctx context.Context, record *settlement.SettlementRecord) error {
	if r == nil || r.db == nil {
		return errors.New("record repo: nil db")
	}
	if record == nil {
		return settlement.ErrNilRecord
	}

	breakdown, err := marshalBreakdown(record.Breakdown)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE settlement_records
SET status = $1, version = version + 1,
	approved_at = $2, approved_by = $3, approval_remarks = $4,
	rejected_at = $5, rejected_by = $6, rejection_reason = $7,
	paid_at = $8,
	validation_status = $9, validation_errors = $10, validation_warnings = $11,
	validated_at = $12, validated_by = $13,
	calculation_breakdown = $14, updated_at = $15
WHERE id = $16 AND version = $17`,
		record.Status,
		nullTime(record.ApprovedAt), nullString(record.ApprovedBy), nullString(record.ApprovalRemarks),
		nullTime(record.RejectedAt), nullString(record.RejectedBy), nullString(record.RejectionReason),
		nullTime(record.PaidAt),
		nullString(record.ValidationStatus), marshalStrings(record.ValidationErrors), marshalStrings(record.ValidationWarnings),
		nullTime(record.ValidatedAt), nullString(record.ValidatedBy),
		breakdown, record.UpdatedAt,
		record.ID, record.Version,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, err := r.Get(ctx, record.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return settlement.ErrNotFound
		}
		return settlement.ErrVersionConflict
	}
	record.Version++
	return nil
}

// FindPrevious returns the customer's record with the latest period end
// strictly before the boundary.
func (r *RecordRepository) FindPrevious(ctx context.Context, customerID string, before time.Time) (*settlement.SettlementRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, selectRecordColumns+`
FROM settlement_records
WHERE customer_id = $1 AND period_end < $2
ORDER BY period_end DESC
LIMIT 1`, customerID, before)
	return scanRecord(row)
}

const selectRecordColumns = `
SELECT id, customer_id, config_id, period_start, period_end,
	usage_quantity, unit, price_model, unit_price, total_amount, currency,
	formula, calculation_breakdown, status, version, generated_by, remarks,
	approved_at, approved_by, approval_remarks,
	rejected_at, rejected_by, rejection_reason,
	paid_at, validation_status, validation_errors, validation_warnings,
	validated_at, validated_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*settlement.SettlementRecord, error) {
	var (
		record             settlement.SettlementRecord
		usage, price, total string
		model              string
		breakdown          []byte
		validationErrors   []byte
		validationWarnings []byte
		approvedAt         sql.NullTime
		approvedBy         sql.NullString
		approvalRemarks    sql.NullString
		rejectedAt         sql.NullTime
		rejectedBy         sql.NullString
		rejectionReason    sql.NullString
		paidAt             sql.NullTime
		validationStatus   sql.NullString
		validatedAt        sql.NullTime
		validatedBy        sql.NullString
		generatedBy        sql.NullString
		remarks            sql.NullString
	)
	err := row.Scan(
		&record.ID, &record.CustomerID, &record.ConfigID, &record.PeriodStart, &record.PeriodEnd,
		&usage, &record.Unit, &model, &price, &total, &record.Currency,
		&record.Formula, &breakdown, &record.Status, &record.Version, &generatedBy, &remarks,
		&approvedAt, &approvedBy, &approvalRemarks,
		&rejectedAt, &rejectedBy, &rejectionReason,
		&paidAt, &validationStatus, &validationErrors, &validationWarnings,
		&validatedAt, &validatedBy, &record.CreatedAt, &record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record.Model = settlement.PriceModel(model)
	if record.UsageQuantity, err = decimal.NewFromString(usage); err != nil {
		return nil, err
	}
	if record.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	if record.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if record.Breakdown, err = unmarshalBreakdown(breakdown); err != nil {
		return nil, err
	}
	if record.ValidationErrors, err = unmarshalStrings(validationErrors); err != nil {
		return nil, err
	}
	if record.ValidationWarnings, err = unmarshalStrings(validationWarnings); err != nil {
		return nil, err
	}

	record.ApprovedAt = approvedAt.Time
	record.ApprovedBy = approvedBy.String
	record.ApprovalRemarks = approvalRemarks.String
	record.RejectedAt = rejectedAt.Time
	record.RejectedBy = rejectedBy.String
	record.RejectionReason = rejectionReason.String
	record.PaidAt = paidAt.Time
	record.ValidationStatus = validationStatus.String
	record.ValidatedAt = validatedAt.Time
	record.ValidatedBy = validatedBy.String
	record.GeneratedBy = generatedBy.String
	record.Remarks = remarks.String
	record.PeriodStart = record.PeriodStart.UTC()
	record.PeriodEnd = record.PeriodEnd.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}

func marshalBreakdown(lines []settlement.BreakdownLine) ([]byte, error) {
	rows := make([]breakdownLineRow, len(lines))
	for i, line := range lines {
		rows[i] = breakdownLineRow{
			Range:     line.Range,
			Quantity:  line.Quantity.String(),
			UnitPrice: line.UnitPrice.String(),
			Amount:    line.Amount.String(),
		}
	}
	return json.Marshal(rows)
}

func unmarshalBreakdown(data []byte) ([]settlement.BreakdownLine, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rows []breakdownLineRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	lines := make([]settlement.BreakdownLine, len(rows))
	for i, row := range rows {
		quantity, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(row.UnitPrice)
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, err
		}
		lines[i] = settlement.BreakdownLine{Range: row.Range, Quantity: quantity, UnitPrice: price, Amount: amount}
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return lines, nil
}

func marshalStrings(values []string) []byte {
	data, err := json.Marshal(values)
	if err != nil {
		return []byte("[]")
	}
	return data
}

func unmarshalStrings(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation matches the postgres unique_violation SQLSTATE 23505
// surfaced through the pgx stdlib driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
