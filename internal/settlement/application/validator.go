package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"settlement-engine/internal/observability/metrics"
	settlement "settlement-engine/internal/settlement/domain"
)

// IssueCode identifies a validation finding.
type IssueCode string

const (
	IssueUnitPriceMismatch   IssueCode = "UnitPriceMismatch"
	IssueTotalAmountMismatch IssueCode = "TotalAmountMismatch"
	IssueNegativeValue       IssueCode = "NegativeValue"
	IssueUsageSpike          IssueCode = "UsageSpike"
	IssueUsageDrop           IssueCode = "UsageDrop"
)

// Issue is one validation finding. ChangePercentage is set for usage
// spike and drop warnings.
type Issue struct {
	Code             IssueCode
	Message          string
	ChangePercentage decimal.Decimal
}

// ValidationResult aggregates the findings of all checks. Valid is the
// conjunction of the error-class checks; warnings never invalidate.
type ValidationResult struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue
}

// Tolerances configures the validation thresholds.
type Tolerances struct {
	// UnitPriceRatio is the allowed relative unit price deviation
	// against the configuration (spec default 1%).
	UnitPriceRatio decimal.Decimal
	// AmountAbsolute is the allowed absolute total deviation in
	// currency units (default 0.01).
	AmountAbsolute decimal.Decimal
	// ChangePercent is the usage change beyond which a spike or drop
	// warning fires (default 50).
	ChangePercent decimal.Decimal
}

// DefaultTolerances returns the standard thresholds.
func DefaultTolerances() Tolerances {
	return Tolerances{
		UnitPriceRatio: decimal.NewFromFloat(0.01),
		AmountAbsolute: decimal.NewFromFloat(0.01),
		ChangePercent:  decimal.NewFromInt(50),
	}
}

// ValidationEngine cross-checks a settlement record against its pricing
// configuration and the customer's prior settlement. Checks run
// independently; one failing check never short-circuits the rest.
type ValidationEngine struct {
	records settlement.RecordRepository
	clock   Clock
	tol     Tolerances
}

// NewValidationEngine constructs the engine. The record repository is
// used to load the prior settlement and to persist validation outcomes.
func NewValidationEngine(records settlement.RecordRepository, clock Clock, tol Tolerances) (*ValidationEngine, error) {
	if records == nil {
		return nil, errors.New("validation engine: nil record repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if tol.UnitPriceRatio.Sign() <= 0 {
		tol.UnitPriceRatio = DefaultTolerances().UnitPriceRatio
	}
	if tol.AmountAbsolute.Sign() <= 0 {
		tol.AmountAbsolute = DefaultTolerances().AmountAbsolute
	}
	if tol.ChangePercent.Sign() <= 0 {
		tol.ChangePercent = DefaultTolerances().ChangePercent
	}
	return &ValidationEngine{records: records, clock: clock, tol: tol}, nil
}

// Validate runs all checks against an explicit prior record. It is pure:
// nothing is loaded or persisted.
func (e *ValidationEngine) Validate(record *settlement.SettlementRecord, config settlement.PricingConfiguration, previous *settlement.SettlementRecord) ValidationResult {
	var result ValidationResult
	e.checkUnitPrice(record, config, &result)
	e.checkTotalAmount(record, &result)
	e.checkNegativeValues(record, &result)
	e.checkUsageChange(record, previous, &result)
	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateAndMark loads the prior settlement, runs Validate and persists
// the outcome on the record.
func (e *ValidationEngine) ValidateAndMark(ctx context.Context, record *settlement.SettlementRecord, config settlement.PricingConfiguration, validatedBy string) (ValidationResult, error) {
	if record == nil {
		return ValidationResult{}, settlement.ErrNilRecord
	}
	previous, err := e.records.FindPrevious(ctx, record.CustomerID, record.PeriodEnd)
	if err != nil {
		return ValidationResult{}, err
	}
	result := e.Validate(record, config, previous)

	record.ValidationStatus = settlement.ValidationStatusValidated
	if !result.Valid {
		record.ValidationStatus = settlement.ValidationStatusInvalid
	}
	metrics.IncValidation(record.ValidationStatus)
	record.ValidationErrors = issueMessages(result.Errors)
	record.ValidationWarnings = issueMessages(result.Warnings)
	record.ValidatedAt = e.clock.Now().UTC()
	record.ValidatedBy = validatedBy
	record.UpdatedAt = record.ValidatedAt
	if err := e.records.Update(ctx, record); err != nil {
		return result, err
	}
	return result, nil
}

// checkUnitPrice compares the frozen unit price against the configuration
// with a relative tolerance. Only the single-rate model snapshots the
// configuration price directly; bracket and progressive records carry a
// tier-derived price and are covered by the breakdown sum check instead.
func (e *ValidationEngine) checkUnitPrice(record *settlement.SettlementRecord, config settlement.PricingConfiguration, result *ValidationResult) {
	if record.Model != settlement.ModelSingle {
		return
	}
	diff := config.UnitPrice.Sub(record.UnitPrice).Abs()
	allowed := config.UnitPrice.Mul(e.tol.UnitPriceRatio)
	if diff.GreaterThan(allowed) {
		result.Errors = append(result.Errors, Issue{
			Code: IssueUnitPriceMismatch,
			Message: fmt.Sprintf("unit price mismatch: expected %s, recorded %s, difference %s",
				config.UnitPrice, record.UnitPrice, diff),
		})
	}
}

// checkTotalAmount recomputes the expected total. For the single-rate
// model that is usage × unit price; for bracket and progressive records
// the expected total is the sum of the frozen breakdown amounts.
func (e *ValidationEngine) checkTotalAmount(record *settlement.SettlementRecord, result *ValidationResult) {
	var expected decimal.Decimal
	if record.Model == settlement.ModelSingle || len(record.Breakdown) == 0 {
		expected = record.UsageQuantity.Mul(record.UnitPrice)
	} else {
		for _, line := range record.Breakdown {
			expected = expected.Add(line.Amount)
		}
	}
	diff := expected.Sub(record.TotalAmount).Abs()
	if diff.GreaterThan(e.tol.AmountAbsolute) {
		result.Errors = append(result.Errors, Issue{
			Code: IssueTotalAmountMismatch,
			Message: fmt.Sprintf("total amount mismatch: expected %s, recorded %s, difference %s",
				expected, record.TotalAmount, diff),
		})
	}
}

func (e *ValidationEngine) checkNegativeValues(record *settlement.SettlementRecord, result *ValidationResult) {
	negative := func(name string, value decimal.Decimal) {
		if value.Sign() < 0 {
			result.Errors = append(result.Errors, Issue{
				Code:    IssueNegativeValue,
				Message: fmt.Sprintf("%s must not be negative: %s", name, value),
			})
		}
	}
	negative("usage quantity", record.UsageQuantity)
	negative("unit price", record.UnitPrice)
	negative("total amount", record.TotalAmount)
}

// checkUsageChange compares usage against the immediately preceding
// settlement. Spikes and drops are warnings only and never invalidate.
func (e *ValidationEngine) checkUsageChange(record, previous *settlement.SettlementRecord, result *ValidationResult) {
	if previous == nil || previous.UsageQuantity.Sign() <= 0 {
		return
	}
	change := record.UsageQuantity.Sub(previous.UsageQuantity).
		Div(previous.UsageQuantity).
		Mul(decimal.NewFromInt(100))

	switch {
	case change.GreaterThan(e.tol.ChangePercent):
		result.Warnings = append(result.Warnings, Issue{
			Code: IssueUsageSpike,
			Message: fmt.Sprintf("usage spike: current %s is %s%% above previous %s",
				record.UsageQuantity, change.StringFixed(2), previous.UsageQuantity),
			ChangePercentage: change,
		})
	case change.LessThan(e.tol.ChangePercent.Neg()):
		result.Warnings = append(result.Warnings, Issue{
			Code: IssueUsageDrop,
			Message: fmt.Sprintf("usage drop: current %s is %s%% below previous %s",
				record.UsageQuantity, change.Abs().StringFixed(2), previous.UsageQuantity),
			ChangePercentage: change,
		})
	}
}

func issueMessages(issues []Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	messages := make([]string, len(issues))
	for i, issue := range issues {
		messages[i] = issue.Message
	}
	return messages
}
