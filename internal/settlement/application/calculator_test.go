package application_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"settlement-engine/internal/settlement/application"
	settlement "settlement-engine/internal/settlement/domain"
)

func TestCalculate_SingleModel(t *testing.T) {
	config := settlement.PricingConfiguration{
		ID:         "cfg-single",
		CustomerID: "customer-1",
		Model:      settlement.ModelSingle,
		UnitPrice:  dec("0.10"),
		Active:     true,
		Currency:   "CNY",
	}

	result, err := application.Calculator{}.Calculate(config, dec("100"))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !result.TotalAmount.Equal(dec("10.00")) {
		t.Fatalf("total mismatch: got=%s want=10.00", result.TotalAmount)
	}
	if !result.UnitPrice.Equal(dec("0.10")) {
		t.Fatalf("unit price mismatch: got=%s want=0.10", result.UnitPrice)
	}
	if len(result.Breakdown) != 1 {
		t.Fatalf("expected 1 breakdown line, got %d", len(result.Breakdown))
	}
	if result.Breakdown[0].Range != "0-∞" {
		t.Fatalf("range mismatch: got=%s", result.Breakdown[0].Range)
	}
}

func TestCalculate_ProgressiveTiers(t *testing.T) {
	config := progressiveConfig()

	result, err := application.Calculator{}.Calculate(config, dec("600"))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !result.TotalAmount.Equal(dec("47.00")) {
		t.Fatalf("total mismatch: got=%s want=47.00", result.TotalAmount)
	}
	if len(result.Breakdown) != 3 {
		t.Fatalf("expected 3 breakdown lines, got %d", len(result.Breakdown))
	}

	wantQuantities := []string{"100", "400", "100"}
	wantAmounts := []string{"10", "32", "5"}
	sum := decimal.Zero
	for i, line := range result.Breakdown {
		if !line.Quantity.Equal(dec(wantQuantities[i])) {
			t.Fatalf("line %d quantity mismatch: got=%s want=%s", i, line.Quantity, wantQuantities[i])
		}
		if !line.Amount.Equal(dec(wantAmounts[i])) {
			t.Fatalf("line %d amount mismatch: got=%s want=%s", i, line.Amount, wantAmounts[i])
		}
		sum = sum.Add(line.Quantity)
	}
	if !sum.Equal(dec("600")) {
		t.Fatalf("breakdown quantities must sum to usage: got=%s want=600", sum)
	}
}

func TestCalculate_ProgressiveWithinFirstTier(t *testing.T) {
	result, err := application.Calculator{}.Calculate(progressiveConfig(), dec("50"))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !result.TotalAmount.Equal(dec("5.00")) {
		t.Fatalf("total mismatch: got=%s want=5.00", result.TotalAmount)
	}
	if len(result.Breakdown) != 1 {
		t.Fatalf("expected 1 breakdown line, got %d", len(result.Breakdown))
	}
}

func TestCalculate_ProgressiveWithoutTiers(t *testing.T) {
	config := progressiveConfig()
	config.Tiers = nil

	_, err := application.Calculator{}.Calculate(config, dec("50"))
	if !errors.Is(err, settlement.ErrCalculation) {
		t.Fatalf("expected ErrCalculation, got %v", err)
	}
}

func TestCalculate_BracketModel(t *testing.T) {
	config := progressiveConfig()
	config.Model = settlement.ModelBracket

	result, err := application.Calculator{}.Calculate(config, dec("150"))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !result.TotalAmount.Equal(dec("12.00")) {
		t.Fatalf("total mismatch: got=%s want=12.00", result.TotalAmount)
	}
	if !result.UnitPrice.Equal(dec("0.08")) {
		t.Fatalf("unit price mismatch: got=%s want=0.08", result.UnitPrice)
	}
	if len(result.Breakdown) != 1 {
		t.Fatalf("expected 1 breakdown line, got %d", len(result.Breakdown))
	}
	if result.Breakdown[0].Range != "100-500" {
		t.Fatalf("range mismatch: got=%s want=100-500", result.Breakdown[0].Range)
	}
}

func TestCalculate_BracketNoMatchingTier(t *testing.T) {
	max := dec("100")
	config := settlement.PricingConfiguration{
		ID:    "cfg-bounded",
		Model: settlement.ModelBracket,
		Tiers: []settlement.Tier{
			{Level: 1, MinQuantity: dec("0"), MaxQuantity: &max, UnitPrice: dec("0.10")},
		},
	}

	_, err := application.Calculator{}.Calculate(config, dec("150"))
	if !errors.Is(err, settlement.ErrNoMatchingBracket) {
		t.Fatalf("expected ErrNoMatchingBracket, got %v", err)
	}
}

func TestCalculate_BracketWithoutTiersFallsBackToFlatRate(t *testing.T) {
	config := settlement.PricingConfiguration{
		ID:        "cfg-flat",
		Model:     settlement.ModelBracket,
		UnitPrice: dec("0.10"),
	}

	result, err := application.Calculator{}.Calculate(config, dec("100"))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !result.TotalAmount.Equal(dec("10.00")) {
		t.Fatalf("total mismatch: got=%s want=10.00", result.TotalAmount)
	}
	if result.Model != settlement.ModelBracket {
		t.Fatalf("model mismatch: got=%s", result.Model)
	}
}

func TestCalculate_UnknownModel(t *testing.T) {
	config := settlement.PricingConfiguration{ID: "cfg-odd", Model: "timeOfUse"}

	_, err := application.Calculator{}.Calculate(config, dec("10"))
	if !errors.Is(err, settlement.ErrUnsupportedPricingModel) {
		t.Fatalf("expected ErrUnsupportedPricingModel, got %v", err)
	}
}

func TestCalculate_IsDeterministic(t *testing.T) {
	config := progressiveConfig()

	first, err := application.Calculator{}.Calculate(config, dec("600"))
	if err != nil {
		t.Fatalf("first calculate: %v", err)
	}
	second, err := application.Calculator{}.Calculate(config, dec("600"))
	if err != nil {
		t.Fatalf("second calculate: %v", err)
	}

	if !first.TotalAmount.Equal(second.TotalAmount) {
		t.Fatalf("totals differ: %s vs %s", first.TotalAmount, second.TotalAmount)
	}
	if first.Formula != second.Formula || len(first.Breakdown) != len(second.Breakdown) {
		t.Fatalf("results differ between identical calls")
	}
}

// progressiveConfig returns the three-tier ladder 0-100 @0.10,
// 100-500 @0.08, 500-∞ @0.05.
func progressiveConfig() settlement.PricingConfiguration {
	max1 := dec("100")
	max2 := dec("500")
	return settlement.PricingConfiguration{
		ID:         "cfg-tiered",
		CustomerID: "customer-1",
		Model:      settlement.ModelProgressiveTiered,
		Tiers: []settlement.Tier{
			{Level: 1, MinQuantity: dec("0"), MaxQuantity: &max1, UnitPrice: dec("0.10")},
			{Level: 2, MinQuantity: dec("100"), MaxQuantity: &max2, UnitPrice: dec("0.08")},
			{Level: 3, MinQuantity: dec("500"), UnitPrice: dec("0.05")},
		},
		Active:   true,
		Currency: "CNY",
	}
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
