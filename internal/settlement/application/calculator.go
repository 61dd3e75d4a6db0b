package application

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	settlement "settlement-engine/internal/settlement/domain"
)

const (
	formulaSingle      = "usage_quantity × unit_price"
	formulaBracket     = "usage_quantity × tier_unit_price"
	formulaProgressive = "Σ(tier_quantity × tier_unit_price)"
)

// CalculationResult is the outcome of one settlement computation.
// UnitPrice is the effective flat rate for single and bracket models and
// zero for progressive tiering, where no single rate exists.
type CalculationResult struct {
	Model       settlement.PriceModel
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
	Formula     string
	Breakdown   []settlement.BreakdownLine
}

// Calculator turns a pricing configuration and a usage quantity into a
// monetary amount with an itemized breakdown. It is a pure function of
// its inputs, holds no state and is safe to call concurrently.
type Calculator struct{}

// Calculate dispatches on the pricing model. The switch is exhaustive
// over the known models; anything else fails with
// ErrUnsupportedPricingModel.
func (Calculator) Calculate(config settlement.PricingConfiguration, usage decimal.Decimal) (CalculationResult, error) {
	switch config.Model {
	case settlement.ModelSingle:
		return calculateSingle(config, usage), nil
	case settlement.ModelBracket:
		return calculateBracket(config, usage)
	case settlement.ModelProgressiveTiered:
		return calculateProgressive(config, usage)
	default:
		return CalculationResult{}, fmt.Errorf("%w: %q", settlement.ErrUnsupportedPricingModel, config.Model)
	}
}

func calculateSingle(config settlement.PricingConfiguration, usage decimal.Decimal) CalculationResult {
	total := usage.Mul(config.UnitPrice)
	return CalculationResult{
		Model:       settlement.ModelSingle,
		UnitPrice:   config.UnitPrice,
		TotalAmount: total,
		Formula:     formulaSingle,
		Breakdown: []settlement.BreakdownLine{{
			Range:     "0-∞",
			Quantity:  usage,
			UnitPrice: config.UnitPrice,
			Amount:    total,
		}},
	}
}

// calculateBracket selects the single tier containing the usage quantity
// and applies that tier's price to the entire quantity. A configuration
// without tiers falls back to the flat unit price, matching configs that
// predate tier migration.
func calculateBracket(config settlement.PricingConfiguration, usage decimal.Decimal) (CalculationResult, error) {
	if len(config.Tiers) == 0 {
		result := calculateSingle(config, usage)
		result.Model = settlement.ModelBracket
		result.Formula = formulaBracket
		return result, nil
	}

	for _, tier := range sortedTiers(config.Tiers) {
		if !tier.Contains(usage) {
			continue
		}
		total := usage.Mul(tier.UnitPrice)
		return CalculationResult{
			Model:       settlement.ModelBracket,
			UnitPrice:   tier.UnitPrice,
			TotalAmount: total,
			Formula:     formulaBracket,
			Breakdown: []settlement.BreakdownLine{{
				Range:     tier.RangeLabel(),
				Quantity:  usage,
				UnitPrice: tier.UnitPrice,
				Amount:    total,
			}},
		}, nil
	}

	return CalculationResult{}, fmt.Errorf("%w: quantity %s", settlement.ErrNoMatchingBracket, usage)
}

// calculateProgressive walks the tiers in ascending level order, consuming
// the quantity against each tier's capacity and billing each consumed
// portion at its own tier price.
func calculateProgressive(config settlement.PricingConfiguration, usage decimal.Decimal) (CalculationResult, error) {
	if len(config.Tiers) == 0 {
		return CalculationResult{}, fmt.Errorf("%w: progressive configuration %s has no tiers", settlement.ErrCalculation, config.ID)
	}

	remaining := usage
	total := decimal.Zero
	var breakdown []settlement.BreakdownLine

	for _, tier := range sortedTiers(config.Tiers) {
		if remaining.Sign() <= 0 {
			break
		}
		var consumed decimal.Decimal
		if tier.Open() {
			consumed = remaining
		} else {
			capacity := tier.MaxQuantity.Sub(tier.MinQuantity)
			consumed = decimal.Min(remaining, capacity)
		}
		amount := consumed.Mul(tier.UnitPrice)
		total = total.Add(amount)
		breakdown = append(breakdown, settlement.BreakdownLine{
			Range:     tier.RangeLabel(),
			Quantity:  consumed,
			UnitPrice: tier.UnitPrice,
			Amount:    amount,
		})
		remaining = remaining.Sub(consumed)
	}

	return CalculationResult{
		Model:       settlement.ModelProgressiveTiered,
		TotalAmount: total,
		Formula:     formulaProgressive,
		Breakdown:   breakdown,
	}, nil
}

func sortedTiers(tiers []settlement.Tier) []settlement.Tier {
	sorted := make([]settlement.Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return sorted
}
