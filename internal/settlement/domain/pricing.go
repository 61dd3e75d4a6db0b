package settlement

import "github.com/shopspring/decimal"

// PriceModel identifies how usage is turned into an amount.
type PriceModel string

const (
	// ModelSingle bills the whole quantity at one unit price.
	ModelSingle PriceModel = "single"
	// ModelBracket bills the whole quantity at the price of the single
	// tier that contains it.
	ModelBracket PriceModel = "bracket"
	// ModelProgressiveTiered splits the quantity across tiers and bills
	// each portion at its own tier price.
	ModelProgressiveTiered PriceModel = "progressiveTiered"
)

// Known reports whether the model is one of the supported values.
func (m PriceModel) Known() bool {
	switch m {
	case ModelSingle, ModelBracket, ModelProgressiveTiered:
		return true
	}
	return false
}

// Tier is a contiguous quantity range with a unit price.
// MaxQuantity is nil for the open-ended last tier.
type Tier struct {
	Level       int
	MinQuantity decimal.Decimal
	MaxQuantity *decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Contains reports whether quantity falls inside the tier's half-open range.
func (t Tier) Contains(quantity decimal.Decimal) bool {
	if quantity.LessThan(t.MinQuantity) {
		return false
	}
	if t.MaxQuantity == nil {
		return true
	}
	return quantity.LessThan(*t.MaxQuantity)
}

// Open reports whether the tier has no upper bound.
func (t Tier) Open() bool { return t.MaxQuantity == nil }

// RangeLabel renders the tier range for breakdown audit trails.
func (t Tier) RangeLabel() string {
	if t.MaxQuantity == nil {
		return t.MinQuantity.String() + "-∞"
	}
	return t.MinQuantity.String() + "-" + t.MaxQuantity.String()
}

// PricingConfiguration is the active rate structure for a customer.
// Tier contiguity (levels 1..N without gaps, adjacent min/max boundaries)
// is guaranteed by the configuration management side and trusted here.
type PricingConfiguration struct {
	ID         string
	CustomerID string
	Model      PriceModel
	UnitPrice  decimal.Decimal
	Tiers      []Tier
	Active     bool
	Currency   string
}
