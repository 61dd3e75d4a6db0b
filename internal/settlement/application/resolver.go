package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	settlement "settlement-engine/internal/settlement/domain"
)

// PricingResolver looks up the single active pricing configuration for a
// customer. An ambiguous state (more than one active configuration) is
// surfaced, never silently resolved.
type PricingResolver struct {
	configs settlement.ConfigRepository
}

// NewPricingResolver constructs a resolver.
func NewPricingResolver(configs settlement.ConfigRepository) (*PricingResolver, error) {
	if configs == nil {
		return nil, errors.New("pricing resolver: nil config repository")
	}
	return &PricingResolver{configs: configs}, nil
}

// Resolve returns the active configuration to use for the period.
func (r *PricingResolver) Resolve(ctx context.Context, customerID string, periodStart, periodEnd time.Time) (settlement.PricingConfiguration, error) {
	_ = periodStart
	_ = periodEnd
	if customerID == "" {
		return settlement.PricingConfiguration{}, fmt.Errorf("%w: empty customer id", settlement.ErrConfigurationNotFound)
	}

	active, err := r.configs.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		return settlement.PricingConfiguration{}, err
	}
	switch len(active) {
	case 0:
		return settlement.PricingConfiguration{}, fmt.Errorf("%w: customer %s", settlement.ErrConfigurationNotFound, customerID)
	case 1:
		return active[0], nil
	default:
		return settlement.PricingConfiguration{}, fmt.Errorf("%w: customer %s has %d active configurations", settlement.ErrAmbiguousConfiguration, customerID, len(active))
	}
}
