package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	settlement "settlement-engine/internal/settlement/domain"
)

// ConfigRepository resolves pricing configurations from postgres. The
// engine only reads; configuration writes belong to the surrounding
// management system.
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository constructs a repository.
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// FindActiveByCustomer returns every active configuration for the
// customer, tiers attached in level order. The resolver decides what an
// empty or ambiguous result means.
func (r *ConfigRepository) FindActiveByCustomer(ctx context.Context, customerID string) ([]settlement.PricingConfiguration, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("config repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, customer_id, price_model, unit_price, currency
FROM price_configs
WHERE customer_id = $1 AND is_active
ORDER BY id ASC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []settlement.PricingConfiguration
	for rows.Next() {
		var (
			config settlement.PricingConfiguration
			model  string
			price  string
		)
		if err := rows.Scan(&config.ID, &config.CustomerID, &model, &price, &config.Currency); err != nil {
			return nil, err
		}
		config.Model = settlement.PriceModel(model)
		if config.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		config.Active = true
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range configs {
		tiers, err := r.listTiers(ctx, configs[i].ID)
		if err != nil {
			return nil, err
		}
		configs[i].Tiers = tiers
	}
	return configs, nil
}

func (r *ConfigRepository) listTiers(ctx context.Context, configID string) ([]settlement.Tier, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT tier_level, min_quantity, max_quantity, unit_price
FROM price_tiers
WHERE config_id = $1
ORDER BY tier_level ASC`, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []settlement.Tier
	for rows.Next() {
		var (
			tier     settlement.Tier
			minQty   string
			maxQty   sql.NullString
			price    string
		)
		if err := rows.Scan(&tier.Level, &minQty, &maxQty, &price); err != nil {
			return nil, err
		}
		if tier.MinQuantity, err = decimal.NewFromString(minQty); err != nil {
			return nil, err
		}
		if maxQty.Valid {
			max, err := decimal.NewFromString(maxQty.String)
			if err != nil {
				return nil, err
			}
			tier.MaxQuantity = &max
		}
		if tier.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tiers, nil
}
