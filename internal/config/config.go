package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tolerances defines validation thresholds.
type Tolerances struct {
	UnitPriceRatio float64 `yaml:"unit_price_ratio"`
	AmountAbsolute float64 `yaml:"amount_absolute"`
	ChangePercent  float64 `yaml:"change_percent"`
}

// Schedule defines the monthly generation schedule.
type Schedule struct {
	// DayOfMonth is the day the previous month's settlements are
	// generated. Zero disables scheduled generation.
	DayOfMonth int    `yaml:"day_of_month"`
	At         string `yaml:"at"`
}

// Config defines engine configuration.
type Config struct {
	DatabaseURL string     `yaml:"database_url"`
	HTTPAddr    string     `yaml:"http_addr"`
	Currency    string     `yaml:"currency"`
	Unit        string     `yaml:"unit"`
	Workers     int        `yaml:"workers"`
	Tolerances  Tolerances `yaml:"tolerances"`
	Schedule    Schedule   `yaml:"schedule"`
	Customers   []string   `yaml:"customers"`
}

// Load reads config from the SETTLEMENT_CONFIG yaml file with env
// fallbacks for the common knobs.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		Currency:    getenvDefault("CURRENCY", "CNY"),
		Unit:        getenvDefault("USAGE_UNIT", "units"),
		Workers:     getenvIntDefault("BATCH_WORKERS", 4),
		Tolerances: Tolerances{
			UnitPriceRatio: 0.01,
			AmountAbsolute: 0.01,
			ChangePercent:  50,
		},
	}

	if path := os.Getenv("SETTLEMENT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Schedule.DayOfMonth == 0 {
		cfg.Schedule.DayOfMonth = getenvIntDefault("GENERATE_DAY_OF_MONTH", 0)
	}
	if cfg.Schedule.At == "" {
		cfg.Schedule.At = getenvDefault("GENERATE_AT", "02:00")
	}
	if len(cfg.Customers) == 0 {
		cfg.Customers = splitCSV(getenvDefault("CUSTOMER_IDS", ""))
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Schedule.DayOfMonth < 0 || cfg.Schedule.DayOfMonth > 28 {
		return cfg, errors.New("config: schedule day_of_month must be 0..28")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
