package generator

import "time"

// Config holds configuration for the price series generator.
type Config struct {
	// HistoryVolatility scales each step of the historical walk.
	HistoryVolatility float64 `yaml:"history_volatility" split_words:"true"`
	// ForecastVolatility scales each step of the forecast walk.
	ForecastVolatility float64 `yaml:"forecast_volatility" split_words:"true"`
	// Seed makes the walk reproducible. Zero seeds from the wall clock.
	Seed int64 `yaml:"seed" split_words:"true"`
	// Now anchors the dates of generated points. Defaults to time.Now.
	Now func() time.Time `yaml:"-" ignored:"true"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		HistoryVolatility:  0.1,
		ForecastVolatility: 0.1,
		Now:                time.Now,
	}
}
