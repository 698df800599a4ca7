package datasource

import "time"

// SyntheticConfig holds configuration for the synthetic source.
type SyntheticConfig struct {
	// HistoryDays is the number of historical points per series.
	HistoryDays int `yaml:"history_days" split_words:"true"`
	// ForecastDays is the number of prediction points per series.
	ForecastDays int `yaml:"forecast_days" split_words:"true"`
	// MinLatency and MaxLatency bound the simulated request latency.
	MinLatency time.Duration `yaml:"min_latency" split_words:"true"`
	MaxLatency time.Duration `yaml:"max_latency" split_words:"true"`
	// FailureRate is the probability in [0,1) that a fetch fails.
	FailureRate float64 `yaml:"failure_rate" split_words:"true"`
}

// DefaultSyntheticConfig returns a SyntheticConfig with reasonable defaults.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		HistoryDays:  150,
		ForecastDays: 50,
		MinLatency:   100 * time.Millisecond,
		MaxLatency:   800 * time.Millisecond,
	}
}

// EODHDConfig holds configuration for the EODHD end-of-day source.
type EODHDConfig struct {
	BaseURL        string        `yaml:"base_url" split_words:"true"`
	APIKey         string        `yaml:"api_key" split_words:"true"`
	Exchange       string        `yaml:"exchange" split_words:"true"`
	HistoryDays    int           `yaml:"history_days" split_words:"true"`
	ForecastDays   int           `yaml:"forecast_days" split_words:"true"`
	MinInterval    time.Duration `yaml:"min_interval" split_words:"true"`
	MaxCallsPerDay int           `yaml:"max_calls_per_day" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout" split_words:"true"`
}

// DefaultEODHDConfig returns an EODHDConfig with reasonable defaults.
func DefaultEODHDConfig() EODHDConfig {
	return EODHDConfig{
		BaseURL:        "https://eodhd.com/api",
		APIKey:         "demo",
		Exchange:       "US",
		HistoryDays:    150,
		ForecastDays:   50,
		MinInterval:    30 * time.Second,
		MaxCallsPerDay: 20,
		Timeout:        10 * time.Second,
	}
}
