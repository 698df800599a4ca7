// Package config loads stockpond configuration from a YAML file, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/generator"
	"github.com/zappabad/stockpond/internal/logging"
	noticeservice "github.com/zappabad/stockpond/internal/notice/service"
	playbackservice "github.com/zappabad/stockpond/internal/playback/service"
	"github.com/zappabad/stockpond/internal/server"
)

// EnvPrefix prefixes every environment override, e.g. STOCKPOND_SOURCE.
const EnvPrefix = "STOCKPOND"

// Source kinds.
const (
	SourceSynthetic = "synthetic"
	SourceEODHD     = "eodhd"
)

// Tick interval bounds applied by interactive front ends.
const (
	MinTickInterval = 200 * time.Millisecond
	MaxTickInterval = 3 * time.Second
)

// Config is the root configuration.
type Config struct {
	// Source selects the data source: synthetic or eodhd.
	Source string `yaml:"source" envconfig:"SOURCE"`
	// CatalogFile optionally replaces the built-in catalog.
	CatalogFile string `yaml:"catalog_file" envconfig:"CATALOG_FILE"`
	// Symbols are selected on startup by the console and server.
	Symbols []string `yaml:"symbols" envconfig:"SYMBOLS"`

	Log       logging.Config             `yaml:"log" envconfig:"LOG"`
	Generator generator.Config           `yaml:"generator" envconfig:"GENERATOR"`
	Synthetic datasource.SyntheticConfig `yaml:"synthetic" envconfig:"SYNTHETIC"`
	EODHD     datasource.EODHDConfig     `yaml:"eodhd" envconfig:"EODHD"`
	Playback  playbackservice.Config     `yaml:"playback" envconfig:"PLAYBACK"`
	Notices   noticeservice.Config       `yaml:"notices" envconfig:"NOTICES"`
	Server    server.Config              `yaml:"server" envconfig:"SERVER"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source:    SourceSynthetic,
		Log:       logging.DefaultConfig(),
		Generator: generator.DefaultConfig(),
		Synthetic: datasource.DefaultSyntheticConfig(),
		EODHD:     datasource.DefaultEODHDConfig(),
		Playback:  playbackservice.DefaultConfig(),
		Notices:   noticeservice.DefaultConfig(),
		Server:    server.DefaultConfig(),
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceSynthetic, SourceEODHD:
	default:
		errs = append(errs, fmt.Errorf("source %q: want %s or %s", c.Source, SourceSynthetic, SourceEODHD))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, v := range []float64{c.Generator.HistoryVolatility, c.Generator.ForecastVolatility} {
		if v < 0 || v > generator.MaxVolatility {
			errs = append(errs, fmt.Errorf("volatility %v outside [0, %v]", v, generator.MaxVolatility))
			break
		}
	}
	if c.Synthetic.HistoryDays < 1 || c.Synthetic.ForecastDays < 1 {
		errs = append(errs, errors.New("synthetic history and forecast days must be positive"))
	}
	if c.Synthetic.MinLatency < 0 || c.Synthetic.MaxLatency < c.Synthetic.MinLatency {
		errs = append(errs, errors.New("synthetic latency range is invalid"))
	}
	if c.Synthetic.FailureRate < 0 || c.Synthetic.FailureRate > 1 {
		errs = append(errs, errors.New("synthetic failure rate must be within [0,1]"))
	}
	if c.Source == SourceEODHD {
		if c.EODHD.HistoryDays < 1 || c.EODHD.ForecastDays < 1 {
			errs = append(errs, errors.New("eodhd history and forecast days must be positive"))
		}
		if c.EODHD.MaxCallsPerDay < 1 {
			errs = append(errs, errors.New("eodhd max calls per day must be positive"))
		}
	}
	if c.Playback.TickInterval <= 0 {
		errs = append(errs, errors.New("playback tick interval must be positive"))
	}
	for _, p := range c.Playback.SpeedPresets {
		if p <= 0 {
			errs = append(errs, errors.New("playback speed presets must be positive"))
			break
		}
	}
	if len(c.Symbols) > 5 {
		errs = append(errs, fmt.Errorf("at most 5 startup symbols, got %d", len(c.Symbols)))
	}
	return errors.Join(errs...)
}

// ClampTick bounds d to the interactive tick range.
func ClampTick(d time.Duration) time.Duration {
	if d < MinTickInterval {
		return MinTickInterval
	}
	if d > MaxTickInterval {
		return MaxTickInterval
	}
	return d
}
