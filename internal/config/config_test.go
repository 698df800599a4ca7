package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SourceSynthetic, cfg.Source)
	assert.Equal(t, 150, cfg.Synthetic.HistoryDays)
	assert.Equal(t, 50, cfg.Synthetic.ForecastDays)
	assert.Equal(t, time.Second, cfg.Playback.TickInterval)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := writeFile(t, dir, "stockpond.yaml", `
source: synthetic
symbols: [AAPL, MSFT]
synthetic:
  history_days: 30
  forecast_days: 10
  min_latency: 0s
  max_latency: 50ms
playback:
  tick_interval: 500ms
server:
  addr: ":9090"
`)
	t.Setenv("STOCKPOND_SYNTHETIC_FORECAST_DAYS", "12")
	t.Setenv("STOCKPOND_PLAYBACK_TICK_INTERVAL", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Symbols)
	assert.Equal(t, 30, cfg.Synthetic.HistoryDays)
	assert.Equal(t, 12, cfg.Synthetic.ForecastDays)
	assert.Equal(t, 50*time.Millisecond, cfg.Synthetic.MaxLatency)
	assert.Equal(t, 2*time.Second, cfg.Playback.TickInterval)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 0.1, cfg.Generator.HistoryVolatility, "unset sections keep defaults")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "STOCKPOND_SOURCE=eodhd\nSTOCKPOND_EODHD_API_KEY=secret\n")
	t.Cleanup(func() {
		os.Unsetenv("STOCKPOND_SOURCE")
		os.Unsetenv("STOCKPOND_EODHD_API_KEY")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceEODHD, cfg.Source)
	assert.Equal(t, "secret", cfg.EODHD.APIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := writeFile(t, dir, "bad.yaml", "source: bloomberg\nsynthetic:\n  history_days: 0\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bloomberg")
	assert.Contains(t, err.Error(), "history and forecast days")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestClampTick(t *testing.T) {
	assert.Equal(t, MinTickInterval, ClampTick(10*time.Millisecond))
	assert.Equal(t, MaxTickInterval, ClampTick(time.Minute))
	assert.Equal(t, time.Second, ClampTick(time.Second))
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "etc", "stockpond.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, cfg.Symbols)
	assert.Equal(t, 800*time.Millisecond, cfg.Synthetic.MaxLatency)
	assert.Equal(t, 20, cfg.EODHD.MaxCallsPerDay)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, cfg.Playback.SpeedPresets)
	assert.Equal(t, 30*time.Minute, cfg.Playback.QuoteInterval)
}

func TestValidateBoundsVolatility(t *testing.T) {
	cfg := Default()
	cfg.Generator.ForecastVolatility = 2.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volatility")

	cfg.Generator.ForecastVolatility = 2
	assert.NoError(t, cfg.Validate())
}
