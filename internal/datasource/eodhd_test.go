package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stockpond/internal/generator"
	"github.com/zappabad/stockpond/internal/market"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleep advances the clock instead of blocking.
func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func TestEODHDFetchRecorded(t *testing.T) {
	r, err := recorder.NewAsMode(filepath.Join("testdata", "cassettes", "eodhd_aapl"), recorder.ModeReplaying, nil)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	gen := generator.New(generator.Config{Seed: 3})
	src := NewEODHD(EODHDConfig{HistoryDays: 3, ForecastDays: 2}, gen, WithHTTPClient(&http.Client{Transport: r}))

	series, err := src.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, 5, series.Len())
	assert.Equal(t, 3, series.HistoryLen())

	first, _ := series.At(0)
	assert.Equal(t, "2024-03-06", first.DateString())
	assert.Equal(t, 169.12, first.Price)
	assert.Equal(t, int64(68587700), first.Volume)

	lastHist, _ := series.At(2)
	assert.Equal(t, 170.73, lastHist.Price)

	fc, _ := series.At(3)
	assert.True(t, fc.IsPrediction)
	assert.Equal(t, "2024-03-09", fc.DateString())

	stats := src.Stats()
	assert.Equal(t, 1, stats.CallsToday)
	assert.Equal(t, 20, stats.MaxCallsPerDay)
	assert.False(t, stats.CanMakeCall)
}

func newBarsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"date":"2024-03-07","close":"101.456","volume":10},{"date":"2024-03-08","close":102,"volume":12}]`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEODHDQuoteRecorded(t *testing.T) {
	r, err := recorder.NewAsMode(filepath.Join("testdata", "cassettes", "eodhd_aapl"), recorder.ModeReplaying, nil)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	src := NewEODHD(EODHDConfig{}, generator.New(generator.Config{Seed: 3}), WithHTTPClient(&http.Client{Transport: r}))

	q, err := src.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, market.Symbol("AAPL"), q.Symbol)
	assert.Equal(t, 170.73, q.Price)
	assert.Equal(t, 1.02, q.ChangePercent)
	assert.Equal(t, int64(76114600), q.Volume)
	assert.Equal(t, "2024-03-08", q.Date.Format(market.DateLayout))
	assert.Equal(t, 1, src.Stats().CallsToday)
}

func TestEODHDSpacesCallsAndCapsDay(t *testing.T) {
	srv := newBarsServer(t)
	clk := &fakeClock{now: time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)}
	gen := generator.New(generator.Config{Seed: 1})
	src := NewEODHD(EODHDConfig{
		BaseURL:        srv.URL,
		HistoryDays:    2,
		ForecastDays:   1,
		MinInterval:    30 * time.Second,
		MaxCallsPerDay: 2,
	}, gen, WithClock(clk.Now, clk.Sleep))

	ctx := context.Background()
	series, err := src.Fetch(ctx, "MSFT")
	require.NoError(t, err)
	first, _ := series.At(0)
	assert.Equal(t, 101.46, first.Price)
	assert.Equal(t, 30*time.Second, src.Stats().TimeUntilNextCall)
	assert.False(t, src.Stats().CanMakeCall)

	clk.Advance(10 * time.Second)
	_, err = src.Fetch(ctx, "MSFT")
	require.NoError(t, err, "a call inside the interval waits instead of failing")
	assert.Equal(t, []time.Duration{20 * time.Second}, clk.Slept())
	assert.Equal(t, 2, src.Stats().CallsToday)

	clk.Advance(time.Minute)
	_, err = src.Fetch(ctx, "MSFT")
	assert.ErrorIs(t, err, ErrRateLimited, "daily cap reached")
	assert.Equal(t, 2, src.Stats().CallsToday)

	clk.Advance(24 * time.Hour)
	stats := src.Stats()
	assert.Equal(t, 0, stats.CallsToday)
	assert.True(t, stats.CanMakeCall)
}

func TestEODHDWaitHonorsContext(t *testing.T) {
	srv := newBarsServer(t)
	src := NewEODHD(EODHDConfig{
		BaseURL:      srv.URL,
		HistoryDays:  2,
		ForecastDays: 1,
		MinInterval:  time.Hour,
	}, generator.New(generator.Config{Seed: 1}))

	_, err := src.Fetch(context.Background(), "MSFT")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = src.Quote(ctx, "MSFT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, src.Stats().CallsToday, "an abandoned wait is not counted")
}

func TestEODHDQuoteNeedsTwoBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[{"date":"2024-03-08","close":102,"volume":12}]`)
	}))
	defer srv.Close()

	src := NewEODHD(EODHDConfig{BaseURL: srv.URL}, generator.New(generator.Config{Seed: 1}))
	_, err := src.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, market.ErrNoDataAvailable)
}

func TestEODHDNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewEODHD(EODHDConfig{BaseURL: srv.URL}, generator.New(generator.Config{Seed: 1}))
	_, err := src.Fetch(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestEODHDEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	src := NewEODHD(EODHDConfig{BaseURL: srv.URL}, generator.New(generator.Config{Seed: 1}))
	_, err := src.Fetch(context.Background(), "AAPL")
	assert.ErrorIs(t, err, market.ErrNoDataAvailable)
}
