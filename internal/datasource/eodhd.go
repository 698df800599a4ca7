package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/generator"
	"github.com/zappabad/stockpond/internal/market"
)

// EODHD fetches end-of-day closes and appends a generated forecast. Calls
// run one at a time, spaced by MinInterval.
type EODHD struct {
	cfg        EODHDConfig
	httpClient *http.Client
	gen        *generator.Generator
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	// turn admits one call at a time.
	turn chan struct{}

	mu       sync.Mutex
	calls    int
	callDay  time.Time
	lastCall time.Time
}

// EODHDOption configures an EODHD source.
type EODHDOption func(*EODHD)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) EODHDOption {
	return func(e *EODHD) {
		if hc != nil {
			e.httpClient = hc
		}
	}
}

// WithClock overrides the wall clock used for rate limiting and the wait
// between calls.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) EODHDOption {
	return func(e *EODHD) {
		if now != nil {
			e.now = now
		}
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewEODHD creates an EODHD source.
func NewEODHD(cfg EODHDConfig, gen *generator.Generator, opts ...EODHDOption) *EODHD {
	def := DefaultEODHDConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = def.APIKey
	}
	if cfg.Exchange == "" {
		cfg.Exchange = def.Exchange
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = def.HistoryDays
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = def.ForecastDays
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.MaxCallsPerDay <= 0 {
		cfg.MaxCallsPerDay = def.MaxCallsPerDay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	e := &EODHD{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		gen:        gen,
		now:        time.Now,
		sleep:      sleepContext,
		turn:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *EODHD) Name() string { return "eodhd" }

// QueueBudget is how long the last of n queued calls may take to complete.
func (e *EODHD) QueueBudget(n int) time.Duration {
	return time.Duration(n)*e.cfg.MinInterval + e.cfg.Timeout
}

type eodBar struct {
	Date   string          `json:"date"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Fetch downloads the symbol's daily bars, keeps the most recent HistoryDays
// and extends them with ForecastDays generated predictions.
func (e *EODHD) Fetch(ctx context.Context, symbol market.Symbol) (market.Series, error) {
	bars, err := e.bars(ctx, symbol, nil)
	if err != nil {
		return market.Series{}, err
	}
	if len(bars) > e.cfg.HistoryDays {
		bars = bars[len(bars)-e.cfg.HistoryDays:]
	}

	points := make([]market.PricePoint, 0, len(bars))
	for _, b := range bars {
		p, err := e.point(symbol, b)
		if err != nil {
			return market.Series{}, err
		}
		points = append(points, p)
	}
	history, err := market.NewSeries(symbol, points)
	if err != nil {
		return market.Series{}, fmt.Errorf("eodhd: %w", err)
	}

	logx.WithContext(ctx).Infof("eodhd: fetched %d bars for %s", len(points), symbol)
	return e.gen.Extend(history, e.cfg.ForecastDays)
}

// Quote reports the latest close and its change from the previous close.
func (e *EODHD) Quote(ctx context.Context, symbol market.Symbol) (Quote, error) {
	q := url.Values{}
	q.Set("period", "d")
	q.Set("order", "d")
	q.Set("limit", strconv.Itoa(2))
	bars, err := e.bars(ctx, symbol, q)
	if err != nil {
		return Quote{}, err
	}
	if len(bars) < 2 {
		return Quote{}, fmt.Errorf("eodhd: quote %s: %w", symbol, market.ErrNoDataAvailable)
	}

	latest, err := e.point(symbol, bars[0])
	if err != nil {
		return Quote{}, err
	}
	prev, err := e.point(symbol, bars[1])
	if err != nil {
		return Quote{}, err
	}
	change := decimal.NewFromFloat(latest.Price).Sub(decimal.NewFromFloat(prev.Price)).
		Div(decimal.NewFromFloat(prev.Price)).Mul(decimal.NewFromInt(100)).Round(2)
	return Quote{
		Symbol:        symbol,
		Price:         latest.Price,
		ChangePercent: change.InexactFloat64(),
		Volume:        latest.Volume,
		Date:          latest.Date,
	}, nil
}

func (e *EODHD) point(symbol market.Symbol, b eodBar) (market.PricePoint, error) {
	date, err := time.Parse(market.DateLayout, b.Date)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("eodhd: %s: bad date %q: %w", symbol, b.Date, err)
	}
	p, err := market.NewPricePoint(symbol, date, b.Close.Round(2).InexactFloat64(), b.Volume, false)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("eodhd: %w", err)
	}
	return p, nil
}

// bars waits for its turn, then calls the end-of-day endpoint.
func (e *EODHD) bars(ctx context.Context, symbol market.Symbol, extra url.Values) ([]eodBar, error) {
	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.turn }()

	if err := e.reserveCall(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("api_token", e.cfg.APIKey)
	q.Set("fmt", "json")
	endpoint := fmt.Sprintf("%s/eod/%s.%s?%s", strings.TrimRight(e.cfg.BaseURL, "/"), url.PathEscape(string(symbol)), e.cfg.Exchange, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("eodhd: build request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eodhd: %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eodhd: %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var bars []eodBar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, fmt.Errorf("eodhd: decode %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("eodhd: %s: %w", symbol, market.ErrNoDataAvailable)
	}
	return bars, nil
}

// reserveCall waits until MinInterval has passed since the previous call and
// counts the call. Only the daily cap fails.
func (e *EODHD) reserveCall(ctx context.Context) error {
	for {
		e.mu.Lock()
		now := e.now()
		e.rollDay(now)
		if e.calls >= e.cfg.MaxCallsPerDay {
			e.mu.Unlock()
			return ErrRateLimited
		}
		wait := e.waitLocked(now)
		if wait <= 0 {
			e.calls++
			e.lastCall = now
			e.mu.Unlock()
			return nil
		}
		e.mu.Unlock()

		logx.WithContext(ctx).Infof("eodhd: waiting %s before the next call", wait)
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// rollDay must be called with e.mu held.
func (e *EODHD) rollDay(now time.Time) {
	today := market.Day(now)
	if !today.Equal(e.callDay) {
		e.callDay = today
		e.calls = 0
	}
}

// waitLocked must be called with e.mu held.
func (e *EODHD) waitLocked(now time.Time) time.Duration {
	if e.lastCall.IsZero() {
		return 0
	}
	return e.cfg.MinInterval - now.Sub(e.lastCall)
}

// Stats reports the remaining quota.
func (e *EODHD) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.rollDay(now)
	wait := max(e.waitLocked(now), 0)
	return Stats{
		CallsToday:        e.calls,
		MaxCallsPerDay:    e.cfg.MaxCallsPerDay,
		CanMakeCall:       e.calls < e.cfg.MaxCallsPerDay && wait == 0,
		TimeUntilNextCall: wait,
	}
}
