package datasource

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zappabad/stockpond/internal/generator"
	"github.com/zappabad/stockpond/internal/market"
)

// ErrSimulatedFailure is returned by the synthetic source when a call is
// chosen to fail.
var ErrSimulatedFailure = errors.New("simulated upstream failure")

const syntheticCallsPerDay = 1000

// Synthetic serves generated series after a simulated latency.
type Synthetic struct {
	cfg     SyntheticConfig
	gen     *generator.Generator
	catalog market.Catalog
	now     func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	calls   int
	callDay time.Time
	current map[market.Symbol]float64
}

// NewSynthetic creates a synthetic source.
func NewSynthetic(cfg SyntheticConfig, gen *generator.Generator, catalog market.Catalog) *Synthetic {
	def := DefaultSyntheticConfig()
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = def.HistoryDays
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = def.ForecastDays
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	return &Synthetic{
		cfg:     cfg,
		gen:     gen,
		catalog: catalog,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		current: make(map[market.Symbol]float64),
	}
}

func (s *Synthetic) Name() string { return "synthetic" }

// Fetch waits out the simulated latency and generates a fresh series.
func (s *Synthetic) Fetch(ctx context.Context, symbol market.Symbol) (market.Series, error) {
	if err := s.call(ctx); err != nil {
		return market.Series{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	return s.gen.Generate(symbol, s.catalog.BasePrice(symbol), s.cfg.HistoryDays, s.cfg.ForecastDays)
}

// Quote moves the symbol's live price one step and reports its change from
// the catalog base price.
func (s *Synthetic) Quote(ctx context.Context, symbol market.Symbol) (Quote, error) {
	if err := s.call(ctx); err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}

	base := s.catalog.BasePrice(symbol)
	s.mu.Lock()
	price, ok := s.current[symbol]
	if !ok {
		price = base
	}
	price = s.gen.Next(price)
	s.current[symbol] = price
	s.mu.Unlock()

	return Quote{
		Symbol:        symbol,
		Price:         price,
		ChangePercent: decimal.NewFromFloat((price - base) / base * 100).Round(2).InexactFloat64(),
		Volume:        s.gen.Volume(),
		Date:          market.Day(s.now()),
	}, nil
}

// call waits out the latency, counts the call and decides whether it fails.
func (s *Synthetic) call(ctx context.Context) error {
	latency, fail := s.draw()
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	s.rollDay(s.now())
	s.calls++
	s.mu.Unlock()

	if fail {
		return ErrSimulatedFailure
	}
	return nil
}

func (s *Synthetic) draw() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latency := s.cfg.MinLatency
	if spread := s.cfg.MaxLatency - s.cfg.MinLatency; spread > 0 {
		latency += time.Duration(s.rng.Int63n(int64(spread)))
	}
	return latency, s.cfg.FailureRate > 0 && s.rng.Float64() < s.cfg.FailureRate
}

// rollDay must be called with s.mu held.
func (s *Synthetic) rollDay(now time.Time) {
	if today := market.Day(now); !today.Equal(s.callDay) {
		s.callDay = today
		s.calls = 0
	}
}

// Stats never limits; the quota is nominal.
func (s *Synthetic) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollDay(s.now())
	return Stats{
		CallsToday:     s.calls,
		MaxCallsPerDay: syntheticCallsPerDay,
		CanMakeCall:    true,
	}
}
