// Package generator produces synthetic daily price series: a random-walk
// history ending today followed by a forecast continuing the same walk.
package generator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zappabad/stockpond/internal/market"
)

const (
	// drift offsets the uniform draw so the walk leans slightly upward.
	drift = 0.45

	minVolume   = 10_000_000
	volumeRange = 50_000_000

	// MaxVolatility keeps the worst step, 1-drift*volatility, above zero.
	MaxVolatility = 2.0
)

// Generator is safe for concurrent use.
type Generator struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.HistoryVolatility <= 0 {
		cfg.HistoryVolatility = def.HistoryVolatility
	}
	if cfg.ForecastVolatility <= 0 {
		cfg.ForecastVolatility = def.ForecastVolatility
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Generate builds historyDays points dated up to today followed by
// forecastDays prediction points dated after today.
func (g *Generator) Generate(symbol market.Symbol, basePrice float64, historyDays, forecastDays int) (market.Series, error) {
	if !(basePrice > 0) {
		return market.Series{}, fmt.Errorf("%w: base price %v for %s", market.ErrInvalidInput, basePrice, symbol)
	}
	if historyDays < 1 || forecastDays < 1 {
		return market.Series{}, fmt.Errorf("%w: history %d / forecast %d days for %s", market.ErrInvalidInput, historyDays, forecastDays, symbol)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	today := market.Day(g.cfg.Now())
	points := make([]market.PricePoint, 0, historyDays+forecastDays)

	price := basePrice * (0.9 + g.rng.Float64()*0.2)
	for i := 0; i < historyDays; i++ {
		price = g.step(price, g.cfg.HistoryVolatility)
		p, err := g.point(symbol, today.AddDate(0, 0, -(historyDays-1-i)), price, false)
		if err != nil {
			return market.Series{}, err
		}
		points = append(points, p)
	}
	for i := 1; i <= forecastDays; i++ {
		price = g.step(price, g.cfg.ForecastVolatility)
		p, err := g.point(symbol, today.AddDate(0, 0, i), price, true)
		if err != nil {
			return market.Series{}, err
		}
		points = append(points, p)
	}

	return market.NewSeries(symbol, points)
}

// Extend appends forecastDays prediction points to a series, continuing the
// walk from its last price on the days following its last date.
func (g *Generator) Extend(series market.Series, forecastDays int) (market.Series, error) {
	last, ok := series.Last()
	if !ok {
		return market.Series{}, fmt.Errorf("%w: cannot extend empty series", market.ErrInvalidInput)
	}
	if forecastDays < 1 {
		return market.Series{}, fmt.Errorf("%w: forecast %d days", market.ErrInvalidInput, forecastDays)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	points := make([]market.PricePoint, len(series.Points), len(series.Points)+forecastDays)
	copy(points, series.Points)

	price := last.Price
	for i := 1; i <= forecastDays; i++ {
		price = g.step(price, g.cfg.ForecastVolatility)
		p, err := g.point(series.Symbol, last.Date.AddDate(0, 0, i), price, true)
		if err != nil {
			return market.Series{}, err
		}
		points = append(points, p)
	}
	return market.NewSeries(series.Symbol, points)
}

// Next takes one step of the historical walk from price.
func (g *Generator) Next(price float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.step(price, g.cfg.HistoryVolatility)
}

// Volume draws a daily volume.
func (g *Generator) Volume() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return minVolume + g.rng.Int63n(volumeRange)
}

// step must be called with g.mu held. The walk continues from the rounded
// price so a floored cent can recover on later steps.
func (g *Generator) step(price, volatility float64) float64 {
	return RoundPrice(price * (1 + (g.rng.Float64()-drift)*volatility))
}

// point must be called with g.mu held.
func (g *Generator) point(symbol market.Symbol, date time.Time, price float64, prediction bool) (market.PricePoint, error) {
	volume := minVolume + g.rng.Int63n(volumeRange)
	return market.NewPricePoint(symbol, date, price, volume, prediction)
}

// RoundPrice rounds to cents, never below one cent.
func RoundPrice(price float64) float64 {
	rounded := decimal.NewFromFloat(price).Round(2)
	if rounded.LessThanOrEqual(decimal.Zero) {
		return 0.01
	}
	return rounded.InexactFloat64()
}
