// Package datasource supplies price series and quotes to the playback
// controller.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zappabad/stockpond/internal/market"
)

// ErrRateLimited is returned when a source has used up its daily quota.
var ErrRateLimited = errors.New("rate limit: daily limit reached")

// Source fetches the full history+forecast series for one symbol and its
// latest quote.
type Source interface {
	Fetch(ctx context.Context, symbol market.Symbol) (market.Series, error)
	Quote(ctx context.Context, symbol market.Symbol) (Quote, error)
	Stats() Stats
	Name() string
}

// Stats reports call accounting for a source.
type Stats struct {
	CallsToday        int           `json:"callsToday"`
	MaxCallsPerDay    int           `json:"maxCallsPerDay"`
	CanMakeCall       bool          `json:"canMakeCall"`
	TimeUntilNextCall time.Duration `json:"timeUntilNextCall"`
}

// Quote is a symbol's latest price outside playback.
type Quote struct {
	Symbol        market.Symbol `json:"symbol"`
	Price         float64       `json:"price"`
	ChangePercent float64       `json:"changePercent"`
	Volume        int64         `json:"volume"`
	Date          time.Time     `json:"date"`
}

// QuoteAll quotes each symbol in order and keeps going past failures.
func QuoteAll(ctx context.Context, src Source, symbols []market.Symbol) ([]Quote, []error) {
	var (
		quotes []Quote
		errs   []error
	)
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("quote %s: %w", s, err))
			continue
		}
		q, err := src.Quote(ctx, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("quote %s: %w", s, err))
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, errs
}
