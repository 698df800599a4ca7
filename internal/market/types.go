package market

import (
	"fmt"
	"time"
)

// MaxSelected is the number of symbols that may be played back together.
const MaxSelected = 5

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// Symbol uniquely identifies a simulated instrument.
type Symbol string

func (s Symbol) String() string { return string(s) }

// Mood is the categorical label derived from a period-over-period change.
type Mood uint8

const (
	MoodNeutral Mood = iota
	MoodHappy
	MoodSad
)

func (m Mood) String() string {
	switch m {
	case MoodHappy:
		return "happy"
	case MoodSad:
		return "sad"
	default:
		return "neutral"
	}
}

// MarshalText encodes the mood as its lowercase name.
func (m Mood) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a lowercase mood name.
func (m *Mood) UnmarshalText(b []byte) error {
	switch string(b) {
	case "happy":
		*m = MoodHappy
	case "sad":
		*m = MoodSad
	case "neutral", "":
		*m = MoodNeutral
	default:
		return fmt.Errorf("%w: unknown mood %q", ErrInvalidInput, string(b))
	}
	return nil
}

// PricePoint is one trading day of a series.
type PricePoint struct {
	Symbol       Symbol    `json:"symbol"`
	Date         time.Time `json:"date"`
	Price        float64   `json:"price"`
	Volume       int64     `json:"volume"`
	IsPrediction bool      `json:"isPrediction"`
}

// NewPricePoint validates and builds a PricePoint. The date is truncated to
// its UTC calendar day.
func NewPricePoint(symbol Symbol, date time.Time, price float64, volume int64, prediction bool) (PricePoint, error) {
	if symbol == "" {
		return PricePoint{}, fmt.Errorf("%w: empty symbol", ErrInvalidInput)
	}
	if !(price > 0) {
		return PricePoint{}, fmt.Errorf("%w: price %v for %s must be positive", ErrInvalidInput, price, symbol)
	}
	if volume < 0 {
		return PricePoint{}, fmt.Errorf("%w: negative volume for %s", ErrInvalidInput, symbol)
	}
	return PricePoint{
		Symbol:       symbol,
		Date:         Day(date),
		Price:        price,
		Volume:       volume,
		IsPrediction: prediction,
	}, nil
}

// DateString returns the point's calendar day in DateLayout.
func (p PricePoint) DateString() string {
	return p.Date.Format(DateLayout)
}

// Series is the ordered history followed by the forecast for one symbol.
type Series struct {
	Symbol Symbol
	Points []PricePoint
}

// NewSeries validates points and wraps them in a Series. Points must belong to
// symbol, have strictly increasing dates, and predictions must form a trailing
// run.
func NewSeries(symbol Symbol, points []PricePoint) (Series, error) {
	if symbol == "" {
		return Series{}, fmt.Errorf("%w: empty symbol", ErrInvalidInput)
	}
	if len(points) == 0 {
		return Series{}, fmt.Errorf("%w: empty series for %s", ErrInvalidInput, symbol)
	}
	predicting := false
	for i, p := range points {
		if p.Symbol != symbol {
			return Series{}, fmt.Errorf("%w: point %d belongs to %s, not %s", ErrInvalidInput, i, p.Symbol, symbol)
		}
		if !(p.Price > 0) {
			return Series{}, fmt.Errorf("%w: point %d of %s has price %v", ErrInvalidInput, i, symbol, p.Price)
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			return Series{}, fmt.Errorf("%w: point %d of %s is not after its predecessor", ErrInvalidInput, i, symbol)
		}
		if predicting && !p.IsPrediction {
			return Series{}, fmt.Errorf("%w: historical point %d of %s follows a prediction", ErrInvalidInput, i, symbol)
		}
		predicting = p.IsPrediction
	}
	return Series{Symbol: symbol, Points: points}, nil
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Points) }

// At returns the point at index i, if present.
func (s Series) At(i int) (PricePoint, bool) {
	if i < 0 || i >= len(s.Points) {
		return PricePoint{}, false
	}
	return s.Points[i], true
}

// HistoryLen returns the number of non-prediction points.
func (s Series) HistoryLen() int {
	n := 0
	for _, p := range s.Points {
		if p.IsPrediction {
			break
		}
		n++
	}
	return n
}

// Last returns the final point of the series.
func (s Series) Last() (PricePoint, bool) {
	return s.At(len(s.Points) - 1)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
