package view

import (
	"time"

	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/market"
)

// SymbolState is one symbol's values at a playback step.
type SymbolState struct {
	Price         float64     `json:"price"`
	ChangePercent float64     `json:"changePercent"`
	Mood          market.Mood `json:"mood"`
	IsPrediction  bool        `json:"isPrediction"`
	Volume        int64       `json:"volume"`
	Date          time.Time   `json:"date"`
}

// Snapshot is the state published for one playback step.
type Snapshot struct {
	RunID     string                        `json:"runId"`
	Index     int                           `json:"index"`
	MaxIndex  int                           `json:"maxIndex"`
	Day       string                        `json:"day"`
	Running   bool                          `json:"running"`
	PerSymbol map[market.Symbol]SymbolState `json:"perSymbol"`
}

// EventType classifies controller events.
type EventType int

const (
	EventSnapshot EventType = iota
	EventStateChanged
	EventSeriesReady
	EventSeriesFailed
	EventQuotes
)

func (t EventType) String() string {
	switch t {
	case EventSnapshot:
		return "snapshot"
	case EventStateChanged:
		return "state"
	case EventSeriesReady:
		return "series_ready"
	case EventSeriesFailed:
		return "series_failed"
	case EventQuotes:
		return "quotes"
	default:
		return "unknown"
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is emitted by the playback controller. Snapshot is set for
// EventSnapshot, Symbol and Err for the series events, Quotes for EventQuotes.
type Event struct {
	Type     EventType          `json:"type"`
	Snapshot *Snapshot          `json:"snapshot,omitempty"`
	Quotes   []datasource.Quote `json:"quotes,omitempty"`
	State    string             `json:"state,omitempty"`
	Symbol   market.Symbol      `json:"symbol,omitempty"`
	Err      error              `json:"-"`
	Message  string             `json:"message,omitempty"`
}
