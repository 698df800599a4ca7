// Package notice defines user-facing messages about data fetches and
// playback lifecycle.
package notice

import (
	"time"

	"github.com/zappabad/stockpond/internal/market"
)

// Level ranks a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Notice is a single message.
type Notice struct {
	ID      string        `json:"id"`
	Time    time.Time     `json:"time"`
	Symbol  market.Symbol `json:"symbol,omitempty"` // empty for notices not tied to a symbol
	Level   Level         `json:"level"`
	Message string        `json:"message"`
	// Repeat counts identical notices folded into this one after it.
	Repeat int `json:"repeat,omitempty"`
}

// Same reports whether o repeats n: same symbol, level and message.
func (n Notice) Same(o Notice) bool {
	return n.Symbol == o.Symbol && n.Level == o.Level && n.Message == o.Message
}

// Publisher accepts notices.
type Publisher interface {
	Publish(n Notice)
}
