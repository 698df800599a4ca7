package view

import (
	"sync"

	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/internal/notice"
)

// Log keeps the most recent notices, oldest first. A notice that repeats the
// newest entry is folded into it.
type Log struct {
	mu       sync.RWMutex
	items    []notice.Notice
	capacity int
}

// NewLog creates a Log holding up to capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 100
	}
	return &Log{capacity: capacity}
}

// Record adds n and returns the entry as stored. A repeat keeps the newest
// entry's ID, bumps its Repeat count and takes n's time.
func (l *Log) Record(n notice.Notice) notice.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last := len(l.items) - 1; last >= 0 && l.items[last].Same(n) {
		l.items[last].Repeat++
		l.items[last].Time = n.Time
		return l.items[last]
	}

	l.items = append(l.items, n)
	if over := len(l.items) - l.capacity; over > 0 {
		l.items = append(l.items[:0:0], l.items[over:]...)
	}
	return n
}

// Latest returns the last n entries, oldest first.
func (l *Log) Latest(n int) []notice.Notice {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || len(l.items) == 0 {
		return nil
	}
	n = min(n, len(l.items))
	return append([]notice.Notice(nil), l.items[len(l.items)-n:]...)
}

// ForSymbol returns the last n entries about s, oldest first.
func (l *Log) ForSymbol(s market.Symbol, n int) []notice.Notice {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []notice.Notice
	for i := len(l.items) - 1; i >= 0 && len(out) < n; i-- {
		if l.items[i].Symbol == s {
			out = append(out, l.items[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
