// Package view accumulates the points revealed by playback so far.
package view

import (
	"sync"

	"github.com/zappabad/stockpond/internal/market"
)

// History is a copy of the accumulated playback state.
type History struct {
	RunID     string
	Selection []market.Symbol
	Points    map[market.Symbol][]market.PricePoint
	Latest    Snapshot
	HasLatest bool
	Version   uint64
}

// PlaybackView keeps the revealed points per selected symbol. Only selected
// symbols ever hold points.
type PlaybackView struct {
	mu        sync.RWMutex
	runID     string
	selection []market.Symbol
	points    map[market.Symbol][]market.PricePoint
	latest    Snapshot
	hasLatest bool
	version   uint64
}

// NewPlaybackView creates an empty PlaybackView.
func NewPlaybackView() *PlaybackView {
	return &PlaybackView{
		points: make(map[market.Symbol][]market.PricePoint),
	}
}

// SetSelection records the selected symbols in display order. Accumulated
// points are cleared when the set of symbols differs from the previous one.
func (v *PlaybackView) SetSelection(symbols []market.Symbol) {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := !sameSet(v.selection, symbols)
	v.selection = append(v.selection[:0:0], symbols...)
	if changed {
		v.clearLocked()
	}
	v.version++
}

// Apply appends the snapshot's points. A snapshot at index 0 or from a new
// run starts the history over.
func (v *PlaybackView) Apply(s Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s.Index == 0 || s.RunID != v.runID {
		v.clearLocked()
		v.runID = s.RunID
	}
	for _, sym := range v.selection {
		st, ok := s.PerSymbol[sym]
		if !ok {
			continue
		}
		v.points[sym] = append(v.points[sym], market.PricePoint{
			Symbol:       sym,
			Date:         st.Date,
			Price:        st.Price,
			Volume:       st.Volume,
			IsPrediction: st.IsPrediction,
		})
	}
	v.latest = s
	v.hasLatest = true
	v.version++
}

// Clear drops all accumulated points and the latest snapshot.
func (v *PlaybackView) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clearLocked()
	v.runID = ""
	v.version++
}

func (v *PlaybackView) clearLocked() {
	v.points = make(map[market.Symbol][]market.PricePoint)
	v.latest = Snapshot{}
	v.hasLatest = false
}

// Points returns a copy of the accumulated points for symbol.
func (v *PlaybackView) Points(symbol market.Symbol) []market.PricePoint {
	v.mu.RLock()
	defer v.mu.RUnlock()

	pts := v.points[symbol]
	if len(pts) == 0 {
		return nil
	}
	out := make([]market.PricePoint, len(pts))
	copy(out, pts)
	return out
}

// Latest returns the last applied snapshot.
func (v *PlaybackView) Latest() (Snapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.latest, v.hasLatest
}

// Version increases on every change.
func (v *PlaybackView) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// History returns a deep copy of the accumulated state.
func (v *PlaybackView) History() History {
	v.mu.RLock()
	defer v.mu.RUnlock()

	h := History{
		RunID:     v.runID,
		Selection: append([]market.Symbol(nil), v.selection...),
		Points:    make(map[market.Symbol][]market.PricePoint, len(v.points)),
		Latest:    v.latest,
		HasLatest: v.hasLatest,
		Version:   v.version,
	}
	for sym, pts := range v.points {
		h.Points[sym] = append([]market.PricePoint(nil), pts...)
	}
	return h
}

func sameSet(a, b []market.Symbol) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[market.Symbol]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			return false
		}
	}
	return true
}
