// Package mood labels price moves.
package mood

import "github.com/zappabad/stockpond/internal/market"

// Threshold is the absolute percent change beyond which a move counts.
const Threshold = 1.0

// Classify maps a percent change to a mood. Both bounds are exclusive.
func Classify(changePercent float64) market.Mood {
	switch {
	case changePercent > Threshold:
		return market.MoodHappy
	case changePercent < -Threshold:
		return market.MoodSad
	default:
		return market.MoodNeutral
	}
}
