// Package chart turns accumulated playback points into normalized drawing
// instructions and renders them onto a Surface.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/zappabad/stockpond/internal/market"
	playbackview "github.com/zappabad/stockpond/internal/playback/view"
)

const (
	// PortfolioColor strokes the aggregate line.
	PortfolioColor = "#8B5CF6"
	// PortfolioLabel is the legend entry for the aggregate line.
	PortfolioLabel = "Cumulative"
	// AxisLabels is the number of y-axis price labels.
	AxisLabels = 5
	// PaddingRatio widens the price range on both sides.
	PaddingRatio = 0.1

	fallbackMin = 0.0
	fallbackMax = 1000.0
)

// Mode selects how accumulated points are drawn.
type Mode int

const (
	ModeIndividual Mode = iota
	ModePortfolio
)

func (m Mode) String() string {
	if m == ModePortfolio {
		return "portfolio"
	}
	return "individual"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModePortfolio {
		return ModeIndividual
	}
	return ModePortfolio
}

// ParseMode parses "individual" or "portfolio". Empty input yields
// ModeIndividual.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "individual":
		return ModeIndividual, nil
	case "portfolio", "cumulative":
		return ModePortfolio, nil
	default:
		return ModeIndividual, fmt.Errorf("%w: unknown chart mode %q", market.ErrInvalidInput, s)
	}
}

// Point is a normalized position. X and Y are in [0,1]; Y grows upward.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Prediction bool    `json:"prediction,omitempty"`
}

// MarkerSize selects the per-point markers of a line.
type MarkerSize int

const (
	MarkerNone MarkerSize = iota
	MarkerSmall
	MarkerLarge
)

func (m MarkerSize) String() string {
	switch m {
	case MarkerSmall:
		return "small"
	case MarkerLarge:
		return "large"
	default:
		return "none"
	}
}

func (m MarkerSize) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Segment joins two consecutive points of a line.
type Segment struct {
	From   Point `json:"from"`
	To     Point `json:"to"`
	Dashed bool  `json:"dashed"`
}

// Line is one drawable series.
type Line struct {
	Label    string    `json:"label"`
	Color    string    `json:"color"`
	Points   []Point   `json:"points"`
	Segments []Segment  `json:"segments"`
	Markers  MarkerSize `json:"markers"`
}

// AxisLabel is a y-axis tick.
type AxisLabel struct {
	Value float64 `json:"value"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
}

// LegendEntry names a line.
type LegendEntry struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Frame is everything needed to draw one chart state.
type Frame struct {
	Mode   Mode          `json:"mode"`
	Min    float64       `json:"min"`
	Max    float64       `json:"max"`
	Lines  []Line        `json:"lines"`
	Axis   []AxisLabel   `json:"axis"`
	Legend []LegendEntry `json:"legend"`
}

// Input is the accumulated history to chart, in display order.
type Input struct {
	Order  []market.Symbol
	Points map[market.Symbol][]market.PricePoint
}

// InputFromHistory adapts the playback read model.
func InputFromHistory(h playbackview.History) Input {
	return Input{Order: h.Selection, Points: h.Points}
}

// ColorFunc resolves a symbol's stroke color.
type ColorFunc func(market.Symbol) string

// PortfolioSeries sums, for each position, the prices of every symbol that
// has a point at that position.
func PortfolioSeries(in Input) []float64 {
	n := 0
	for _, s := range in.Order {
		if l := len(in.Points[s]); l > n {
			n = l
		}
	}
	out := make([]float64, n)
	for _, s := range in.Order {
		for i, p := range in.Points[s] {
			out[i] += p.Price
		}
	}
	return out
}

// Normalize builds the frame for mode.
func Normalize(in Input, mode Mode, color ColorFunc) Frame {
	if mode == ModePortfolio {
		return normalizePortfolio(in)
	}
	return normalizeIndividual(in, color)
}

func normalizeIndividual(in Input, color ColorFunc) Frame {
	var prices []float64
	for _, s := range in.Order {
		for _, p := range in.Points[s] {
			prices = append(prices, p.Price)
		}
	}
	sc := newScale(prices)
	f := Frame{Mode: ModeIndividual, Min: sc.lo(), Max: sc.hi(), Axis: sc.labels()}

	for _, s := range in.Order {
		c := market.FallbackColor
		if color != nil {
			c = color(s)
		}
		f.Legend = append(f.Legend, LegendEntry{Label: string(s), Color: c})

		pts := in.Points[s]
		if len(pts) < 2 {
			continue
		}
		line := Line{Label: string(s), Color: c, Markers: MarkerSmall, Points: make([]Point, len(pts))}
		for i, p := range pts {
			line.Points[i] = Point{X: float64(i) / float64(len(pts)-1), Y: sc.y(p.Price), Prediction: p.IsPrediction}
			if i > 0 {
				line.Segments = append(line.Segments, Segment{
					From:   line.Points[i-1],
					To:     line.Points[i],
					Dashed: p.IsPrediction,
				})
			}
		}
		f.Lines = append(f.Lines, line)
	}
	return f
}

func normalizePortfolio(in Input) Frame {
	agg := PortfolioSeries(in)
	sc := newScale(agg)
	f := Frame{
		Mode:   ModePortfolio,
		Min:    sc.lo(),
		Max:    sc.hi(),
		Axis:   sc.labels(),
		Legend: []LegendEntry{{Label: PortfolioLabel, Color: PortfolioColor}},
	}
	// A single aggregate point has no line to draw.
	if len(agg) < 2 {
		return f
	}

	line := Line{Label: PortfolioLabel, Color: PortfolioColor, Markers: MarkerLarge, Points: make([]Point, len(agg))}
	for i, v := range agg {
		line.Points[i] = Point{X: float64(i) / float64(len(agg)-1), Y: sc.y(v)}
		if i > 0 {
			line.Segments = append(line.Segments, Segment{From: line.Points[i-1], To: line.Points[i]})
		}
	}
	f.Lines = append(f.Lines, line)
	return f
}

// scale maps prices into [0,1] with padding on both ends.
type scale struct {
	min, max, pad float64
}

func newScale(prices []float64) scale {
	if len(prices) == 0 {
		return scale{min: fallbackMin, max: fallbackMax, pad: (fallbackMax - fallbackMin) * PaddingRatio}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range prices {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	pad := (hi - lo) * PaddingRatio
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*PaddingRatio, 1)
	}
	return scale{min: lo, max: hi, pad: pad}
}

func (s scale) lo() float64 { return s.min - s.pad }
func (s scale) hi() float64 { return s.max + s.pad }

func (s scale) y(price float64) float64 {
	if s.max == s.min {
		return 0.5
	}
	return (price - s.min + s.pad) / (s.max - s.min + 2*s.pad)
}

// labels spreads AxisLabels ticks from the top of the padded range to the
// bottom.
func (s scale) labels() []AxisLabel {
	out := make([]AxisLabel, AxisLabels)
	span := s.hi() - s.lo()
	for i := range out {
		frac := 1 - float64(i)/float64(AxisLabels-1)
		v := s.lo() + span*frac
		out[i] = AxisLabel{Value: v, Y: frac, Text: fmt.Sprintf("$%.2f", v)}
	}
	return out
}
