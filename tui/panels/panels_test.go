package panels

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stockpond/internal/chart"
	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/internal/notice"
	playbackview "github.com/zappabad/stockpond/internal/playback/view"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCanvasSolidLine(t *testing.T) {
	c := NewCanvas(10, 3, 0)
	c.Polyline([]float64{0, 9}, []float64{1, 1}, chart.Stroke{Color: "#fff"})

	for x := 0; x < 10; x++ {
		assert.Equal(t, solidRune, c.Rune(x, 1), "x=%d", x)
		assert.Equal(t, ' ', c.Rune(x, 0))
	}
}

func TestCanvasDashedLineLeavesGaps(t *testing.T) {
	c := NewCanvas(10, 3, 0)
	c.Polyline([]float64{0, 9}, []float64{2, 2}, chart.Stroke{Dashed: true, Translucent: true})

	assert.Equal(t, dashedRune, c.Rune(0, 2))
	assert.Equal(t, ' ', c.Rune(1, 2))
	assert.Equal(t, dashedRune, c.Rune(2, 2))
}

func TestCanvasMarkerSurvivesStrokes(t *testing.T) {
	c := NewCanvas(5, 1, 0)
	c.Marker(2, 0, chart.Mark{Color: "#f00", Size: chart.MarkerLarge})
	c.Polyline([]float64{0, 4}, []float64{0, 0}, chart.Stroke{})

	assert.Equal(t, markerRune, c.Rune(2, 0))
	assert.Equal(t, solidRune, c.Rune(1, 0))

	c.Marker(2, 0, chart.Mark{Size: chart.MarkerSmall})
	assert.Equal(t, markerRune, c.Rune(2, 0), "small dots never cover large markers")
	c.Marker(3, 0, chart.Mark{Size: chart.MarkerSmall})
	c.Polyline([]float64{0, 4}, []float64{0, 0}, chart.Stroke{})
	assert.Equal(t, dotRune, c.Rune(3, 0), "strokes never cover small dots")
}

func TestCanvasIgnoresOutOfBounds(t *testing.T) {
	c := NewCanvas(3, 3, 0)
	c.Marker(-1, 1, chart.Mark{})
	c.Marker(1, 7, chart.Mark{})
	c.Label(0, 9, "x")
	assert.Equal(t, rune(0), c.Rune(5, 5))
	assert.Equal(t, "   \n   \n   ", c.Plain())
}

func TestCanvasLabelsUseGutter(t *testing.T) {
	c := NewCanvas(4, 2, 8)
	c.Label(0, 0, "$10.00")
	c.Label(0, 1, "$1234567.00")

	lines := strings.Split(c.Plain(), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "$10.00 │    ", lines[0])
	assert.Equal(t, "$12345 │    ", lines[1])

	c.Clear()
	assert.Equal(t, "       │    ", strings.Split(c.Plain(), "\n")[0])
}

func TestCanvasDrawsChartFrame(t *testing.T) {
	c := NewCanvas(11, 5, 10)
	in := chart.Input{
		Order: []market.Symbol{"AAPL"},
		Points: map[market.Symbol][]market.PricePoint{
			"AAPL": {
				{Symbol: "AAPL", Price: 100},
				{Symbol: "AAPL", Price: 200, IsPrediction: true},
			},
		},
	}
	chart.Draw(c, chart.Normalize(in, chart.ModeIndividual, nil))

	// The line runs from bottom-left to top-right of the padded range.
	assert.NotEqual(t, ' ', c.Rune(0, 4))
	assert.NotEqual(t, ' ', c.Rune(10, 0))
	assert.Contains(t, c.Plain(), "$210.00")
	assert.Contains(t, c.Plain(), "$90.00")
}

func TestChartPanelView(t *testing.T) {
	p := NewChartPanel(func(market.Symbol) string { return "#ffffff" })
	p.SetSize(60, 20)
	assert.Contains(t, p.View(), "Add a symbol")

	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.SetHistory(playbackview.History{
		Selection: []market.Symbol{"AAPL"},
		Points: map[market.Symbol][]market.PricePoint{
			"AAPL": {
				{Symbol: "AAPL", Date: date, Price: 100},
				{Symbol: "AAPL", Date: date.AddDate(0, 0, 1), Price: 110},
			},
		},
		Version: 1,
	})
	view := p.View()
	assert.Contains(t, view, "individual")
	assert.Contains(t, view, "AAPL")
	assert.NotContains(t, view, "Add a symbol")

	assert.Equal(t, chart.ModePortfolio, p.ToggleMode())
	assert.Contains(t, p.View(), chart.PortfolioLabel)
}

func TestPetsPanelSelection(t *testing.T) {
	p := NewPetsPanel()
	p.SetFocus(true)
	_, ok := p.SelectedSymbol()
	assert.False(t, ok)

	p.SetPets([]Pet{{Symbol: "AAPL"}, {Symbol: "MSFT"}, {Symbol: "TSLA"}})
	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p.Update(runes("j"))
	sym, ok := p.SelectedSymbol()
	require.True(t, ok)
	assert.Equal(t, market.Symbol("TSLA"), sym)

	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	sym, _ = p.SelectedSymbol()
	assert.Equal(t, market.Symbol("TSLA"), sym)

	p.SetPets([]Pet{{Symbol: "AAPL"}})
	sym, _ = p.SelectedSymbol()
	assert.Equal(t, market.Symbol("AAPL"), sym)
}

func TestPetsPanelView(t *testing.T) {
	p := NewPetsPanel()
	p.SetSize(60, 12)
	assert.Contains(t, p.View(), "pond is empty")

	p.SetPets([]Pet{
		{Symbol: "AAPL", Color: "#A3AAAE", HasState: true, State: playbackview.SymbolState{Price: 175.5, ChangePercent: 1.25, Mood: market.MoodHappy, IsPrediction: true}},
		{Symbol: "MSFT", Loading: true},
		{Symbol: "TSLA", Err: errors.New("boom")},
	})
	view := p.View()
	assert.Contains(t, view, Face(market.MoodHappy))
	assert.Contains(t, view, "$175.50")
	assert.Contains(t, view, "+1.25%")
	assert.Contains(t, view, "forecast")
	assert.Contains(t, view, "fetching")
	assert.Contains(t, view, "retry")
}

func TestPetsPanelShowsLiveQuote(t *testing.T) {
	p := NewPetsPanel()
	p.SetSize(60, 12)
	p.SetPets([]Pet{{
		Symbol:   "AAPL",
		HasState: true,
		State:    playbackview.SymbolState{Price: 99, Mood: market.MoodNeutral},
		HasQuote: true,
		Quote:    datasource.Quote{Symbol: "AAPL", Price: 170.73, ChangePercent: -2.5},
	}})
	view := p.View()
	assert.Contains(t, view, "$170.73")
	assert.Contains(t, view, "-2.50%")
	assert.Contains(t, view, Face(market.MoodSad))
	assert.Contains(t, view, "live")
	assert.NotContains(t, view, "$99.00")
}

func TestFacesDiffer(t *testing.T) {
	assert.NotEqual(t, Face(market.MoodHappy), Face(market.MoodSad))
	assert.NotEqual(t, Face(market.MoodHappy), Face(market.MoodNeutral))
	assert.NotEqual(t, Face(market.MoodSad), Face(market.MoodNeutral))
}

func TestPickerAutocomplete(t *testing.T) {
	p := NewSymbolPickerPanel(market.DefaultCatalog().Listings())
	p.SetFocus(true)

	p.Update(runes("ms"))
	sugg := p.Suggestions()
	require.NotEmpty(t, sugg)
	assert.Equal(t, market.Symbol("MSFT"), sugg[0].Symbol)

	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, AddSymbolMsg{Symbol: "MSFT"}, cmd())
	assert.Empty(t, p.Suggestions())
}

func TestPickerMatchesNames(t *testing.T) {
	p := NewSymbolPickerPanel(market.DefaultCatalog().Listings())
	p.SetFocus(true)

	p.Update(runes("netflix"))
	sugg := p.Suggestions()
	require.Len(t, sugg, 1)
	assert.Equal(t, market.Symbol("NFLX"), sugg[0].Symbol)
}

func TestPickerSubmitsUnknownSymbol(t *testing.T) {
	p := NewSymbolPickerPanel(market.DefaultCatalog().Listings())
	p.SetFocus(true)

	p.Update(runes("zzz"))
	assert.Empty(t, p.Suggestions())
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, AddSymbolMsg{Symbol: "ZZZ"}, cmd())
}

func TestPickerIgnoresKeysWhenBlurred(t *testing.T) {
	p := NewSymbolPickerPanel(market.DefaultCatalog().Listings())
	p.Update(runes("ms"))
	assert.Empty(t, p.Suggestions())

	p.SetFocus(true)
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestNoticesPanelKeepsTail(t *testing.T) {
	p := NewNoticesPanel()
	p.SetSize(80, 10)
	for i := 0; i < 60; i++ {
		p.AddNotice(notice.Notice{Message: "n", Level: notice.LevelInfo, Time: time.Now()})
	}
	assert.Len(t, p.Notices(), 50)

	p.AddNotice(notice.Notice{Symbol: "AAPL", Message: "failed to fetch data for: AAPL", Level: notice.LevelError, Time: time.Now()})
	assert.Contains(t, p.View(), "AAPL: failed to fetch")
}

func TestNoticesPanelReplacesFoldedRepeat(t *testing.T) {
	p := NewNoticesPanel()
	p.SetSize(80, 10)
	fail := notice.Notice{ID: "n1", Symbol: "TSLA", Message: "failed to fetch data for: TSLA", Level: notice.LevelError, Time: time.Now()}
	p.AddNotice(fail)
	fail.Repeat = 2
	p.AddNotice(fail)

	require.Len(t, p.Notices(), 1)
	assert.Contains(t, p.View(), "(x3)")
}
