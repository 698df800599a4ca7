package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stockpond/internal/market"
)

// Color palette
var (
	// Primary colors
	PrimaryColor   = lipgloss.Color("#7C3AED") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	AccentColor    = lipgloss.Color("#F59E0B") // Amber

	// Status colors
	UpColor      = lipgloss.Color("#10B981") // Green
	DownColor    = lipgloss.Color("#EF4444") // Red
	NeutralColor = lipgloss.Color("#6B7280") // Gray

	// Background colors
	BackgroundColor      = lipgloss.Color("#1F2937")
	PanelBackgroundColor = lipgloss.Color("#111827")
	BorderColor          = lipgloss.Color("#374151")
	FocusBorderColor     = lipgloss.Color("#7C3AED")

	// Text colors
	TextColor          = lipgloss.Color("#F9FAFB")
	TextSecondaryColor = lipgloss.Color("#9CA3AF")
	TextMutedColor     = lipgloss.Color("#6B7280")
)

// Panel styles
var (
	// Base panel style
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	// Focused panel style
	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(FocusBorderColor).
				Padding(0, 1)

	// Panel title style
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	// Header row style
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextSecondaryColor)

	// Row styles
	RowStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(lipgloss.Color("#374151"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)
)

// Price and mood styles
var (
	PriceStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	PriceUpStyle = lipgloss.NewStyle().
			Foreground(UpColor)

	PriceDownStyle = lipgloss.NewStyle().
			Foreground(DownColor)

	// Forecast values are shown dimmed and italic.
	PredictionStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(TextSecondaryColor)

	MoodHappyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(UpColor)

	MoodSadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(DownColor)

	MoodNeutralStyle = lipgloss.NewStyle().
				Foreground(AccentColor)

	// Timestamp style
	TimeStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	// Notice level styles
	NoticeInfoStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	NoticeWarnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(AccentColor)

	NoticeErrorStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(DownColor)
)

// Input styles
var (
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	FocusedInputStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(FocusBorderColor).
				Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor)

	DropdownItemStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Padding(0, 1)

	DropdownSelectedStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(lipgloss.Color("#374151")).
				Padding(0, 1)

	DropdownMatchStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)
)

// Chart styles
var (
	ChartAxisStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	ChartLabelStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor)
)

// Status bar styles
var (
	StatusBarStyle = lipgloss.NewStyle().
			Background(BackgroundColor).
			Foreground(TextSecondaryColor).
			Padding(0, 1)

	StatusBarKeyStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)

	StatusBarDescStyle = lipgloss.NewStyle().
				Foreground(TextSecondaryColor)
)

// RenderTitle renders a panel title bar.
func RenderTitle(title string, focused bool) string {
	style := TitleStyle
	if focused {
		style = style.Foreground(FocusBorderColor)
	}
	return style.Render(title)
}

// MoodStyle returns the style for a mood.
func MoodStyle(m market.Mood) lipgloss.Style {
	switch m {
	case market.MoodHappy:
		return MoodHappyStyle
	case market.MoodSad:
		return MoodSadStyle
	default:
		return MoodNeutralStyle
	}
}

// ChangeStyle colors a percentage change by sign.
func ChangeStyle(pct float64) lipgloss.Style {
	switch {
	case pct > 0:
		return PriceUpStyle
	case pct < 0:
		return PriceDownStyle
	default:
		return PriceStyle
	}
}

// FormatPrice renders a price with two decimals.
func FormatPrice(price float64) string {
	return "$" + decimal.NewFromFloat(price).StringFixed(2)
}

// FormatChange renders a signed percentage with two decimals.
func FormatChange(pct float64) string {
	d := decimal.NewFromFloat(pct).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}
