package panels

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/stockpond/internal/chart"
	playbackview "github.com/zappabad/stockpond/internal/playback/view"
	"github.com/zappabad/stockpond/tui/styles"
)

const chartGutter = 12

// ChartPanel draws the accumulated playback history as a line chart.
type ChartPanel struct {
	chart    *chart.Chart
	canvas   *Canvas
	rendered string
	hasData  bool

	focused bool
	width   int
	height  int
}

// NewChartPanel creates a chart panel. color resolves each symbol's stroke.
func NewChartPanel(color chart.ColorFunc) *ChartPanel {
	return &ChartPanel{
		chart:  chart.New(color),
		canvas: NewCanvas(0, 0, chartGutter),
	}
}

// Init initializes the panel.
func (p *ChartPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *ChartPanel) Update(msg tea.Msg) (*ChartPanel, tea.Cmd) {
	return p, nil
}

// View renders the panel.
func (p *ChartPanel) View() string {
	var content strings.Builder

	plotW := p.width - 4 - chartGutter
	plotH := p.height - 5
	if plotW < 10 {
		plotW = 10
	}
	if plotH < 5 {
		plotH = 5
	}
	if w, h := p.canvas.Size(); w != plotW || h != plotH {
		p.canvas.Resize(plotW, plotH)
		p.chart.SetSize(plotW, plotH)
	}
	if p.chart.Render(p.canvas) {
		p.rendered = p.canvas.Render()
	}

	if !p.hasData {
		content.WriteString(styles.MutedStyle.Render("Add a symbol and press space to start playback..."))
	} else {
		content.WriteString(p.rendered)
		content.WriteString("\n")
		content.WriteString(p.renderLegend())
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle(fmt.Sprintf("📈 Chart - %s", p.chart.Mode()), p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func (p *ChartPanel) renderLegend() string {
	frame := p.chart.Frame()
	parts := make([]string, 0, len(frame.Legend))
	for _, e := range frame.Legend {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color)).Render("■")
		parts = append(parts, swatch+" "+styles.ChartLabelStyle.Render(e.Label))
	}
	return strings.Repeat(" ", chartGutter) + strings.Join(parts, "  ")
}

// SetHistory feeds the latest playback history to the chart.
func (p *ChartPanel) SetHistory(h playbackview.History) {
	p.chart.Update(h)
	p.hasData = false
	for _, pts := range h.Points {
		if len(pts) > 0 {
			p.hasData = true
			break
		}
	}
}

// ToggleMode switches between individual and portfolio mode.
func (p *ChartPanel) ToggleMode() chart.Mode {
	return p.chart.ToggleMode()
}

// Mode returns the current chart mode.
func (p *ChartPanel) Mode() chart.Mode {
	return p.chart.Mode()
}

// SetFocus sets the focus state of the panel.
func (p *ChartPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *ChartPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}
