package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/internal/notice"
	noticeservice "github.com/zappabad/stockpond/internal/notice/service"
	playbackservice "github.com/zappabad/stockpond/internal/playback/service"
	"github.com/zappabad/stockpond/tui/panels"
	"github.com/zappabad/stockpond/tui/styles"
)

// PanelFocus represents which panel is currently focused.
type PanelFocus int

const (
	FocusPets    PanelFocus = 0
	FocusChart   PanelFocus = 1
	FocusNotices PanelFocus = 2
	FocusPicker  PanelFocus = 3

	panelCount = 4
)

// StartTimeout bounds how long the UI waits for series before playback.
const StartTimeout = 5 * time.Minute

// Model is the main TUI application model.
type Model struct {
	// Services
	playback *playbackservice.Controller
	notices  *noticeservice.NoticeService
	catalog  market.Catalog

	ctx    context.Context
	cancel context.CancelFunc

	noticeCh    <-chan notice.Notice
	stopNotices func()

	// Panels
	chartPanel   *panels.ChartPanel
	petsPanel    *panels.PetsPanel
	noticesPanel *panels.NoticesPanel
	pickerPanel  *panels.SymbolPickerPanel

	// Focus management
	focusedPanel PanelFocus

	// Window dimensions
	width  int
	height int

	// Status
	statusMsg string
	starting  bool
	ready     bool
}

// NewModel creates a new TUI model.
func NewModel(playback *playbackservice.Controller, notices *noticeservice.NoticeService, catalog market.Catalog) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		playback:     playback,
		notices:      notices,
		catalog:      catalog,
		ctx:          ctx,
		cancel:       cancel,
		chartPanel:   panels.NewChartPanel(catalog.Color),
		petsPanel:    panels.NewPetsPanel(),
		noticesPanel: panels.NewNoticesPanel(),
		pickerPanel:  panels.NewSymbolPickerPanel(catalog.Listings()),
		focusedPanel: FocusPets,
	}
	m.noticeCh, m.stopNotices = notices.Subscribe(0)
	m.refresh()
	return m
}

// shutdown cancels pending work and ends the notice subscription.
func (m *Model) shutdown() {
	m.cancel()
	m.stopNotices()
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.chartPanel.Init(),
		m.petsPanel.Init(),
		m.noticesPanel.Init(),
		m.pickerPanel.Init(),
		m.listenPlaybackEvents(),
		m.listenNoticeEvents(),
		m.tickRefresh(),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit
		case "tab":
			m.setFocus((m.focusedPanel + 1) % panelCount)
			return m, nil
		case "shift+tab":
			m.setFocus((m.focusedPanel + panelCount - 1) % panelCount)
			return m, nil
		}
		// The picker consumes plain keys as text.
		if m.focusedPanel != FocusPicker {
			if cmd, handled := m.handleCommandKey(msg.String()); handled {
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case panels.AddSymbolMsg:
		if err := m.playback.AddSymbol(msg.Symbol); err != nil {
			m.statusMsg = "✗ " + describeError(err)
		} else {
			m.statusMsg = fmt.Sprintf("✓ %s joined the pond", msg.Symbol)
		}
		m.refresh()

	case startResultMsg:
		m.starting = false
		if msg.err != nil {
			m.statusMsg = "✗ " + describeError(msg.err)
		} else {
			m.statusMsg = "▶ playing"
		}
		m.refresh()

	case playbackEventMsg:
		m.refresh()
		cmds = append(cmds, m.listenPlaybackEvents())

	case panels.NoticeMsg:
		m.noticesPanel.AddNotice(msg.Notice)
		cmds = append(cmds, m.listenNoticeEvents())

	case tickMsg:
		m.refresh()
		cmds = append(cmds, m.tickRefresh())
	}

	// Update focused panel
	m.updateFocusedPanel(msg, &cmds)

	return m, tea.Batch(cmds...)
}

// handleCommandKey runs a single-key command. It reports whether the key was
// a command.
func (m *Model) handleCommandKey(k string) (tea.Cmd, bool) {
	switch k {
	case "q":
		m.shutdown()
		return tea.Quit, true

	case " ":
		return m.toggleRun(), true

	case "v":
		mode := m.chartPanel.ToggleMode()
		m.statusMsg = fmt.Sprintf("view: %s", mode)
		return nil, true

	case "s":
		d := m.playback.NextSpeed()
		m.statusMsg = fmt.Sprintf("speed: %s per day", d)
		return nil, true

	case "x":
		sym, ok := m.petsPanel.SelectedSymbol()
		if !ok {
			return nil, true
		}
		if err := m.playback.RemoveSymbol(string(sym)); err != nil {
			m.statusMsg = "✗ " + describeError(err)
		} else {
			m.statusMsg = fmt.Sprintf("%s left the pond", sym)
		}
		m.refresh()
		return nil, true

	case "r":
		n, err := m.playback.Retry()
		switch {
		case err != nil:
			m.statusMsg = "✗ " + describeError(err)
		case n == 0:
			m.statusMsg = "nothing to retry"
		default:
			m.statusMsg = fmt.Sprintf("retrying %d symbols", n)
		}
		m.refresh()
		return nil, true
	}
	return nil, false
}

func (m *Model) toggleRun() tea.Cmd {
	if m.playback.State() == playbackservice.StateRunning {
		m.playback.Stop()
		m.statusMsg = "⏸ stopped"
		return nil
	}
	if m.starting {
		return nil
	}
	m.starting = true
	m.statusMsg = "fetching data..."
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, StartTimeout)
		defer cancel()
		return startResultMsg{err: m.playback.Start(ctx)}
	}
}

func (m *Model) updateFocusedPanel(msg tea.Msg, cmds *[]tea.Cmd) {
	var cmd tea.Cmd

	switch m.focusedPanel {
	case FocusPets:
		m.petsPanel, cmd = m.petsPanel.Update(msg)
	case FocusChart:
		m.chartPanel, cmd = m.chartPanel.Update(msg)
	case FocusNotices:
		m.noticesPanel, cmd = m.noticesPanel.Update(msg)
	case FocusPicker:
		m.pickerPanel, cmd = m.pickerPanel.Update(msg)
	}

	if cmd != nil {
		*cmds = append(*cmds, cmd)
	}
}

// View renders the UI.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	m.chartPanel.SetFocus(m.focusedPanel == FocusChart)
	m.petsPanel.SetFocus(m.focusedPanel == FocusPets)
	m.noticesPanel.SetFocus(m.focusedPanel == FocusNotices)
	m.pickerPanel.SetFocus(m.focusedPanel == FocusPicker)

	// Layout:
	// ┌──────────────────────────────┬──────────────┐
	// │            Chart             │     Pond     │
	// ├───────────────┬──────────────┴──────────────┤
	// │    Notices    │          Add Pet            │
	// └───────────────┴─────────────────────────────┘

	leftWidth := m.width * 2 / 3
	rightWidth := m.width - leftWidth

	topHeight := (m.height - 1) * 2 / 3
	bottomHeight := m.height - topHeight - 1

	m.chartPanel.SetSize(leftWidth, topHeight)
	m.petsPanel.SetSize(rightWidth, topHeight)
	topRow := lipgloss.JoinHorizontal(lipgloss.Top,
		m.chartPanel.View(),
		m.petsPanel.View(),
	)

	noticesWidth := m.width / 2
	m.noticesPanel.SetSize(noticesWidth, bottomHeight)
	m.pickerPanel.SetSize(m.width-noticesWidth, bottomHeight)
	bottomRow := lipgloss.JoinHorizontal(lipgloss.Top,
		m.noticesPanel.View(),
		m.pickerPanel.View(),
	)

	return lipgloss.JoinVertical(lipgloss.Left, topRow, bottomRow, m.renderStatusBar())
}

func (m *Model) renderStatusBar() string {
	key := func(k, desc string) string {
		return styles.StatusBarKeyStyle.Render(k) + styles.StatusBarDescStyle.Render(" "+desc)
	}
	help := lipgloss.JoinHorizontal(lipgloss.Center,
		key("space", "play"), " │ ",
		key("v", "view"), " │ ",
		key("s", "speed"), " │ ",
		key("x", "remove"), " │ ",
		key("r", "retry"), " │ ",
		key("tab", "focus"), " │ ",
		key("q", "quit"),
	)

	return styles.StatusBarStyle.Width(m.width).Render(help + " │ " + m.playbackStatus())
}

// playbackStatus summarizes the run, e.g. "Day 12 of 200 · 2024-03-04 · 1s".
func (m *Model) playbackStatus() string {
	status := m.playback.State().String()
	if h := m.playback.History().History(); h.HasLatest {
		status = fmt.Sprintf("Day %d of %d · %s · %s", h.Latest.Index+1, h.Latest.MaxIndex+1, h.Latest.Day, status)
	}
	status += " · " + m.playback.Speed().String()

	stats := m.playback.SourceStats()
	status += fmt.Sprintf(" · %s %d/%d calls", m.playback.SourceName(), stats.CallsToday, stats.MaxCallsPerDay)
	if m.statusMsg != "" {
		status += " │ " + m.statusMsg
	}
	return status
}

func (m *Model) setFocus(panel PanelFocus) {
	m.focusedPanel = panel
}

// refresh pulls the current playback state into the panels. The chart only
// redraws when the history version changed.
func (m *Model) refresh() {
	h := m.playback.History().History()
	m.chartPanel.SetHistory(h)

	failures := make(map[market.Symbol]error)
	for _, f := range m.playback.Failures() {
		failures[f.Symbol] = f.Err
	}

	var quotes map[market.Symbol]datasource.Quote
	if m.playback.State() != playbackservice.StateRunning {
		quotes = m.playback.Quotes()
	}

	selected := m.playback.Selected()
	pets := make([]panels.Pet, 0, len(selected))
	for _, s := range selected {
		pet := panels.Pet{
			Symbol:  s,
			Color:   m.catalog.Color(s),
			Loading: m.playback.Pending(s),
			Loaded:  m.playback.Loaded(s),
			Err:     failures[s],
		}
		if h.HasLatest {
			pet.State, pet.HasState = h.Latest.PerSymbol[s]
		}
		pet.Quote, pet.HasQuote = quotes[s]
		pets = append(pets, pet)
	}
	m.petsPanel.SetPets(pets)
}

func (m *Model) listenPlaybackEvents() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.playback.Events()
		if !ok {
			return nil
		}
		return playbackEventMsg{event: ev}
	}
}

func (m *Model) listenNoticeEvents() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-m.noticeCh
		if !ok {
			return nil
		}
		return panels.NoticeMsg{Notice: n}
	}
}

// tickMsg is sent periodically to refresh data.
type tickMsg struct{}

func (m *Model) tickRefresh() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

// startResultMsg is sent once Start returns.
type startResultMsg struct {
	err error
}

type playbackEventMsg struct {
	event playbackservice.Event
}

func describeError(err error) string {
	switch {
	case errors.Is(err, market.ErrCapacityExceeded):
		return fmt.Sprintf("the pond holds at most %d pets", market.MaxSelected)
	case errors.Is(err, market.ErrAlreadySelected):
		return "that pet is already in the pond"
	case errors.Is(err, market.ErrRunning), errors.Is(err, market.ErrAlreadyRunning):
		return "stop playback first"
	case errors.Is(err, market.ErrNoSymbols):
		return "add a symbol first"
	case errors.Is(err, market.ErrNoDataAvailable):
		return "no data available, press r to retry"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out waiting for data"
	default:
		logx.Errorf("tui: %v", err)
		return err.Error()
	}
}
