package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/stockpond/internal/notice"
	"github.com/zappabad/stockpond/tui/styles"
)

// NoticeMsg is sent when a notice is published.
type NoticeMsg struct {
	Notice notice.Notice
}

// NoticesPanel displays the notice tape, newest last.
type NoticesPanel struct {
	notices       []notice.Notice
	selectedIndex int
	scrollOffset  int
	focused       bool
	width         int
	height        int
	maxItems      int
}

// NewNoticesPanel creates a new notices panel.
func NewNoticesPanel() *NoticesPanel {
	return &NoticesPanel{
		maxItems: 50,
	}
}

// Init initializes the panel.
func (p *NoticesPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *NoticesPanel) Update(msg tea.Msg) (*NoticesPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !p.focused {
			return p, nil
		}
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if p.selectedIndex > 0 {
				p.selectedIndex--
				if p.selectedIndex < p.scrollOffset {
					p.scrollOffset = p.selectedIndex
				}
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if p.selectedIndex < len(p.notices)-1 {
				p.selectedIndex++
				visible := p.visibleItems()
				if p.selectedIndex >= p.scrollOffset+visible {
					p.scrollOffset = p.selectedIndex - visible + 1
				}
			}
		}
	}
	return p, nil
}

func (p *NoticesPanel) visibleItems() int {
	return max(p.height-4, 1)
}

// View renders the panel.
func (p *NoticesPanel) View() string {
	var content strings.Builder

	if len(p.notices) == 0 {
		content.WriteString(styles.MutedStyle.Render("No notices yet"))
	} else {
		visible := p.visibleItems()
		start := p.scrollOffset
		end := min(start+visible, len(p.notices))

		for i := start; i < end; i++ {
			n := p.notices[i]

			msg := n.Message
			if n.Symbol != "" {
				msg = string(n.Symbol) + ": " + msg
			}
			if n.Repeat > 0 {
				msg += fmt.Sprintf(" (x%d)", n.Repeat+1)
			}
			if limit := p.width - 15; limit > 3 && len(msg) > limit {
				msg = msg[:limit-3] + "..."
			}

			var style lipgloss.Style
			switch n.Level {
			case notice.LevelError:
				style = styles.NoticeErrorStyle
			case notice.LevelWarn:
				style = styles.NoticeWarnStyle
			default:
				style = styles.NoticeInfoStyle
			}

			line := fmt.Sprintf("%s %s", styles.TimeStyle.Render(n.Time.Format("15:04:05")), style.Render(msg))
			if i == p.selectedIndex && p.focused {
				line = styles.SelectedRowStyle.Render(line)
			}

			content.WriteString(line)
			if i < end-1 {
				content.WriteString("\n")
			}
		}

		if len(p.notices) > visible {
			content.WriteString("\n")
			content.WriteString(styles.MutedStyle.Render(fmt.Sprintf(" (%d/%d)", p.selectedIndex+1, len(p.notices))))
		}
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle("🔔 Notices", p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

// SetFocus sets the focus state of the panel.
func (p *NoticesPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *NoticesPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetNotices replaces the displayed notices.
func (p *NoticesPanel) SetNotices(items []notice.Notice) {
	p.notices = items
	if p.selectedIndex >= len(p.notices) {
		p.selectedIndex = max(len(p.notices)-1, 0)
	}
}

// AddNotice appends a notice and follows the tail. A repeat of the last
// notice replaces it.
func (p *NoticesPanel) AddNotice(n notice.Notice) {
	if last := len(p.notices) - 1; last >= 0 && n.ID != "" && p.notices[last].ID == n.ID {
		p.notices[last] = n
		p.selectedIndex = last
		return
	}
	p.notices = append(p.notices, n)
	if len(p.notices) > p.maxItems {
		p.notices = p.notices[len(p.notices)-p.maxItems:]
	}
	p.selectedIndex = len(p.notices) - 1
	if visible := p.visibleItems(); p.selectedIndex >= p.scrollOffset+visible {
		p.scrollOffset = p.selectedIndex - visible + 1
	}
}

// Notices returns the displayed notices.
func (p *NoticesPanel) Notices() []notice.Notice {
	return p.notices
}
