package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/tui/styles"
)

const pickerDropdownRows = 5

// AddSymbolMsg is sent when the user picks a symbol.
type AddSymbolMsg struct {
	Symbol string
}

// SymbolPickerPanel is a text input with catalog autocomplete.
type SymbolPickerPanel struct {
	listings []market.Listing
	input    textinput.Model

	// Dropdown state
	showDropdown bool
	filtered     []market.Listing
	index        int

	focused bool
	width   int
	height  int
}

// NewSymbolPickerPanel creates a picker over the catalog listings.
func NewSymbolPickerPanel(listings []market.Listing) *SymbolPickerPanel {
	input := textinput.New()
	input.Placeholder = "Search symbol..."
	input.Width = 15
	input.CharLimit = 10

	return &SymbolPickerPanel{
		listings: listings,
		input:    input,
		filtered: listings,
	}
}

// Init initializes the panel.
func (p *SymbolPickerPanel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the panel.
func (p *SymbolPickerPanel) Update(msg tea.Msg) (*SymbolPickerPanel, tea.Cmd) {
	if !p.focused {
		return p, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			return p, p.submit()

		case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
			p.showDropdown = false
			return p, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("up"))):
			if p.showDropdown && p.index > 0 {
				p.index--
			}
			return p, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("down"))):
			if p.showDropdown && p.index < min(len(p.filtered), pickerDropdownRows)-1 {
				p.index++
			}
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.filter(p.input.Value())
	p.showDropdown = p.input.Value() != ""
	return p, cmd
}

// View renders the panel.
func (p *SymbolPickerPanel) View() string {
	var content strings.Builder

	inputStyle := styles.InputStyle
	if p.focused {
		inputStyle = styles.FocusedInputStyle
	}
	content.WriteString(styles.LabelStyle.Render("Symbol  "))
	content.WriteString(inputStyle.Render(p.input.View()))

	if p.showDropdown && len(p.filtered) > 0 {
		n := min(len(p.filtered), pickerDropdownRows)
		for i := 0; i < n; i++ {
			l := p.filtered[i]
			style := styles.DropdownItemStyle
			if i == p.index {
				style = styles.DropdownSelectedStyle
			}
			line := p.highlightMatch(string(l.Symbol), p.input.Value())
			if l.Name != "" {
				line += " " + styles.MutedStyle.Render(l.Name)
			}
			content.WriteString("\n        " + style.Render(line))
		}
	} else {
		content.WriteString("\n")
		content.WriteString(styles.MutedStyle.Render("enter adds a pet, unknown symbols use a $100 base price"))
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle(fmt.Sprintf("➕ Add Pet (%d in catalog)", len(p.listings)), p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func (p *SymbolPickerPanel) submit() tea.Cmd {
	value := strings.ToUpper(strings.TrimSpace(p.input.Value()))
	if p.showDropdown && p.index < len(p.filtered) {
		value = string(p.filtered[p.index].Symbol)
	}
	p.Reset()
	if value == "" {
		return nil
	}
	return func() tea.Msg {
		return AddSymbolMsg{Symbol: value}
	}
}

// filter keeps listings whose symbol or name contains query. Symbol prefix
// matches sort first.
func (p *SymbolPickerPanel) filter(query string) {
	query = strings.ToUpper(strings.TrimSpace(query))
	p.index = 0
	if query == "" {
		p.filtered = p.listings
		return
	}

	var prefix, rest []market.Listing
	for _, l := range p.listings {
		sym := string(l.Symbol)
		switch {
		case strings.HasPrefix(sym, query):
			prefix = append(prefix, l)
		case strings.Contains(sym, query) || strings.Contains(strings.ToUpper(l.Name), query):
			rest = append(rest, l)
		}
	}
	p.filtered = append(prefix, rest...)
}

func (p *SymbolPickerPanel) highlightMatch(item, query string) string {
	if query == "" {
		return item
	}

	idx := strings.Index(strings.ToUpper(item), strings.ToUpper(query))
	if idx == -1 {
		return item
	}

	before := item[:idx]
	match := item[idx : idx+len(query)]
	after := item[idx+len(query):]

	return before + styles.DropdownMatchStyle.Render(match) + after
}

// Suggestions returns the current dropdown entries.
func (p *SymbolPickerPanel) Suggestions() []market.Listing {
	if !p.showDropdown {
		return nil
	}
	return p.filtered
}

// SetFocus sets the focus state of the panel.
func (p *SymbolPickerPanel) SetFocus(focused bool) {
	p.focused = focused
	if focused {
		p.input.Focus()
	} else {
		p.input.Blur()
	}
}

// SetSize sets the panel dimensions.
func (p *SymbolPickerPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Reset clears the input.
func (p *SymbolPickerPanel) Reset() {
	p.input.SetValue("")
	p.filtered = p.listings
	p.index = 0
	p.showDropdown = false
}
