package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/stockpond/internal/datasource"
	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/internal/mood"
	playbackview "github.com/zappabad/stockpond/internal/playback/view"
	"github.com/zappabad/stockpond/tui/styles"
)

// Pet is one selected symbol as shown in the pond.
type Pet struct {
	Symbol   market.Symbol
	Color    string
	State    playbackview.SymbolState
	HasState bool
	// Quote is the live price shown while playback is stopped.
	Quote    datasource.Quote
	HasQuote bool
	Loading  bool
	Loaded   bool
	Err      error
}

// Face returns the pet's drawing for a mood.
func Face(m market.Mood) string {
	switch m {
	case market.MoodHappy:
		return "><((^>"
	case market.MoodSad:
		return "><((;>"
	default:
		return "><((•>"
	}
}

// PetsPanel lists the selected symbols with their mood.
type PetsPanel struct {
	pets          []Pet
	selectedIndex int
	focused       bool
	width         int
	height        int
}

// NewPetsPanel creates a new pets panel.
func NewPetsPanel() *PetsPanel {
	return &PetsPanel{}
}

// Init initializes the panel.
func (p *PetsPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *PetsPanel) Update(msg tea.Msg) (*PetsPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !p.focused {
			return p, nil
		}
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if p.selectedIndex > 0 {
				p.selectedIndex--
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if p.selectedIndex < len(p.pets)-1 {
				p.selectedIndex++
			}
		}
	}
	return p, nil
}

// View renders the panel.
func (p *PetsPanel) View() string {
	var content strings.Builder

	if len(p.pets) == 0 {
		content.WriteString(styles.MutedStyle.Render(fmt.Sprintf("The pond is empty. Pick up to %d symbols.", market.MaxSelected)))
	}
	for i, pet := range p.pets {
		content.WriteString(p.renderPet(pet, i == p.selectedIndex && p.focused))
		if i < len(p.pets)-1 {
			content.WriteString("\n")
		}
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle(fmt.Sprintf("🐟 Pond %d/%d", len(p.pets), market.MaxSelected), p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func (p *PetsPanel) renderPet(pet Pet, selected bool) string {
	name := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(pet.Color)).Render(fmt.Sprintf("%-6s", pet.Symbol))

	var detail string
	switch {
	case pet.HasQuote:
		m := mood.Classify(pet.Quote.ChangePercent)
		detail = p.renderPrice(m, pet.Quote.Price, pet.Quote.ChangePercent) + " " + styles.MutedStyle.Render("live")
	case pet.HasState:
		detail = p.renderPrice(pet.State.Mood, pet.State.Price, pet.State.ChangePercent)
		if pet.State.IsPrediction {
			detail += " " + styles.PredictionStyle.Render("forecast")
		}
	case pet.Loading:
		detail = styles.MutedStyle.Render(Face(market.MoodNeutral) + " fetching...")
	case pet.Err != nil:
		detail = styles.NoticeErrorStyle.Render(Face(market.MoodSad) + " no data (r to retry)")
	case pet.Loaded:
		detail = styles.MoodNeutralStyle.Render(Face(market.MoodNeutral)) + styles.MutedStyle.Render(" ready")
	default:
		detail = styles.MutedStyle.Render(Face(market.MoodNeutral))
	}

	row := name + " " + detail
	if selected {
		return styles.SelectedRowStyle.Render(row)
	}
	return row
}

func (p *PetsPanel) renderPrice(m market.Mood, price, change float64) string {
	face := styles.MoodStyle(m).Render(Face(m))
	priceText := styles.PriceStyle.Render(fmt.Sprintf("%10s", styles.FormatPrice(price)))
	changeText := styles.ChangeStyle(change).Render(fmt.Sprintf("%8s", styles.FormatChange(change)))
	return fmt.Sprintf("%s %s %s %s", face, priceText, changeText, styles.MoodStyle(m).Render(m.String()))
}

// SetFocus sets the focus state of the panel.
func (p *PetsPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *PetsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetPets replaces the displayed pets, keeping the selection in range.
func (p *PetsPanel) SetPets(pets []Pet) {
	p.pets = pets
	if p.selectedIndex >= len(p.pets) {
		p.selectedIndex = len(p.pets) - 1
	}
	if p.selectedIndex < 0 {
		p.selectedIndex = 0
	}
}

// Pets returns the displayed pets.
func (p *PetsPanel) Pets() []Pet {
	return p.pets
}

// SelectedSymbol returns the highlighted symbol, if any.
func (p *PetsPanel) SelectedSymbol() (market.Symbol, bool) {
	if p.selectedIndex >= 0 && p.selectedIndex < len(p.pets) {
		return p.pets[p.selectedIndex].Symbol, true
	}
	return "", false
}
