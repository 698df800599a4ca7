package panels

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/stockpond/internal/chart"
	"github.com/zappabad/stockpond/tui/styles"
)

const (
	solidRune  = '•'
	dashedRune = '·'
	dotRune    = '●'
	markerRune = '◆'
)

type cell struct {
	r     rune
	color string
	faint bool
}

// Canvas is a character-grid chart.Surface. Axis labels are written into a
// left gutter so they never overlap the plot.
type Canvas struct {
	width  int
	height int
	gutter int
	cells  [][]cell
	labels []string
}

var _ chart.Surface = (*Canvas)(nil)

// NewCanvas creates a canvas whose plot area is width x height cells, with a
// label gutter of the given width to its left.
func NewCanvas(width, height, gutter int) *Canvas {
	c := &Canvas{gutter: gutter}
	c.Resize(width, height)
	return c
}

// Resize changes the plot dimensions and clears the canvas.
func (c *Canvas) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	c.width, c.height = width, height
	c.cells = make([][]cell, height)
	for y := range c.cells {
		c.cells[y] = make([]cell, width)
	}
	c.labels = make([]string, height)
	c.Clear()
}

func (c *Canvas) Size() (int, int) { return c.width, c.height }

func (c *Canvas) Clear() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = cell{r: ' '}
		}
		c.labels[y] = ""
	}
}

// Polyline rasterizes each segment. Dashed strokes leave every other cell
// empty.
func (c *Canvas) Polyline(xs, ys []float64, stroke chart.Stroke) {
	r := solidRune
	if stroke.Dashed {
		r = dashedRune
	}
	for i := 1; i < len(xs) && i < len(ys); i++ {
		x0, y0 := xs[i-1], ys[i-1]
		x1, y1 := xs[i], ys[i]
		steps := int(math.Ceil(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))))
		if steps == 0 {
			c.set(x0, y0, cell{r: r, color: stroke.Color, faint: stroke.Translucent})
			continue
		}
		for k := 0; k <= steps; k++ {
			if stroke.Dashed && k%2 == 1 {
				continue
			}
			t := float64(k) / float64(steps)
			c.set(x0+(x1-x0)*t, y0+(y1-y0)*t, cell{r: r, color: stroke.Color, faint: stroke.Translucent})
		}
	}
}

// Marker draws a point. Large markers outrank small ones, and both outrank
// strokes.
func (c *Canvas) Marker(x, y float64, mark chart.Mark) {
	r := dotRune
	if mark.Size == chart.MarkerLarge {
		r = markerRune
	}
	c.set(x, y, cell{r: r, color: mark.Color, faint: mark.Translucent})
}

// Label writes text into the gutter row nearest to y. x is ignored.
func (c *Canvas) Label(_, y float64, text string) {
	row := int(math.Round(y))
	if row < 0 || row >= c.height {
		return
	}
	c.labels[row] = text
}

func (c *Canvas) set(x, y float64, v cell) {
	col, row := int(math.Round(x)), int(math.Round(y))
	if row < 0 || row >= c.height || col < 0 || col >= c.width {
		return
	}
	if rank(c.cells[row][col].r) > rank(v.r) {
		return
	}
	c.cells[row][col] = v
}

func rank(r rune) int {
	switch r {
	case markerRune:
		return 2
	case dotRune:
		return 1
	default:
		return 0
	}
}

// Rune returns the character at plot position (x, y).
func (c *Canvas) Rune(x, y int) rune {
	if y < 0 || y >= c.height || x < 0 || x >= c.width {
		return 0
	}
	return c.cells[y][x].r
}

// Plain renders the canvas without styling.
func (c *Canvas) Plain() string {
	var b strings.Builder
	for y := 0; y < c.height; y++ {
		b.WriteString(c.gutterText(y))
		for _, cl := range c.cells[y] {
			b.WriteRune(cl.r)
		}
		if y < c.height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Render renders the canvas with colors. Runs of equally styled cells share
// one style call.
func (c *Canvas) Render() string {
	var b strings.Builder
	for y := 0; y < c.height; y++ {
		b.WriteString(styles.ChartAxisStyle.Render(c.gutterText(y)))
		row := c.cells[y]
		for start := 0; start < len(row); {
			end := start + 1
			for end < len(row) && row[end].color == row[start].color && row[end].faint == row[start].faint {
				end++
			}
			var run strings.Builder
			for _, cl := range row[start:end] {
				run.WriteRune(cl.r)
			}
			if row[start].color == "" {
				b.WriteString(run.String())
			} else {
				st := lipgloss.NewStyle().Foreground(lipgloss.Color(row[start].color)).Faint(row[start].faint)
				b.WriteString(st.Render(run.String()))
			}
			start = end
		}
		if y < c.height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (c *Canvas) gutterText(y int) string {
	if c.gutter < 3 {
		return ""
	}
	text := c.labels[y]
	if len(text) > c.gutter-2 {
		text = text[:c.gutter-2]
	}
	return strings.Repeat(" ", c.gutter-2-len(text)) + text + " │"
}
