package chart

import (
	"sync"

	playbackview "github.com/zappabad/stockpond/internal/playback/view"
)

// Stroke describes how a polyline is drawn.
type Stroke struct {
	Color       string
	Dashed      bool
	Translucent bool
}

// Mark describes a point marker.
type Mark struct {
	Color       string
	Size        MarkerSize
	Translucent bool
}

// Surface is a drawing target in its own pixel coordinates, origin top-left.
type Surface interface {
	Size() (width, height int)
	Clear()
	Polyline(xs, ys []float64, stroke Stroke)
	Marker(x, y float64, mark Mark)
	Label(x, y float64, text string)
}

// Chart caches the current frame and redraws only when its inputs change.
type Chart struct {
	mu      sync.Mutex
	color   ColorFunc
	mode    Mode
	width   int
	height  int
	version uint64
	seen    bool
	input   Input
	frame   Frame
	dirty   bool
}

// New creates a Chart in individual mode.
func New(color ColorFunc) *Chart {
	c := &Chart{color: color, dirty: true}
	c.frame = Normalize(c.input, c.mode, c.color)
	return c
}

// Update records a new history. It only marks the chart dirty when the
// history version changed.
func (c *Chart) Update(h playbackview.History) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen && h.Version == c.version {
		return
	}
	c.seen = true
	c.version = h.Version
	c.input = InputFromHistory(h)
	c.frame = Normalize(c.input, c.mode, c.color)
	c.dirty = true
}

// SetMode switches the analysis mode.
func (c *Chart) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m == c.mode {
		return
	}
	c.mode = m
	c.frame = Normalize(c.input, c.mode, c.color)
	c.dirty = true
}

// ToggleMode flips the analysis mode and returns the new one.
func (c *Chart) ToggleMode() Mode {
	c.mu.Lock()
	m := c.mode.Toggle()
	c.mu.Unlock()
	c.SetMode(m)
	return m
}

func (c *Chart) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetSize records the target dimensions.
func (c *Chart) SetSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if width == c.width && height == c.height {
		return
	}
	c.width, c.height = width, height
	c.dirty = true
}

// Dirty reports whether the next Render will draw.
func (c *Chart) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Frame returns the current normalized frame.
func (c *Chart) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Render draws the frame onto s if anything changed since the last render.
// It reports whether it drew.
func (c *Chart) Render(s Surface) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return false
	}
	Draw(s, c.frame)
	c.dirty = false
	return true
}

// Draw paints f onto s unconditionally.
func Draw(s Surface, f Frame) {
	w, h := s.Size()
	s.Clear()
	if w <= 0 || h <= 0 {
		return
	}
	px := func(p Point) (float64, float64) {
		return p.X * float64(w-1), (1 - p.Y) * float64(h-1)
	}

	for _, line := range f.Lines {
		for _, seg := range line.Segments {
			x0, y0 := px(seg.From)
			x1, y1 := px(seg.To)
			s.Polyline([]float64{x0, x1}, []float64{y0, y1}, Stroke{
				Color:       line.Color,
				Dashed:      seg.Dashed,
				Translucent: seg.Dashed,
			})
		}
		if line.Markers != MarkerNone {
			for _, p := range line.Points {
				x, y := px(p)
				s.Marker(x, y, Mark{Color: line.Color, Size: line.Markers, Translucent: p.Prediction})
			}
		}
	}
	for _, l := range f.Axis {
		_, y := px(Point{Y: l.Y})
		s.Label(0, y, l.Text)
	}
}
