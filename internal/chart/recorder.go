package chart

// Op is one recorded drawing call.
type Op struct {
	Kind   string    `json:"kind"`
	Xs     []float64 `json:"xs,omitempty"`
	Ys     []float64 `json:"ys,omitempty"`
	Color  string    `json:"color,omitempty"`
	Dashed bool      `json:"dashed,omitempty"`
	Alpha  float64   `json:"alpha,omitempty"`
	Text   string    `json:"text,omitempty"`
	Size   string    `json:"size,omitempty"`
}

// Recorder is a Surface that records drawing calls, used to serve draw lists
// to remote clients.
type Recorder struct {
	Width, Height int
	Ops           []Op
}

// NewRecorder creates a Recorder of the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{Width: width, Height: height}
}

func (r *Recorder) Size() (int, int) { return r.Width, r.Height }

func (r *Recorder) Clear() { r.Ops = r.Ops[:0] }

func (r *Recorder) Polyline(xs, ys []float64, stroke Stroke) {
	alpha := 1.0
	if stroke.Translucent {
		alpha = 0.6
	}
	r.Ops = append(r.Ops, Op{
		Kind:   "polyline",
		Xs:     append([]float64(nil), xs...),
		Ys:     append([]float64(nil), ys...),
		Color:  stroke.Color,
		Dashed: stroke.Dashed,
		Alpha:  alpha,
	})
}

func (r *Recorder) Marker(x, y float64, mark Mark) {
	alpha := 1.0
	if mark.Translucent {
		alpha = 0.6
	}
	r.Ops = append(r.Ops, Op{Kind: "marker", Xs: []float64{x}, Ys: []float64{y}, Color: mark.Color, Alpha: alpha, Size: mark.Size.String()})
}

func (r *Recorder) Label(x, y float64, text string) {
	r.Ops = append(r.Ops, Op{Kind: "label", Xs: []float64{x}, Ys: []float64{y}, Text: text})
}

// Count returns the number of recorded ops of kind.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}
