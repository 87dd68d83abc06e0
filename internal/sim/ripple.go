package sim

import (
	"errors"
	"math"

	"github.com/gogpu/gg"

	"simloop/internal/buffer"
	"simloop/internal/worker"
)

// RippleName is the registry name of the ripple simulation.
const RippleName = "ripple"

const (
	rippleCols = 96
	rippleRows = 54
)

// RippleParams are the user-editable ripple settings.
type RippleParams struct {
	// Wave is the squared propagation speed, stable below 0.5.
	Wave    float64
	Damping float64
	// DropEvery adds an automatic drop every n frames; 0 disables drops.
	DropEvery int
	Amplitude float64
}

// Ripple solves the 2D wave equation on a coarse grid.
type Ripple struct {
	params RippleParams
	prev   []float64
	curr   []float64
	next   []float64
	drops  []Point
	seed   uint64
	width  int
	height int
}

// NewRipple returns a ripple with default parameters.
func NewRipple() *Ripple {
	return &Ripple{params: RippleParams{Wave: 0.25, Damping: 0.985, DropEvery: 45, Amplitude: 1}}
}

func (r *Ripple) Name() string { return RippleName }

func (r *Ripple) Prepare(b *buffer.Buffer) {
	buffer.Bind(b, "wave", &r.params.Wave)
	buffer.Bind(b, "damping", &r.params.Damping)
	buffer.Bind(b, "drop_every", &r.params.DropEvery)
	buffer.Bind(b, "amplitude", &r.params.Amplitude)
}

func (r *Ripple) Start() {
	n := rippleCols * rippleRows
	r.prev = make([]float64, n)
	r.curr = make([]float64, n)
	r.next = make([]float64, n)
	r.drops = nil
	r.seed = 0x9e3779b97f4a7c15
}

func (r *Ripple) Stop() {
	r.drops = nil
}

// Energy returns the sum of squared heights, used to check damping.
func (r *Ripple) Energy() float64 {
	var e float64
	for _, v := range r.curr {
		e += v * v
	}
	return e
}

func (r *Ripple) Step(f *worker.Frame) error {
	if r.curr == nil {
		r.Start()
	}
	if r.params.Wave <= 0 || r.params.Wave >= 0.5 {
		return errors.New("ripple: wave must be between 0 and 0.5")
	}
	r.width, r.height = f.Width, f.Height

	for _, d := range r.drops {
		r.disturb(d.X, d.Y)
	}
	r.drops = r.drops[:0]
	if every := r.params.DropEvery; every > 0 && f.Index%uint64(every) == 0 {
		r.disturb(r.random(), r.random())
	}

	c, damp := r.params.Wave, r.params.Damping
	for y := 1; y < rippleRows-1; y++ {
		row := y * rippleCols
		for x := 1; x < rippleCols-1; x++ {
			i := row + x
			lap := r.curr[i-1] + r.curr[i+1] + r.curr[i-rippleCols] + r.curr[i+rippleCols] - 4*r.curr[i]
			r.next[i] = (2*r.curr[i] - r.prev[i] + c*lap) * damp
		}
	}
	r.prev, r.curr, r.next = r.curr, r.next, r.prev
	return nil
}

// disturb adds an impulse at fractional grid coordinates 0..1.
func (r *Ripple) disturb(fx, fy float64) {
	if r.curr == nil {
		return
	}
	x := 1 + int(fx*float64(rippleCols-3))
	y := 1 + int(fy*float64(rippleRows-3))
	r.curr[y*rippleCols+x] += r.params.Amplitude
}

// random is a xorshift generator so runs are reproducible.
func (r *Ripple) random() float64 {
	r.seed ^= r.seed << 13
	r.seed ^= r.seed >> 7
	r.seed ^= r.seed << 17
	return float64(r.seed>>11) / float64(1<<53)
}

func (r *Ripple) HandleEvent(e worker.Event) {
	if e.Type != worker.EventPointerDown || r.width <= 0 || r.height <= 0 {
		return
	}
	r.drops = append(r.drops, Point{
		X: min(1, max(0, e.X/float64(r.width))),
		Y: min(1, max(0, e.Y/float64(r.height))),
	})
}

func (r *Ripple) Draw(dc *gg.Context) {
	dc.ClearWithColor(gg.RGB(0.02, 0.06, 0.12))
	if r.curr == nil {
		return
	}
	cw := float64(dc.Width()) / rippleCols
	ch := float64(dc.Height()) / rippleRows
	for y := range rippleRows {
		for x := range rippleCols {
			v := r.curr[y*rippleCols+x]
			if math.Abs(v) < 0.01 {
				continue
			}
			t := min(1, math.Abs(v))
			if v > 0 {
				dc.SetRGB(0.2+0.8*t, 0.5+0.5*t, 1)
			} else {
				dc.SetRGB(0.02, 0.06+0.2*t, 0.12+0.4*t)
			}
			dc.DrawRectangle(float64(x)*cw, float64(y)*ch, cw+0.5, ch+0.5)
			_ = dc.Fill()
		}
	}
}
