package sim

import (
	"errors"
	"math"

	"github.com/gogpu/gg"

	"simloop/internal/buffer"
	"simloop/internal/worker"
)

// OrbitName is the registry name of the orbit simulation.
const OrbitName = "orbit"

// Point is a position in canvas coordinates.
type Point struct {
	X, Y float64
}

// OrbitParams are the user-editable orbit settings.
type OrbitParams struct {
	// Speed is angular velocity in radians per second.
	Speed  float64
	Bodies int
	// Radius is the orbit radius as a fraction of the shorter canvas side.
	Radius float64
	// Center is where the bodies orbit; the zero value means canvas centre.
	Center Point
}

// Orbit moves a ring of bodies around a centre point. Clicking moves the
// centre, scrolling changes the radius.
type Orbit struct {
	params OrbitParams
	angle  float64
	width  int
	height int
}

// NewOrbit returns an orbit with default parameters.
func NewOrbit() *Orbit {
	return &Orbit{params: OrbitParams{Speed: 1.2, Bodies: 6, Radius: 0.35}}
}

func (o *Orbit) Name() string { return OrbitName }

func (o *Orbit) Prepare(b *buffer.Buffer) {
	buffer.Bind(b, "speed", &o.params.Speed)
	buffer.Bind(b, "bodies", &o.params.Bodies)
	buffer.Bind(b, "radius", &o.params.Radius)
	buffer.Bind(b, "center", &o.params.Center)
}

func (o *Orbit) Start() { o.angle = 0 }

func (o *Orbit) Stop() {}

// Angle returns the current phase in radians.
func (o *Orbit) Angle() float64 { return o.angle }

// Params returns the live parameters.
func (o *Orbit) Params() OrbitParams { return o.params }

func (o *Orbit) Step(f *worker.Frame) error {
	if o.params.Bodies < 0 {
		return errors.New("orbit: body count must not be negative")
	}
	o.width, o.height = f.Width, f.Height
	if o.params.Center == (Point{}) && f.Width > 0 {
		o.params.Center = Point{X: float64(f.Width) / 2, Y: float64(f.Height) / 2}
	}
	o.angle = math.Mod(o.angle+o.params.Speed*f.Delta.Seconds(), 2*math.Pi)
	return nil
}

func (o *Orbit) HandleEvent(e worker.Event) {
	switch e.Type {
	case worker.EventPointerDown:
		o.params.Center = Point{X: e.X, Y: e.Y}
	case worker.EventScroll:
		o.params.Radius = min(0.5, max(0.05, o.params.Radius+e.Y*0.01))
	}
}

func (o *Orbit) Draw(dc *gg.Context) {
	dc.ClearWithColor(gg.RGB(0.04, 0.05, 0.09))
	w, h := float64(dc.Width()), float64(dc.Height())
	center := o.params.Center
	if center == (Point{}) {
		center = Point{X: w / 2, Y: h / 2}
	}
	radius := o.params.Radius * math.Min(w, h)

	dc.SetRGBA(1, 1, 1, 0.15)
	dc.SetLineWidth(1)
	dc.DrawCircle(center.X, center.Y, radius)
	_ = dc.Stroke()

	dc.SetRGB(1, 0.8, 0.3)
	dc.DrawCircle(center.X, center.Y, math.Max(2, radius*0.12))
	_ = dc.Fill()

	n := o.params.Bodies
	for i := range n {
		phase := o.angle + 2*math.Pi*float64(i)/float64(n)
		x := center.X + radius*math.Cos(phase)
		y := center.Y + radius*math.Sin(phase)
		hue := float64(i) / float64(n)
		dc.SetRGB(0.4+0.6*hue, 0.6, 1-0.6*hue)
		dc.DrawCircle(x, y, math.Max(1.5, radius*0.06))
		_ = dc.Fill()
	}
}
