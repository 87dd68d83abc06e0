package worker

import (
	"time"

	"github.com/gogpu/gg"

	"simloop/internal/buffer"
)

// Frame is the per-step context handed to Simulation.Step.
type Frame struct {
	// Index counts steps since the simulation was started.
	Index uint64
	// Delta is the target frame duration.
	Delta  time.Duration
	Width  int
	Height int

	skipCapture bool
}

// SkipCapture keeps this frame out of an active capture session.
func (f *Frame) SkipCapture() { f.skipCapture = true }

// Simulation is the scene the worker steps.
//
// Prepare runs with the shadow lock held and binds live variables into the
// buffer. Start, Stop, Step and HandleEvent run on the worker goroutine. Draw
// runs on the UI goroutine while the worker is parked waiting for the frame to
// be consumed, so it may read live state without locking. This holds during
// shutdown too: the worker's final Stop waits for an in-flight Draw.
type Simulation interface {
	Name() string
	Prepare(b *buffer.Buffer)
	Start()
	Stop()
	Step(f *Frame) error
	Draw(dc *gg.Context)
}

// EventHandler is implemented by simulations that react to input.
type EventHandler interface {
	HandleEvent(e Event)
}

// EventType enumerates input event kinds.
type EventType int

const (
	EventPointerMove EventType = iota
	EventPointerDown
	EventPointerUp
	EventKey
	EventScroll
)

// Event is one queued input event in canvas coordinates.
type Event struct {
	Type EventType
	X, Y float64
	Key  string
}

// Factory creates a simulation by registered name.
type Factory func(name string) (Simulation, error)

// CaptureGate is the part of a capture session the worker waits on.
type CaptureGate interface {
	IsCapturing() bool
	WaitUntilReadyForNewFrame() bool
}
