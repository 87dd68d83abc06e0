package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gg"

	"simloop/internal/buffer"
	"simloop/internal/dispatch"
	"simloop/internal/logging"
	"simloop/internal/shared"
)

// Options configure a Worker.
type Options struct {
	Sync    *shared.Sync
	Buffer  *buffer.Buffer
	Factory Factory
	// Capture is consulted for backpressure. Nil disables capture coupling.
	Capture CaptureGate
	// Dispatch carries notifications to the UI goroutine. When nil, Notify
	// runs on the worker goroutine.
	Dispatch *dispatch.Queue
	Notify   func(Notification)
	FPS      int
	Width    int
	Height   int
	Logger   *slog.Logger
}

// Status is a snapshot of the worker's simulation state.
type Status struct {
	Simulation string
	Running    bool
	Paused     bool
	Frames     uint64
}

// Worker steps the active simulation on its own goroutine and hands each
// frame to the UI goroutine through shared.Sync.
type Worker struct {
	sync     *shared.Sync
	buf      *buffer.Buffer
	factory  Factory
	capture  CaptureGate
	dispatch *dispatch.Queue
	notify   func(Notification)
	logger   *slog.Logger
	fps      int
	width    int
	height   int

	cmdMu    sync.Mutex
	commands []Command

	eventsMu sync.Mutex
	events   []Event

	// Owned by the worker goroutine. The UI reads active only inside Draw.
	active        Simulation
	running       bool
	paused        bool
	frameIndex    uint64
	shadowChanged bool

	statusMu sync.Mutex
	status   Status
}

// New builds a worker. Sync and Factory are required; a nil Buffer is created
// over Sync.
func New(opts Options) (*Worker, error) {
	if opts.Sync == nil {
		return nil, errors.New("worker: sync is required")
	}
	if opts.Factory == nil {
		return nil, errors.New("worker: simulation factory is required")
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("worker: fps %d must be positive", opts.FPS)
	}
	buf := opts.Buffer
	if buf == nil {
		buf = buffer.New(opts.Sync)
	}
	return &Worker{
		sync:     opts.Sync,
		buf:      buf,
		factory:  opts.Factory,
		capture:  opts.Capture,
		dispatch: opts.Dispatch,
		notify:   opts.Notify,
		logger:   logging.NewComponentLogger(opts.Logger, "worker"),
		fps:      opts.FPS,
		width:    opts.Width,
		height:   opts.Height,
	}, nil
}

// Buffer returns the live/shadow buffer the active simulation binds into.
func (w *Worker) Buffer() *buffer.Buffer { return w.buf }

// Status returns the state as of the last processed command or frame.
func (w *Worker) Status() Status {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	return w.status
}

// QueueEvent queues an input event for the next frame. Safe from any
// goroutine.
func (w *Worker) QueueEvent(e Event) {
	w.eventsMu.Lock()
	w.events = append(w.events, e)
	w.eventsMu.Unlock()
}

// Run drives the frame loop until ctx is cancelled, Sync quits, or a
// simulation step fails. Cancelling ctx quits Sync. A step error is returned
// and left for the caller to act on.
func (w *Worker) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, w.sync.Quit)
	defer stop()

	w.sync.SetWorkerStarted(true)
	defer w.sync.SetWorkerStarted(false)
	defer func() {
		// Quit releases WaitUntilFrameConsumed while the UI may still be
		// drawing the last frame; Stop must not run under it.
		w.sync.WaitUntilPresented()
		w.sync.LockShadow()
		w.teardown()
		w.sync.UnlockShadow()
		w.publishStatus()
	}()

	w.logger.Debug("worker loop started", logging.Int("fps", w.fps))
	for !w.sync.Quitting() {
		w.processCommands()
		if !w.sync.WaitUntilFrameConsumed() {
			break
		}

		encode, err := w.process()
		if err != nil {
			return err
		}
		if encode && w.capture != nil && w.capture.IsCapturing() {
			// Frame N must be encoded before frame N+1 is stepped.
			w.capture.WaitUntilReadyForNewFrame()
		}
		if w.sync.Quitting() {
			break
		}

		w.sync.FlagReadyToDraw(encode)
		drawStart := time.Now()
		if !w.sync.WaitUntilFrameConsumed() {
			break
		}
		if !w.pace(time.Since(drawStart)) {
			break
		}
	}
	w.logger.Debug("worker loop stopped")
	return nil
}

// process runs the buffer sync and simulation step for one frame. It reports
// whether the frame is marked for capture.
func (w *Worker) process() (bool, error) {
	sim := w.active
	if sim == nil {
		w.takeEvents()
		return false, nil
	}

	w.buf.MarkLive()
	// A UI edit made during the previous step is still being synced, so input
	// from that window would act on stale state.
	w.pollEvents(sim, w.shadowChanged)
	w.buf.PullShadowToLive()
	if w.buf.LiveChanged() {
		w.buf.PushLiveToShadow()
	}
	w.buf.RunScheduled()
	w.buf.MarkLive()
	w.buf.MarkShadow()

	encode := false
	if w.running && !w.paused {
		frame := Frame{
			Index:  w.frameIndex,
			Delta:  frameDuration(w.fps),
			Width:  w.width,
			Height: w.height,
		}
		if err := sim.Step(&frame); err != nil {
			return false, fmt.Errorf("step %s frame %d: %w", sim.Name(), frame.Index, err)
		}
		w.frameIndex++
		encode = !frame.skipCapture
	}

	w.shadowChanged = w.buf.HasPendingEdits()
	w.buf.PushUnchangedShadowVars()
	w.publishStatus()
	return encode, nil
}

func (w *Worker) takeEvents() []Event {
	w.eventsMu.Lock()
	events := w.events
	w.events = nil
	w.eventsMu.Unlock()
	return events
}

func (w *Worker) pollEvents(sim Simulation, discard bool) {
	events := w.takeEvents()
	if len(events) == 0 {
		return
	}
	handler, ok := sim.(EventHandler)
	if !ok {
		return
	}
	if discard {
		w.logger.Debug("input batch discarded", logging.Int("events", len(events)))
		return
	}
	for _, e := range events {
		handler.HandleEvent(e)
	}
}

// Draw renders the active simulation into dc. Call it only from the UI
// goroutine while presenting a frame.
func (w *Worker) Draw(dc *gg.Context) {
	if w.active == nil {
		dc.ClearWithColor(gg.RGB(0, 0, 0))
		return
	}
	w.active.Draw(dc)
}

// pace sleeps out the rest of the frame budget. It reports false when quit
// interrupted the sleep.
func (w *Worker) pace(elapsed time.Duration) bool {
	d := frameDelay(w.fps, elapsed)
	if d == 0 {
		return !w.sync.Quitting()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.sync.Done():
		return false
	}
}

func (w *Worker) publishStatus() {
	st := Status{Running: w.running, Paused: w.paused, Frames: w.frameIndex}
	if w.active != nil {
		st.Simulation = w.active.Name()
	}
	w.statusMu.Lock()
	w.status = st
	w.statusMu.Unlock()
}

func frameDuration(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

// frameDelay is the sleep that keeps the loop at fps given the time already
// spent on the frame. It is never negative.
func frameDelay(fps int, elapsed time.Duration) time.Duration {
	return max(0, frameDuration(fps)-elapsed)
}
