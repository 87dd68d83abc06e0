package capture

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"simloop/internal/logging"
	"simloop/internal/preprocess"
)

// State is the lifecycle position of the capture session.
type State int32

const (
	StateNotCapturing State = iota
	StateStarting
	StateRecording
	StateSnapshotting
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateNotCapturing:
		return "not_capturing"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateSnapshotting:
		return "snapshotting"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Preprocessor prepares raw canvases for the encoder.
type Preprocessor interface {
	Process(src *image.RGBA, opts preprocess.Options) (*image.RGBA, error)
}

// PostProcessHook sees each frame after preprocessing and before it is handed
// to the encoder. It runs on the producer goroutine.
type PostProcessHook func(*Frame)

// Completion reports the outcome of a finished session.
type Completion struct {
	SessionID string
	Format    Format
	// Path is set for file-backed output.
	Path string
	// InMemory is set when the encoded bytes must be fetched with TakeEncoded.
	InMemory bool
	Frames   int
	Dropped  uint64
	// Err is set when the session ended because of an encoder failure.
	Err      error
	Started  time.Time
	Finished time.Time
}

// Stats are cumulative counters across sessions.
type Stats struct {
	Submitted uint64
	Encoded   uint64
	Dropped   uint64
	Failed    uint64
}

type session struct {
	id        string
	cfg       Config
	backend   Backend
	logger    *slog.Logger
	started   time.Time
	done      chan struct{}
	submitted atomic.Int64
	dropped   atomic.Uint64
}

// Manager owns at most one capture session and its encoder goroutine.
//
// Each concern has its own lock: readyMu guards the encoder busy flag,
// workMu the work-available flag, pendingMu the single pending frame, and
// compMu the completion report. When readyMu and pendingMu are both needed,
// readyMu is taken first.
type Manager struct {
	logger   *slog.Logger
	registry *Registry
	pre      Preprocessor
	now      func() time.Time

	sessMu sync.Mutex
	active atomic.Pointer[session]

	state             atomic.Int32
	captureEnabled    atomic.Bool
	finalizeRequested atomic.Bool
	quitting          atomic.Bool
	seq               atomic.Uint64

	submitted atomic.Uint64
	encoded   atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	readyMu   sync.Mutex
	readyCond *sync.Cond
	busy      bool

	workMu        sync.Mutex
	workCond      *sync.Cond
	workAvailable bool

	pendingMu sync.Mutex
	pending   *Frame

	compMu     sync.Mutex
	completion *Completion
	encodedOut []byte
}

// NewManager builds a manager that selects backends from registry. A nil
// preprocessor defaults to the CPU implementation.
func NewManager(registry *Registry, pre Preprocessor, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if pre == nil {
		pre = preprocess.New()
	}
	m := &Manager{
		logger:   logging.NewComponentLogger(logger, "capture"),
		registry: registry,
		pre:      pre,
		now:      time.Now,
	}
	m.readyCond = sync.NewCond(&m.readyMu)
	m.workCond = sync.NewCond(&m.workMu)
	m.captureEnabled.Store(true)
	return m
}

// StartCapture validates cfg, starts the backend selected by cfg.Format, and
// spawns the encoder goroutine. Nothing is spawned when an error is returned.
func (m *Manager) StartCapture(cfg Config) error {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	if m.quitting.Load() {
		return ErrShuttingDown
	}
	if m.State() != StateNotCapturing {
		return ErrSessionActive
	}
	// A session that finalized itself still needs joining.
	if old := m.active.Load(); old != nil {
		<-old.done
		m.active.Store(nil)
	}

	normalized, err := cfg.normalize()
	if err != nil {
		return err
	}
	factory, ok := m.registry.Lookup(normalized.Format)
	if !ok {
		return fmt.Errorf("%w: %s has no registered backend", ErrUnknownFormat, normalized.Format)
	}

	m.state.Store(int32(StateStarting))
	backend := factory()
	if err := backend.Start(normalized); err != nil {
		m.state.Store(int32(StateNotCapturing))
		return fmt.Errorf("start %s backend: %w", normalized.Format, err)
	}

	s := &session{
		id:      uuid.NewString(),
		cfg:     normalized,
		backend: backend,
		started: m.now(),
		done:    make(chan struct{}),
	}
	s.logger = logging.WithSession(m.logger, s.id)

	m.finalizeRequested.Store(false)
	m.pendingMu.Lock()
	m.pending = nil
	m.pendingMu.Unlock()
	m.workMu.Lock()
	m.workAvailable = false
	m.workMu.Unlock()
	m.readyMu.Lock()
	m.busy = false
	m.readyMu.Unlock()

	m.active.Store(s)
	if normalized.Format.Kind() == KindSnapshot {
		m.state.Store(int32(StateSnapshotting))
	} else {
		m.state.Store(int32(StateRecording))
	}

	go m.runEncoder(s)

	srcW, srcH := normalized.SourceSize()
	s.logger.Info("capture started",
		logging.String(logging.FieldEventType, "capture_started"),
		logging.String(logging.FieldFormat, string(normalized.Format)),
		logging.Int("width", normalized.Width),
		logging.Int("height", normalized.Height),
		logging.Int("source_width", srcW),
		logging.Int("source_height", srcH),
		logging.Int("frame_limit", normalized.FrameLimit()),
		logging.Float64("bitrate_mbps", normalized.BitrateMbps),
	)
	return nil
}

// EncodeFrame preprocesses raw, runs hook, and moves the result into the
// pending slot, replacing any frame the encoder has not taken yet. It reports
// false without side effects when no session accepts frames.
func (m *Manager) EncodeFrame(raw *image.RGBA, hook PostProcessHook) bool {
	if !m.captureEnabled.Load() {
		return false
	}
	s := m.active.Load()
	if s == nil || !m.accepting() {
		return false
	}
	if limit := s.cfg.FrameLimit(); limit > 0 && s.submitted.Load() >= int64(limit) {
		return false
	}

	img, err := m.pre.Process(raw, preprocess.Options{
		Width:        s.cfg.Width,
		Height:       s.cfg.Height,
		Sharpen:      s.cfg.Sharpen,
		FlipVertical: s.cfg.FlipVertical,
	})
	if err != nil {
		logging.WarnWithContext(s.logger, "frame preprocessing failed; submitting black frame", "capture_preprocess_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "one captured frame is blank"),
		)
		img = preprocess.Black(s.cfg.Width, s.cfg.Height)
	}

	frame := &Frame{Seq: m.seq.Add(1), Image: img}
	if hook != nil {
		hook(frame)
	}
	s.submitted.Add(1)
	m.submitted.Add(1)

	m.pendingMu.Lock()
	replaced := m.pending
	m.pending = frame
	m.pendingMu.Unlock()
	if replaced != nil {
		s.dropped.Add(1)
		m.dropped.Add(1)
		s.logger.Debug("pending frame replaced before encode",
			logging.Int64(logging.FieldFrame, int64(replaced.Seq)),
		)
	}

	m.readyMu.Lock()
	m.busy = true
	m.readyMu.Unlock()

	m.workMu.Lock()
	m.workAvailable = true
	m.workCond.Signal()
	m.workMu.Unlock()
	return true
}

// WaitUntilReadyForNewFrame blocks while the encoder is busy. It returns true
// when the encoder is idle and the session still accepts frames, and false
// when the session ended or the manager is shutting down.
func (m *Manager) WaitUntilReadyForNewFrame() bool {
	m.readyMu.Lock()
	defer m.readyMu.Unlock()
	for m.busy && m.IsCapturing() && !m.quitting.Load() {
		m.readyCond.Wait()
	}
	return !m.busy && m.accepting() && !m.quitting.Load()
}

// FinalizeCapture asks the encoder to flush, waits for it to exit, and resets
// the manager. It reports false when there was no session.
func (m *Manager) FinalizeCapture() bool {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	s := m.active.Load()
	if s == nil {
		return false
	}
	m.state.CompareAndSwap(int32(StateRecording), int32(StateFinalizing))
	m.state.CompareAndSwap(int32(StateSnapshotting), int32(StateFinalizing))
	m.finalizeRequested.Store(true)
	m.workMu.Lock()
	m.workCond.Broadcast()
	m.workMu.Unlock()

	<-s.done

	m.active.Store(nil)
	m.finalizeRequested.Store(false)
	return true
}

// Close finalizes any running session so no partially written output is left.
func (m *Manager) Close() {
	m.FinalizeCapture()
}

// Interrupt makes every blocked producer and encoder wait return. A running
// session flushes and completes; no new session can start. Meant to be
// registered as a quit hook.
func (m *Manager) Interrupt() {
	m.quitting.Store(true)
	m.workMu.Lock()
	m.workCond.Broadcast()
	m.workMu.Unlock()
	m.readyMu.Lock()
	m.readyCond.Broadcast()
	m.readyMu.Unlock()
}

// HandleCaptureComplete returns the report of the last finished session once.
func (m *Manager) HandleCaptureComplete() (Completion, bool) {
	m.compMu.Lock()
	defer m.compMu.Unlock()
	if m.completion == nil {
		return Completion{}, false
	}
	c := *m.completion
	m.completion = nil
	return c, true
}

// TakeEncoded transfers ownership of memory-backed output to the caller. It
// returns the bytes exactly once per completed session.
func (m *Manager) TakeEncoded() ([]byte, bool) {
	m.compMu.Lock()
	defer m.compMu.Unlock()
	data := m.encodedOut
	m.encodedOut = nil
	return data, data != nil
}

// State returns the current session state.
func (m *Manager) State() State { return State(m.state.Load()) }

// IsRecording reports whether a streaming session is accepting frames.
func (m *Manager) IsRecording() bool { return m.State() == StateRecording }

// IsSnapshotting reports whether a snapshot session is accepting its frame.
func (m *Manager) IsSnapshotting() bool { return m.State() == StateSnapshotting }

// IsCapturing reports whether any session is between start and completion.
func (m *Manager) IsCapturing() bool { return m.State() != StateNotCapturing }

// IsBusy reports whether the encoder has work in flight.
func (m *Manager) IsBusy() bool {
	m.readyMu.Lock()
	defer m.readyMu.Unlock()
	return m.busy
}

// IsCaptureEnabled reports whether EncodeFrame accepts frames.
func (m *Manager) IsCaptureEnabled() bool { return m.captureEnabled.Load() }

// SetCaptureEnabled gates EncodeFrame without touching the session.
func (m *Manager) SetCaptureEnabled(enabled bool) { m.captureEnabled.Store(enabled) }

// Config returns the frozen configuration of the running session.
func (m *Manager) Config() (Config, bool) {
	s := m.active.Load()
	if s == nil {
		return Config{}, false
	}
	return s.cfg, true
}

// SessionID returns the identifier of the running session.
func (m *Manager) SessionID() string {
	if s := m.active.Load(); s != nil {
		return s.id
	}
	return ""
}

// Stats returns cumulative frame counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Submitted: m.submitted.Load(),
		Encoded:   m.encoded.Load(),
		Dropped:   m.dropped.Load(),
		Failed:    m.failed.Load(),
	}
}

// Formats lists the formats this manager can start.
func (m *Manager) Formats() []Format { return m.registry.Formats() }

func (m *Manager) accepting() bool {
	st := m.State()
	return (st == StateRecording || st == StateSnapshotting) && !m.finalizeRequested.Load()
}
