package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"

	"simloop/internal/buffer"
	"simloop/internal/capture"
	"simloop/internal/config"
	"simloop/internal/deps"
	"simloop/internal/dispatch"
	"simloop/internal/logging"
	"simloop/internal/preprocess"
	"simloop/internal/sessions"
	"simloop/internal/shared"
	"simloop/internal/sim"
	"simloop/internal/transcode"
	"simloop/internal/worker"
)

// ErrLocked is returned when another run holds the capture directory lock.
var ErrLocked = errors.New("another simloop run is using the capture directory")

// ErrAlreadyRun is returned by Run on an App that is running or has finished.
// An App runs once.
var ErrAlreadyRun = errors.New("app already run")

// Options configure a run.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// Store records capture sessions. Nil disables the history.
	Store *sessions.Store
	// Simulations defaults to sim.Default().
	Simulations *sim.Registry
	// Backends defaults to the built-in backends, with ffmpeg resolved from
	// the config.
	Backends *capture.Registry
	// Transcoder archives finished video captures. Nil builds one from the
	// config when transcoding is enabled.
	Transcoder *transcode.Transcoder
	// Params are applied to the simulation's bound variables once it is
	// selected, as if edited from the UI.
	Params map[string]string
	// ExitAfterCapture ends the run once the first capture session completes.
	ExitAfterCapture bool
	// Payload is embedded in PNG snapshots. Empty embeds the simulation state.
	Payload string
}

// CaptureResult describes one finished capture session.
type CaptureResult struct {
	SessionID      string
	Format         capture.Format
	Path           string
	Frames         int
	Dropped        uint64
	Bytes          int64
	TranscodedPath string
	Err            error
}

// Summary reports what a run did.
type Summary struct {
	Simulation string
	Frames     uint64
	Steps      uint64
	Captures   []CaptureResult
}

// App is a single simloop run.
type App struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	sync     *shared.Sync
	buf      *buffer.Buffer
	queue    *dispatch.Queue
	manager  *capture.Manager
	worker   *worker.Worker
	store    *sessions.Store
	archiver *transcode.Transcoder
	lock     *flock.Flock

	// Owned by the UI goroutine.
	ctx            context.Context
	presenter      *presenter
	summary        Summary
	captureStarted bool
	runErr         error

	archiveWG sync.WaitGroup
	archiveMu sync.Mutex
}

// New builds an App. Nothing runs until Run.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	sims := opts.Simulations
	if sims == nil {
		sims = sim.Default()
	}
	backends := opts.Backends
	if backends == nil {
		ffmpeg := ""
		if status := deps.ResolveFFmpeg(cfg.FFmpegBinary()); status.Available {
			ffmpeg = status.Command
		}
		backends = capture.DefaultRegistry(capture.BackendOptions{FFmpegBinary: ffmpeg, Logger: logger})
	}
	archiver := opts.Transcoder
	if archiver == nil && cfg.Transcode.Enabled {
		archiver = transcode.New(nil, cfg.Transcode.OutputDir, logger)
	}

	a := &App{
		cfg:      cfg,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "app"),
		sync:     shared.New(),
		store:    opts.Store,
		archiver: archiver,
		lock:     flock.New(cfg.LockPath()),
	}
	a.buf = buffer.New(a.sync)
	a.queue = dispatch.New(a.sync.Nudge)
	a.manager = capture.NewManager(backends, preprocess.New(), logger)
	a.manager.SetCaptureEnabled(cfg.Capture.Enabled)
	a.sync.OnQuit(a.manager.Interrupt)

	w, err := worker.New(worker.Options{
		Sync:     a.sync,
		Buffer:   a.buf,
		Factory:  sims.New,
		Capture:  a.manager,
		Dispatch: a.queue,
		Notify:   a.handleNotification,
		FPS:      cfg.Worker.FPS,
		Width:    cfg.Worker.Width,
		Height:   cfg.Worker.Height,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	a.worker = w
	a.presenter = newPresenter(w, a.manager)
	a.presenter.resize(cfg.Worker.Width, cfg.Worker.Height)
	return a, nil
}

// Worker exposes the worker for command and event injection.
func (a *App) Worker() *worker.Worker { return a.worker }

// Capture exposes the capture manager.
func (a *App) Capture() *capture.Manager { return a.manager }

// Quit ends the run from any goroutine.
func (a *App) Quit() { a.sync.Quit() }

// Run executes until ctx is cancelled, the frame limit is reached, a capture
// finishes with ExitAfterCapture set, or the simulation fails.
func (a *App) Run(ctx context.Context) (Summary, error) {
	if a.sync.WorkerStarted() || a.sync.Quitting() {
		return Summary{}, ErrAlreadyRun
	}
	if err := a.cfg.EnsureDirectories(); err != nil {
		return Summary{}, fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := a.lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrLocked, a.cfg.Paths.CaptureDir)
	}
	defer func() {
		if err := a.lock.Unlock(); err != nil {
			a.logger.Warn("failed to release capture lock", logging.Error(err))
		}
	}()
	if name := a.cfg.Worker.Simulation; name != "" {
		ctx = logging.WithSimulation(ctx, name)
	}
	a.logger = logging.WithContext(ctx, a.logger)
	a.ctx = ctx

	if name := a.cfg.Worker.Simulation; name != "" {
		a.worker.Select(name)
		if a.cfg.Worker.AutoStart {
			a.worker.Start()
		}
	}

	workerErr := make(chan error, 1)
	go func() {
		err := a.worker.Run(ctx)
		if err != nil {
			logging.ErrorWithContext(a.logger, "simulation worker stopped", "worker_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the simulation parameters"),
			)
		}
		a.sync.Quit()
		workerErr <- err
	}()

	a.logger.Info("run started",
		logging.Int("fps", a.cfg.Worker.FPS),
		logging.Bool("capture", a.cfg.Capture.Enabled),
	)
	a.loop(ctx)

	a.sync.Quit()
	err = <-workerErr
	if a.sync.ReadyToDraw() {
		a.logger.Debug("last frame discarded unpresented")
	}
	a.manager.Close()
	a.queue.Drain()
	a.queue.Close()
	a.collectCompletion(ctx)
	a.archiveWG.Wait()
	a.presenter.close()

	status := a.worker.Status()
	a.summary.Simulation = status.Simulation
	a.summary.Steps = status.Frames
	a.logger.Info("run finished",
		logging.Uint64("frames", a.summary.Frames),
		logging.Int("captures", len(a.summary.Captures)),
	)
	if err == nil {
		err = a.runErr
	}
	a.archiveMu.Lock()
	summary := a.summary
	summary.Captures = append([]CaptureResult(nil), a.summary.Captures...)
	a.archiveMu.Unlock()
	return summary, err
}

// loop is the UI goroutine body.
func (a *App) loop(ctx context.Context) {
	limit := uint64(max(a.cfg.Worker.Frames, 0))
	for !a.sync.Quitting() {
		a.queue.Drain()
		a.collectCompletion(ctx)
		if a.sync.Quitting() {
			return
		}
		if !a.sync.ConsumeFrame(a.presenter.present) {
			continue
		}
		a.summary.Frames++
		if limit > 0 && a.summary.Frames >= limit {
			a.logger.Debug("frame limit reached", logging.Uint64("frames", a.summary.Frames))
			a.sync.Quit()
		}
	}
}

// fail records err as the run result and quits.
func (a *App) fail(err error) {
	if a.runErr == nil {
		a.runErr = err
	}
	a.sync.Quit()
}
