package app

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"simloop/internal/capture"
	"simloop/internal/fileutil"
	"simloop/internal/logging"
	"simloop/internal/sessions"
	"simloop/internal/transcode"
	"simloop/internal/worker"
)

// handleNotification runs on the UI goroutine via the dispatch queue.
func (a *App) handleNotification(n worker.Notification) {
	logger := a.logger
	if n.Simulation != a.cfg.Worker.Simulation {
		logger = logger.With(logging.String(logging.FieldSimulation, n.Simulation))
	}
	switch n.Kind {
	case worker.NotifySelected:
		for name, value := range a.opts.Params {
			if err := a.buf.SetString(name, value); err != nil {
				a.fail(fmt.Errorf("set %s=%q: %w", name, value, err))
				return
			}
			logger.Debug("parameter applied", logging.String("param", name), logging.String("value", value))
		}
	case worker.NotifyStarted:
		if a.cfg.Capture.Enabled && !a.captureStarted && !a.sync.Quitting() {
			a.captureStarted = true
			if err := a.startCapture(n.Simulation); err != nil {
				a.fail(err)
			}
		}
	case worker.NotifyFailed:
		a.fail(fmt.Errorf("select simulation %q: %w", n.Simulation, n.Err))
	default:
		logger.Debug("worker notification", logging.String("kind", n.Kind.String()))
	}
}

// captureConfig builds the session config from the [capture] section.
func (a *App) captureConfig(simulation string) (capture.Config, error) {
	c := a.cfg.Capture
	format, err := capture.ParseFormat(c.Format)
	if err != nil {
		return capture.Config{}, err
	}
	cfg := capture.Config{
		Format:       format,
		Width:        c.Width,
		Height:       c.Height,
		Supersample:  c.Supersample,
		Sharpen:      c.Sharpen,
		Quality:      c.Quality,
		Lossless:     c.Lossless,
		NearLossless: c.NearLossless,
		FPS:          c.FPS,
		FrameCount:   c.FrameCount,
		BitrateMbps:  c.BitrateMbps,
		TenBit:       c.TenBit,
		FlipVertical: c.FlipVertical,
		Payload:      a.opts.Payload,
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = a.cfg.Worker.Width, a.cfg.Worker.Height
	}
	if cfg.FPS == 0 {
		cfg.FPS = a.cfg.Worker.FPS
	}
	if format.Kind() == capture.KindVideo {
		cfg.Path, err = capture.NextClipPath(a.cfg.Paths.CaptureDir, format.Extension())
		if err != nil {
			return capture.Config{}, err
		}
	}
	if format == capture.FormatPNG && cfg.Payload == "" {
		cfg.Payload = a.statePayload(simulation)
	}
	return cfg, nil
}

// statePayload serializes the simulation's bound variables as TOML.
func (a *App) statePayload(simulation string) string {
	// A pull in progress means the shadow values are about to be joined by
	// the live ones; wait so the payload matches the frames that follow.
	if a.sync.UpdatingLiveBuffer() {
		a.logger.Debug("waiting for live buffer update before payload")
	}
	if !a.sync.WaitUntilLiveBufferUpdated() {
		return ""
	}
	params := make(map[string]any)
	for _, name := range a.buf.Names() {
		if v, ok := a.buf.View(name); ok {
			params[name] = v
		}
	}
	data, err := toml.Marshal(map[string]any{
		"simulation": simulation,
		"params":     params,
	})
	if err != nil {
		a.logger.Debug("state payload skipped", logging.Error(err))
		return ""
	}
	return string(data)
}

func (a *App) startCapture(simulation string) error {
	cfg, err := a.captureConfig(simulation)
	if err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := a.manager.StartCapture(cfg); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	a.presenter.resize(cfg.SourceSize())

	id := a.manager.SessionID()
	if a.store != nil {
		frozen, _ := a.manager.Config()
		if err := a.store.Begin(context.WithoutCancel(a.ctx), sessions.Record{
			ID:         id,
			Simulation: simulation,
			Format:     string(cfg.Format),
			OutputPath: cfg.Path,
			Width:      frozen.Width,
			Height:     frozen.Height,
			FPS:        frozen.FPS,
		}); err != nil {
			logging.WarnWithContext(a.logger, "capture session not recorded", "session_record_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "session is missing from 'simloop sessions'"),
			)
		}
	}
	return nil
}

// collectCompletion handles a finished capture session, if any: memory-backed
// output is written to the next clip file, the history row is completed and
// video files are queued for archiving.
func (a *App) collectCompletion(ctx context.Context) {
	c, ok := a.manager.HandleCaptureComplete()
	if !ok {
		return
	}
	a.presenter.resize(a.cfg.Worker.Width, a.cfg.Worker.Height)
	logger := logging.WithSession(a.logger, c.SessionID)

	res := CaptureResult{
		SessionID: c.SessionID,
		Format:    c.Format,
		Path:      c.Path,
		Frames:    c.Frames,
		Dropped:   c.Dropped,
		Err:       c.Err,
	}
	if c.InMemory {
		if data, ok := a.manager.TakeEncoded(); ok {
			path, err := a.persist(c.Format, data)
			if err != nil {
				res.Err = err
			} else {
				res.Path = path
				res.Bytes = int64(len(data))
			}
		}
	} else if c.Path != "" {
		if info, err := os.Stat(c.Path); err == nil {
			res.Bytes = info.Size()
		}
	}

	if a.store != nil {
		if err := a.store.Complete(context.WithoutCancel(ctx), c.SessionID, sessions.Outcome{
			OutputPath: res.Path,
			Frames:     res.Frames,
			Dropped:    res.Dropped,
			Bytes:      res.Bytes,
			Err:        res.Err,
			FinishedAt: c.Finished,
		}); err != nil {
			logger.Warn("capture session outcome not recorded", logging.Error(err))
		}
	}

	a.archiveMu.Lock()
	a.summary.Captures = append(a.summary.Captures, res)
	index := len(a.summary.Captures) - 1
	a.archiveMu.Unlock()

	if res.Err == nil && a.archiver != nil && transcode.Eligible(res.Path) {
		a.archive(ctx, index, res)
	}
	if a.opts.ExitAfterCapture {
		a.sync.Quit()
	}
}

func (a *App) persist(format capture.Format, data []byte) (string, error) {
	path, err := capture.NextClipPath(a.cfg.Paths.CaptureDir, format.Extension())
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	return path, nil
}

// archive transcodes res in the background. Run waits for it before returning.
func (a *App) archive(ctx context.Context, index int, res CaptureResult) {
	a.archiveWG.Add(1)
	go func() {
		defer a.archiveWG.Done()
		out, err := a.archiver.Archive(context.WithoutCancel(ctx), res.Path)
		if err != nil {
			logging.WarnWithContext(a.logger, "archive encode failed", "archive_failed",
				logging.Error(err),
				logging.String(logging.FieldOutput, res.Path),
				logging.String(logging.FieldImpact, "the original capture is kept without an archive copy"),
			)
			return
		}
		a.archiveMu.Lock()
		a.summary.Captures[index].TranscodedPath = out
		a.archiveMu.Unlock()
		if a.store != nil {
			if err := a.store.SetTranscoded(context.WithoutCancel(ctx), res.SessionID, out); err != nil {
				a.logger.Warn("archive path not recorded", logging.Error(err))
			}
		}
	}()
}
