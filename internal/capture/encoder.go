package capture

import (
	"errors"

	"simloop/internal/logging"
)

// runEncoder is the consumer side of the pending slot. It exits after a
// finalize request, a quit, an unrecoverable backend error, or reaching the
// session frame limit, and always finalizes the backend on the way out.
func (m *Manager) runEncoder(s *session) {
	defer close(s.done)

	var (
		encoded  int
		failed   int
		fatalErr error
	)
	limit := s.cfg.FrameLimit()

	for {
		frame, stop := m.nextFrame()
		if frame != nil {
			err := s.backend.EncodeFrame(frame)
			switch {
			case err == nil:
				encoded++
				m.encoded.Add(1)
			case errors.Is(err, ErrUnrecoverable):
				fatalErr = err
				stop = true
			default:
				failed++
				m.failed.Add(1)
				logging.WarnWithContext(s.logger, "frame encode failed; continuing session", "capture_frame_failed",
					logging.Error(err),
					logging.Int64(logging.FieldFrame, int64(frame.Seq)),
					logging.String(logging.FieldImpact, "one frame missing from output"),
				)
			}
			if limit > 0 && encoded+failed >= limit {
				stop = true
			}
		}
		if stop {
			m.state.Store(int32(StateFinalizing))
		}
		m.markIdle()
		if stop {
			break
		}
	}

	out, err := s.backend.Finalize()
	m.complete(s, out, encoded, errors.Join(fatalErr, err))
}

// nextFrame waits for work and takes the pending frame. A wake with an empty
// slot waits again unless the session is stopping.
func (m *Manager) nextFrame() (*Frame, bool) {
	for {
		m.workMu.Lock()
		for !m.workAvailable && !m.finalizeRequested.Load() && !m.quitting.Load() {
			m.workCond.Wait()
		}
		m.workAvailable = false
		stop := m.finalizeRequested.Load() || m.quitting.Load()
		m.workMu.Unlock()

		m.pendingMu.Lock()
		frame := m.pending
		m.pending = nil
		m.pendingMu.Unlock()

		if frame != nil || stop {
			return frame, stop
		}
	}
}

// markIdle clears the busy flag unless a new frame arrived while encoding.
func (m *Manager) markIdle() {
	m.readyMu.Lock()
	defer m.readyMu.Unlock()
	m.pendingMu.Lock()
	empty := m.pending == nil
	m.pendingMu.Unlock()
	if empty {
		m.busy = false
		m.readyCond.Broadcast()
	}
}

func (m *Manager) complete(s *session, out Output, encoded int, err error) {
	if out.Frames == 0 {
		out.Frames = encoded
	}
	c := Completion{
		SessionID: s.id,
		Format:    s.cfg.Format,
		Path:      out.Path,
		InMemory:  out.Data != nil,
		Frames:    out.Frames,
		Dropped:   s.dropped.Load(),
		Err:       err,
		Started:   s.started,
		Finished:  m.now(),
	}

	m.compMu.Lock()
	m.completion = &c
	if out.Data != nil {
		m.encodedOut = out.Data
	}
	m.compMu.Unlock()

	m.pendingMu.Lock()
	m.pending = nil
	m.pendingMu.Unlock()

	m.state.Store(int32(StateNotCapturing))
	m.readyMu.Lock()
	m.busy = false
	m.readyCond.Broadcast()
	m.readyMu.Unlock()

	if err != nil {
		logging.ErrorWithContext(s.logger, "capture finished with error", "capture_failed",
			logging.Error(err),
			logging.String(logging.FieldFormat, string(c.Format)),
			logging.Int("frames", c.Frames),
			logging.String(logging.FieldErrorHint, "frames encoded before the failure were kept"),
		)
		return
	}
	s.logger.Info("capture finished",
		logging.String(logging.FieldEventType, "capture_complete"),
		logging.String(logging.FieldFormat, string(c.Format)),
		logging.String(logging.FieldOutput, c.Path),
		logging.Int("frames", c.Frames),
		logging.Bool("in_memory", c.InMemory),
		logging.Duration("elapsed", c.Finished.Sub(c.Started)),
	)
}
