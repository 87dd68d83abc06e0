package shared

import (
	"sync"
	"sync/atomic"
)

// FrameTicket describes the frame handed from the worker to the UI.
type FrameTicket struct {
	// Seq increases by one for every frame the worker flags ready.
	Seq uint64
	// Encode is set when the worker marked the frame for capture.
	Encode bool
}

// Sync is the rendezvous shared by the UI goroutine, the simulation worker and
// any capture session. It must not be copied after first use.
//
// Frame ownership alternates between the worker and the UI: the worker owns the
// frame until FlagReadyToDraw, the UI owns it until its ConsumeFrame callback
// returns. The shadow and live mutexes guard the two copies of the bound
// simulation state and are never held together by a single operation.
type Sync struct {
	shadowMu sync.Mutex
	liveMu   sync.Mutex

	quitting      atomic.Bool
	workerStarted atomic.Bool

	handoffMu   sync.Mutex
	handoffCond *sync.Cond
	readyToDraw bool
	consumed    bool
	presenting  bool
	nudged      bool
	seq         uint64
	encode      bool

	updateMu     sync.Mutex
	updateCond   *sync.Cond
	updatingLive bool

	hooksMu  sync.Mutex
	hooks    []func()
	quitOnce sync.Once
	done     chan struct{}
}

// New returns a Sync in the WORKER_OWNS state.
func New() *Sync {
	s := &Sync{
		consumed: true,
		done:     make(chan struct{}),
	}
	s.handoffCond = sync.NewCond(&s.handoffMu)
	s.updateCond = sync.NewCond(&s.updateMu)
	return s
}

// LockShadow acquires the shadow-buffer mutex.
func (s *Sync) LockShadow() { s.shadowMu.Lock() }

// UnlockShadow releases the shadow-buffer mutex.
func (s *Sync) UnlockShadow() { s.shadowMu.Unlock() }

// LockLive acquires the live-buffer mutex.
func (s *Sync) LockLive() { s.liveMu.Lock() }

// UnlockLive releases the live-buffer mutex.
func (s *Sync) UnlockLive() { s.liveMu.Unlock() }

// Quitting reports whether Quit has been called.
func (s *Sync) Quitting() bool { return s.quitting.Load() }

// Done is closed once Quit has been called.
func (s *Sync) Done() <-chan struct{} { return s.done }

// SetWorkerStarted records whether the worker loop is running.
func (s *Sync) SetWorkerStarted(started bool) { s.workerStarted.Store(started) }

// WorkerStarted reports whether the worker loop is running.
func (s *Sync) WorkerStarted() bool { return s.workerStarted.Load() }

// ReadyToDraw reports whether a frame is waiting for the UI.
func (s *Sync) ReadyToDraw() bool {
	s.handoffMu.Lock()
	defer s.handoffMu.Unlock()
	return s.readyToDraw
}

// WaitUntilFrameConsumed blocks the worker until the UI has finished
// presenting the previous frame. It returns false when quitting.
func (s *Sync) WaitUntilFrameConsumed() bool {
	s.handoffMu.Lock()
	defer s.handoffMu.Unlock()
	for !s.consumed && !s.quitting.Load() {
		s.handoffCond.Wait()
	}
	return !s.quitting.Load()
}

// FlagReadyToDraw hands the current frame to the UI and wakes it. The encode
// mark travels with the frame and is reported by the FrameTicket.
func (s *Sync) FlagReadyToDraw(encode bool) uint64 {
	s.handoffMu.Lock()
	defer s.handoffMu.Unlock()
	s.seq++
	s.readyToDraw = true
	s.consumed = false
	s.encode = encode
	s.handoffCond.Broadcast()
	return s.seq
}

// ConsumeFrame waits for a ready frame and runs present with it. present runs
// without the handoff lock held, so it may call Nudge or Quit. The worker
// stays parked in WaitUntilFrameConsumed because ownership returns to it only
// after present returns. ConsumeFrame reports false without calling present
// when quitting or when Nudge interrupted the wait.
func (s *Sync) ConsumeFrame(present func(FrameTicket)) bool {
	s.handoffMu.Lock()
	for !s.readyToDraw && !s.nudged && !s.quitting.Load() {
		s.handoffCond.Wait()
	}
	s.nudged = false
	if !s.readyToDraw || s.quitting.Load() {
		s.handoffMu.Unlock()
		return false
	}
	ticket := FrameTicket{Seq: s.seq, Encode: s.encode}
	s.readyToDraw = false
	s.presenting = true
	s.handoffMu.Unlock()

	if present != nil {
		present(ticket)
	}

	s.handoffMu.Lock()
	s.consumed = true
	s.presenting = false
	s.handoffCond.Broadcast()
	s.handoffMu.Unlock()
	return true
}

// WaitUntilPresented blocks while the UI is inside a ConsumeFrame present
// callback. Unlike WaitUntilFrameConsumed it does not return early on quit, so
// the worker can use it before tearing down state that present draws from.
func (s *Sync) WaitUntilPresented() {
	s.handoffMu.Lock()
	defer s.handoffMu.Unlock()
	for s.presenting {
		s.handoffCond.Wait()
	}
}

// Nudge wakes a UI goroutine blocked in ConsumeFrame without handing it a
// frame, so it can service other work such as the dispatch queue.
func (s *Sync) Nudge() {
	s.handoffMu.Lock()
	s.nudged = true
	s.handoffCond.Broadcast()
	s.handoffMu.Unlock()
}

// BeginLiveUpdate marks the live buffer as being written by a pull.
func (s *Sync) BeginLiveUpdate() {
	s.updateMu.Lock()
	s.updatingLive = true
	s.updateMu.Unlock()
}

// EndLiveUpdate clears the live-update flag and wakes waiters.
func (s *Sync) EndLiveUpdate() {
	s.updateMu.Lock()
	s.updatingLive = false
	s.updateCond.Broadcast()
	s.updateMu.Unlock()
}

// UpdatingLiveBuffer reports whether a pull is copying into the live buffer.
func (s *Sync) UpdatingLiveBuffer() bool {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	return s.updatingLive
}

// WaitUntilLiveBufferUpdated blocks while a pull is in progress. It returns
// false when quitting.
func (s *Sync) WaitUntilLiveBufferUpdated() bool {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	for s.updatingLive && !s.quitting.Load() {
		s.updateCond.Wait()
	}
	return !s.quitting.Load()
}

// OnQuit registers fn to run when Quit is called. If Quit already ran, fn runs
// immediately on the calling goroutine.
func (s *Sync) OnQuit(fn func()) {
	if fn == nil {
		return
	}
	s.hooksMu.Lock()
	if s.quitting.Load() {
		s.hooksMu.Unlock()
		fn()
		return
	}
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

// Quit sets the quitting flag and wakes every waiter. Each broadcast happens
// under the waiter's own mutex, so a goroutine that checked the flag before it
// was set is already parked and receives the wakeup. Safe to call repeatedly.
func (s *Sync) Quit() {
	s.quitOnce.Do(func() {
		s.hooksMu.Lock()
		s.quitting.Store(true)
		hooks := s.hooks
		s.hooks = nil
		s.hooksMu.Unlock()

		close(s.done)

		s.handoffMu.Lock()
		s.handoffCond.Broadcast()
		s.handoffMu.Unlock()

		s.updateMu.Lock()
		s.updateCond.Broadcast()
		s.updateMu.Unlock()

		for _, hook := range hooks {
			hook()
		}
	})
}
