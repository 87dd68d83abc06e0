package worker

import (
	"fmt"

	"simloop/internal/logging"
)

// CommandKind enumerates control commands.
type CommandKind int

const (
	CommandSelect CommandKind = iota
	CommandStart
	CommandStop
	CommandPause
)

func (k CommandKind) String() string {
	switch k {
	case CommandSelect:
		return "select"
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	case CommandPause:
		return "pause"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is a queued control request.
type Command struct {
	Kind CommandKind
	// Name is the simulation for CommandSelect.
	Name string
}

// NotificationKind enumerates worker notifications.
type NotificationKind int

const (
	NotifySelected NotificationKind = iota
	NotifyStarted
	NotifyResumed
	NotifyPaused
	NotifyStopped
	NotifyFailed
)

func (k NotificationKind) String() string {
	switch k {
	case NotifySelected:
		return "selected"
	case NotifyStarted:
		return "started"
	case NotifyResumed:
		return "resumed"
	case NotifyPaused:
		return "paused"
	case NotifyStopped:
		return "stopped"
	case NotifyFailed:
		return "failed"
	default:
		return fmt.Sprintf("notification(%d)", int(k))
	}
}

// Notification reports a state change to the UI goroutine.
type Notification struct {
	Kind       NotificationKind
	Simulation string
	Err        error
}

// Select queues a switch to the named simulation.
func (w *Worker) Select(name string) { w.enqueue(Command{Kind: CommandSelect, Name: name}) }

// Start queues starting the selected simulation, or resuming it when paused.
func (w *Worker) Start() { w.enqueue(Command{Kind: CommandStart}) }

// Stop queues stopping the selected simulation.
func (w *Worker) Stop() { w.enqueue(Command{Kind: CommandStop}) }

// Pause queues pausing the running simulation.
func (w *Worker) Pause() { w.enqueue(Command{Kind: CommandPause}) }

func (w *Worker) enqueue(cmd Command) {
	w.cmdMu.Lock()
	w.commands = append(w.commands, cmd)
	w.cmdMu.Unlock()
}

// processCommands drains the command queue and applies every command with the
// shadow lock held, so a switch never lands in the middle of a frame.
func (w *Worker) processCommands() {
	w.cmdMu.Lock()
	cmds := w.commands
	w.commands = nil
	w.cmdMu.Unlock()
	if len(cmds) == 0 {
		return
	}

	w.sync.LockShadow()
	var notes []Notification
	for _, cmd := range cmds {
		if n, ok := w.apply(cmd); ok {
			notes = append(notes, n)
		}
	}
	w.sync.UnlockShadow()
	w.publishStatus()

	for _, n := range notes {
		w.post(n)
	}
}

func (w *Worker) apply(cmd Command) (Notification, bool) {
	switch cmd.Kind {
	case CommandSelect:
		sim, err := w.factory(cmd.Name)
		if err != nil {
			logging.WarnWithContext(w.logger, "simulation select failed", "simulation_select_failed",
				logging.String(logging.FieldSimulation, cmd.Name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "previous simulation stays active"),
				logging.String(logging.FieldErrorHint, "run 'simloop sims' to list available simulations"),
			)
			return Notification{Kind: NotifyFailed, Simulation: cmd.Name, Err: err}, true
		}
		w.teardown()
		w.buf.Reset()
		w.active = sim
		w.frameIndex = 0
		sim.Prepare(w.buf)
		w.logger.Info("simulation selected", logging.String(logging.FieldSimulation, sim.Name()))
		return Notification{Kind: NotifySelected, Simulation: sim.Name()}, true

	case CommandStart:
		if w.active == nil {
			return Notification{}, false
		}
		if w.running && w.paused {
			w.paused = false
			return Notification{Kind: NotifyResumed, Simulation: w.active.Name()}, true
		}
		if w.running {
			w.active.Stop()
		}
		w.active.Start()
		w.running, w.paused = true, false
		w.frameIndex = 0
		w.buf.RefreshShadow()
		w.logger.Info("simulation started", logging.String(logging.FieldSimulation, w.active.Name()))
		return Notification{Kind: NotifyStarted, Simulation: w.active.Name()}, true

	case CommandStop:
		if w.active == nil || !w.running {
			return Notification{}, false
		}
		w.active.Stop()
		w.running, w.paused = false, false
		w.logger.Info("simulation stopped", logging.String(logging.FieldSimulation, w.active.Name()))
		return Notification{Kind: NotifyStopped, Simulation: w.active.Name()}, true

	case CommandPause:
		if w.active == nil || !w.running || w.paused {
			return Notification{}, false
		}
		w.paused = true
		return Notification{Kind: NotifyPaused, Simulation: w.active.Name()}, true
	}
	return Notification{}, false
}

// teardown stops the active simulation if it is running.
func (w *Worker) teardown() {
	if w.active != nil && w.running {
		w.active.Stop()
	}
	w.running, w.paused = false, false
}

func (w *Worker) post(n Notification) {
	if w.notify == nil {
		return
	}
	if w.dispatch != nil {
		notify := w.notify
		w.dispatch.Post(func() { notify(n) })
		return
	}
	w.notify(n)
}
