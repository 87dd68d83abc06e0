package buffer

import (
	"fmt"
	"sort"
	"sync"

	"simloop/internal/shared"
)

// ErrUnknownVar is returned by SetString for names that are not bound.
var ErrUnknownVar = fmt.Errorf("unknown variable")

// binding is the type-erased view of a Var used by Buffer.
type binding interface {
	varName() string
	markLive()
	markShadow()
	liveChanged() bool
	shadowChanged() bool
	pending() bool
	pushLive()
	refresh()
	pushUnchanged()
	stage() bool
	apply()
	commit()
	setString(string) error
	view() any
}

// Buffer synchronizes bound variables between the worker-owned live copy and
// the UI-owned shadow copy.
//
// Goroutine contract: MarkLive, LiveChanged, PushLiveToShadow,
// PushUnchangedShadowVars, PullShadowToLive and RunScheduled are called by the
// worker. Edit, SetString, View and Schedule are called by the UI or any other
// goroutine. Bind and Reset require the shadow lock to be held, which is the
// case inside worker command processing.
type Buffer struct {
	sync  *shared.Sync
	vars  []binding
	index map[string]binding

	tasksMu sync.Mutex
	tasks   []func()
}

// New returns an empty Buffer guarded by the locks in s.
func New(s *shared.Sync) *Buffer {
	return &Buffer{sync: s, index: make(map[string]binding)}
}

// Sync returns the rendezvous whose locks guard this buffer.
func (b *Buffer) Sync() *shared.Sync { return b.sync }

func (b *Buffer) add(v binding) {
	if old, ok := b.index[v.varName()]; ok {
		for i, existing := range b.vars {
			if existing == old {
				b.vars = append(b.vars[:i], b.vars[i+1:]...)
				break
			}
		}
	}
	b.vars = append(b.vars, v)
	b.index[v.varName()] = v
}

// Reset drops every binding. The shadow lock must be held.
func (b *Buffer) Reset() {
	b.vars = nil
	b.index = make(map[string]binding)
}

// Names lists bound variable names in sorted order.
func (b *Buffer) Names() []string {
	b.sync.LockShadow()
	defer b.sync.UnlockShadow()
	names := make([]string, 0, len(b.vars))
	for _, v := range b.vars {
		names = append(names, v.varName())
	}
	sort.Strings(names)
	return names
}

// MarkLive snapshots every live value as the baseline for LiveChanged.
func (b *Buffer) MarkLive() {
	b.sync.LockShadow()
	vars := append([]binding(nil), b.vars...)
	b.sync.UnlockShadow()
	for _, v := range vars {
		v.markLive()
	}
}

// LiveChanged reports whether any live value differs from its baseline.
func (b *Buffer) LiveChanged() bool {
	b.sync.LockShadow()
	vars := append([]binding(nil), b.vars...)
	b.sync.UnlockShadow()
	for _, v := range vars {
		if v.liveChanged() {
			return true
		}
	}
	return false
}

// MarkShadow snapshots every shadow value that has no pending edit.
func (b *Buffer) MarkShadow() {
	b.sync.LockShadow()
	defer b.sync.UnlockShadow()
	for _, v := range b.vars {
		v.markShadow()
	}
}

// HasPendingEdits reports whether the UI edited shadow state that has not yet
// been pulled into the live copy.
func (b *Buffer) HasPendingEdits() bool {
	b.sync.LockShadow()
	defer b.sync.UnlockShadow()
	for _, v := range b.vars {
		if v.pending() {
			return true
		}
	}
	return false
}

// PushLiveToShadow copies live values that changed since their baseline into
// the shadow copy. Variables with pending UI edits keep the edit.
func (b *Buffer) PushLiveToShadow() {
	b.sync.LockShadow()
	defer b.sync.UnlockShadow()
	for _, v := range b.vars {
		v.pushLive()
	}
}

// RefreshShadow overwrites every shadow value with its live value and drops
// pending edits. The shadow lock must be held; the worker uses it after
// starting a simulation.
func (b *Buffer) RefreshShadow() {
	for _, v := range b.vars {
		v.refresh()
	}
}

// PushUnchangedShadowVars copies live values into the shadow copy only for
// variables the UI has not modified since the last baseline.
func (b *Buffer) PushUnchangedShadowVars() {
	b.sync.LockShadow()
	defer b.sync.UnlockShadow()
	for _, v := range b.vars {
		v.pushUnchanged()
	}
}

// PullShadowToLive copies pending UI edits into the live copy. Values are
// staged under the shadow lock, which is released before the live lock is
// taken, so the two locks are never held together.
func (b *Buffer) PullShadowToLive() int {
	b.sync.LockShadow()
	staged := make([]binding, 0, len(b.vars))
	for _, v := range b.vars {
		if v.stage() {
			staged = append(staged, v)
		}
	}
	b.sync.UnlockShadow()

	if len(staged) == 0 {
		return 0
	}

	b.sync.BeginLiveUpdate()
	b.sync.LockLive()
	for _, v := range staged {
		v.apply()
	}
	b.sync.UnlockLive()
	b.sync.EndLiveUpdate()
	return len(staged)
}

// Edit runs fn with the shadow lock held and then records which variables fn
// changed. Var.Shadow pointers may only be dereferenced inside fn.
func (b *Buffer) Edit(fn func()) {
	b.sync.LockShadow()
	defer b.sync.UnlockShadow()
	fn()
	for _, v := range b.vars {
		v.commit()
	}
}

// SetString parses value into the shadow copy of the named variable.
func (b *Buffer) SetString(name, value string) error {
	b.sync.LockShadow()
	defer b.sync.UnlockShadow()
	v, ok := b.index[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownVar, name)
	}
	if err := v.setString(value); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	v.commit()
	return nil
}

// View returns the shadow value of the named variable for display.
func (b *Buffer) View(name string) (any, bool) {
	b.sync.LockShadow()
	defer b.sync.UnlockShadow()
	v, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return v.view(), true
}

// Schedule queues fn to run on the worker after the next pull.
func (b *Buffer) Schedule(fn func()) {
	if fn == nil {
		return
	}
	b.tasksMu.Lock()
	b.tasks = append(b.tasks, fn)
	b.tasksMu.Unlock()
}

// RunScheduled runs and clears the queued tasks. It returns how many ran.
func (b *Buffer) RunScheduled() int {
	b.tasksMu.Lock()
	tasks := b.tasks
	b.tasks = nil
	b.tasksMu.Unlock()
	for _, task := range tasks {
		task()
	}
	return len(tasks)
}
