// Package shared provides the rendezvous between the UI goroutine and the
// simulation worker: strict frame handoff, the shadow and live buffer locks,
// the live-update flag, and a quit signal that wakes every waiter.
package shared
