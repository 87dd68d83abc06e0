// Package dispatch is the deferred-task queue drained by the UI goroutine.
//
// Any goroutine may Post work that must run on the UI goroutine. The UI
// goroutine calls Drain between frames. A wake hook lets a poster interrupt the UI while it waits for the
// next frame.
package dispatch
