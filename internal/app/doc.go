// Package app wires the simulation worker, the capture manager and the
// session history into one run.
//
// Run owns the UI goroutine: it drains the dispatch queue, presents every
// frame the worker hands over into a gg canvas, feeds capture-marked frames to
// the capture manager, and records finished sessions. The worker runs on its
// own goroutine. A flock on the capture directory keeps two runs from
// numbering clips over each other.
package app
