// Package buffer implements the live/shadow double buffer shared by the
// simulation worker and the UI.
//
// The worker steps against live values; the UI edits shadow copies. Each frame
// the worker pulls pending UI edits into the live copy before stepping and
// pushes its own changes back for every variable the UI left alone, so a UI
// edit to a field always beats a concurrent worker update of that field.
// Change detection uses Hash when a type provides it, Equal when it provides
// that, and bitwise equality otherwise (NaN settles, -0 differs from 0, and
// interfaces holding slices are compared by content).
package buffer
