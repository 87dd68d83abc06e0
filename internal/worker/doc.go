// Package worker runs the simulation loop.
//
// Each iteration drains queued commands under the shadow lock, waits for the
// UI to finish presenting the previous frame, polls input, pulls UI edits into
// the live copy, steps the simulation, pushes worker changes back to the
// shadow copy, waits for the capture encoder when the frame is being
// recorded, hands the frame to the UI and paces itself to the configured
// frame rate. Quitting the shared Sync interrupts every wait.
package worker
