// Package capture turns presented frames into video files and still images.
//
// A Manager runs at most one session. The producer (the UI goroutine) hands
// frames over through a single pending slot and waits for the encoder to go
// idle before the next frame, so output advances one frame per simulation
// step and no backlog builds up. One encoder goroutine per session drains the
// slot into a Backend chosen from a Registry by format:
//
//   - h264, h265: ffmpeg subprocess writing a file
//   - gif: animated image in memory
//   - png, jpeg, tiff, bmp: single snapshot in memory
//
// Finished sessions are reported once through HandleCaptureComplete; memory
// output is claimed once with TakeEncoded.
package capture
