// Package sessions keeps the capture history in SQLite.
//
// Every capture session gets a row when it starts and is completed with its
// outcome when the encoder reports back. Rows left in the recording state by
// a crash are marked abandoned on the next open.
package sessions
