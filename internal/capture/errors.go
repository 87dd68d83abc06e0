package capture

import "errors"

var (
	// ErrSessionActive is returned by StartCapture while a session is running.
	ErrSessionActive = errors.New("capture session already active")
	// ErrNoSession is reported when an operation needs a running session.
	ErrNoSession = errors.New("no capture session active")
	// ErrUnknownFormat is returned for formats without a registered backend.
	ErrUnknownFormat = errors.New("unknown capture format")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid capture config")
	// ErrUnsupportedResolution is returned when the codec cannot encode the resolution.
	ErrUnsupportedResolution = errors.New("unsupported capture resolution")
	// ErrUnrecoverable marks backend errors after which no further frame can be
	// encoded. The session is finalized and the error reported on completion.
	ErrUnrecoverable = errors.New("unrecoverable encoder failure")
	// ErrShuttingDown is returned by StartCapture after Interrupt.
	ErrShuttingDown = errors.New("capture manager shutting down")
)
