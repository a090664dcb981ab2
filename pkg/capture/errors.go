package capture

import "errors"

// Sentinel errors for capture engines.
var (
	// ErrUnsupported is returned when the platform has no speech capture.
	ErrUnsupported = errors.New("capture: speech recognition unsupported")

	// ErrAlreadyStarted is returned by engines asked to start twice.
	ErrAlreadyStarted = errors.New("capture: recognition already started")

	// ErrClosed is returned after the adapter has been closed.
	ErrClosed = errors.New("capture: adapter closed")
)
