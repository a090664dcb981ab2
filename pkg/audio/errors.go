package audio

import "errors"

// Sentinel errors for playback.
var (
	// ErrStale is returned when a handle predates the manager's fence.
	ErrStale = errors.New("audio: stale playback handle")

	// ErrStartFailed wraps a resource that could not start.
	ErrStartFailed = errors.New("audio: playback failed to start")

	// ErrUnsupportedFormat is returned by sinks that cannot decode a MIME type.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")

	// ErrEmptyAudio is returned when a sink is asked to open no data.
	ErrEmptyAudio = errors.New("audio: empty audio buffer")
)
