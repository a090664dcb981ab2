// Package audio manages spoken-response playback.
//
// A Manager owns at most one live Handle. Each Handle wraps a Resource:
// decoded audio opened on a Sink, a local synthesis utterance, or silence.
// Natural completion and hard interruption are kept apart so that only the
// former can advance the conversation.
package audio

// Sink is an audio output (the AudioSink capability).
// Open prepares encoded audio for playback without starting it.
type Sink interface {
	Open(data []byte, mime string) (Resource, error)
}

// Resource is one playable unit owned by a Handle.
type Resource interface {
	// Start begins playback and returns without waiting for it to finish.
	// done is called once when playback ends naturally (nil) or fails.
	Start(done func(error)) error

	// Stop halts playback immediately. done must not be relied on afterwards.
	Stop() error

	// Release frees buffers and transient resources. Called exactly once.
	Release()
}

// Outcome describes how a Handle finished.
type Outcome int

const (
	// OutcomeEnded is natural completion.
	OutcomeEnded Outcome = iota
	// OutcomeInterrupted is a hard stop requested by the owner.
	OutcomeInterrupted
	// OutcomeFailed is a playback error after a successful start.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeEnded:
		return "ended"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Common MIME types produced by TTS collaborators.
const (
	MIMEMPEG = "audio/mpeg"
	MIMEWAV  = "audio/wav"
	MIMEPCM  = "audio/pcm"
	MIMEOGG  = "audio/ogg"
)
