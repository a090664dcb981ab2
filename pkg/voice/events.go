package voice

import (
	"time"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// Open starts a session with the given ID.
type Open struct{ ID string }

// Close ends the session and resets it.
type Close struct{}

// Interrupt stops the current turn and listens again, or resumes a halted session.
type Interrupt struct{}

// TranscriptReceived is a capture hypothesis.
type TranscriptReceived struct {
	Gen    uint64
	Text   string
	Final  bool
	Locale string
}

// CaptureFailed is a capture error code.
type CaptureFailed struct {
	Gen  uint64
	Code string
}

// CaptureEnded is an engine-initiated end of capture.
type CaptureEnded struct{ Gen uint64 }

// CaptureStartFailed is a failure to start the capture engine.
type CaptureStartFailed struct {
	Gen uint64
	Err error
}

// RestartDue fires when a scheduled capture restart is due.
type RestartDue struct{ Gen uint64 }

// ResponseReceived carries the chat backend reply.
type ResponseReceived struct {
	Gen     uint64
	Content string
}

// ResponseFailed is a chat backend failure.
type ResponseFailed struct {
	Gen uint64
	Err error
}

// PlaybackFinished is the end of the turn's playback. Interruptions are
// never delivered.
type PlaybackFinished struct {
	Gen     uint64
	Outcome audio.Outcome
	Err     error
}

// SynthesisDegraded reports that synthesis fell back a step.
type SynthesisDegraded struct {
	Gen      uint64
	Err      error
	Terminal bool
}

func (Open) isEvent()               {}
func (Close) isEvent()              {}
func (Interrupt) isEvent()          {}
func (TranscriptReceived) isEvent() {}
func (CaptureFailed) isEvent()      {}
func (CaptureEnded) isEvent()       {}
func (CaptureStartFailed) isEvent() {}
func (RestartDue) isEvent()         {}
func (ResponseReceived) isEvent()   {}
func (ResponseFailed) isEvent()     {}
func (PlaybackFinished) isEvent()   {}
func (SynthesisDegraded) isEvent()  {}

// Effect is an output of Reduce, executed by the Controller.
type Effect interface {
	isEffect()
}

// StartCapture starts a capture handle for Gen.
type StartCapture struct{ Gen uint64 }

// StopCapture stops the live capture handle gracefully.
type StopCapture struct{}

// AbortCapture discards the live capture handle.
type AbortCapture struct{}

// Retrieve asks the chat backend for a reply.
type Retrieve struct {
	Gen      uint64
	Message  string
	Language langdetect.Code
}

// Synthesize speaks a reply.
type Synthesize struct {
	Gen      uint64
	Text     string
	Language langdetect.Code
}

// StopPlayback hard-stops playback and rejects handles older than Gen.
type StopPlayback struct{ Gen uint64 }

// ScheduleRestart restarts capture after Delay.
type ScheduleRestart struct {
	Gen   uint64
	Delay time.Duration
}

// CancelPending cancels in-flight requests and timers.
type CancelPending struct{}

func (StartCapture) isEffect()    {}
func (StopCapture) isEffect()     {}
func (AbortCapture) isEffect()    {}
func (Retrieve) isEffect()        {}
func (Synthesize) isEffect()      {}
func (StopPlayback) isEffect()    {}
func (ScheduleRestart) isEffect() {}
func (CancelPending) isEffect()   {}
