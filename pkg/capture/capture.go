// Package capture adapts a continuous speech-to-text engine to the voice
// controller.
//
// The Engine interface is the platform capability: a browser or phone
// recognizer behind the device gateway, or a local stand-in. Adapter owns
// at most one live Handle per engine, tolerates engines that report they
// are already running, and forwards each final hypothesis exactly once.
package capture

import "strings"

// Engine is a continuous speech recognizer (the SpeechCaptureEngine capability).
type Engine interface {
	// Start begins continuous recognition and delivers events to cb.
	// It returns ErrAlreadyStarted if a recognition is still running and
	// ErrUnsupported if the platform cannot capture speech at all.
	Start(opts Options, cb Callbacks) error

	// Stop ends recognition gracefully; pending results may still arrive.
	Stop() error

	// Abort ends recognition immediately and discards pending results.
	Abort() error
}

// Options configure one recognition run.
type Options struct {
	// Locale hints the expected language (e.g. "hi-IN").
	Locale string

	// Interim requests non-final hypotheses.
	Interim bool
}

// Callbacks receive recognition events. Engines may call them from any goroutine.
type Callbacks struct {
	OnResult func(Result)
	OnError  func(code string)
	OnEnd    func()
}

// Result is one recognition hypothesis.
type Result struct {
	// Transcript is the recognised text.
	Transcript string `json:"transcript"`

	// Final marks a hypothesis the engine will not revise.
	Final bool `json:"final"`

	// Locale is the language the engine recognised, if it reports one.
	Locale string `json:"locale,omitempty"`

	// Index identifies the utterance within one recognition run.
	// Engines that re-deliver a final result reuse its index.
	Index int `json:"index"`
}

// Engine error codes of interest.
const (
	CodeNoSpeech       = "no-speech"
	CodeAborted        = "aborted"
	CodeNotAllowed     = "not-allowed"
	CodeAudioCapture   = "audio-capture"
	CodeNetwork        = "network"
	CodeServiceBlocked = "service-not-allowed"
)

// Class groups engine error codes by how the controller reacts.
type Class int

const (
	// Fatal errors stop the hands-free loop.
	Fatal Class = iota
	// Transient errors restart capture after a short delay.
	Transient
	// Ignored errors have no effect.
	Ignored
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Ignored:
		return "ignored"
	default:
		return "fatal"
	}
}

// Classify maps an engine error code to its Class.
func Classify(code string) Class {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case CodeNoSpeech:
		return Transient
	case CodeAborted:
		return Ignored
	default:
		return Fatal
	}
}
