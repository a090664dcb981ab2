package voice

import (
	"encoding/json"
	"fmt"

	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

// Status is the conversation state.
type Status int

const (
	StatusIdle Status = iota
	StatusListening
	StatusThinking
	StatusSpeaking
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusListening:
		return "listening"
	case StatusThinking:
		return "thinking"
	case StatusSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is the controller state. Generation only ever grows; every
// asynchronous completion carries the generation it was started under and
// is discarded when that no longer matches.
type Session struct {
	ID           string          `json:"id,omitempty"`
	Generation   uint64          `json:"generation"`
	Open         bool            `json:"open"`
	Status       Status          `json:"status"`
	Transcript   string          `json:"transcript,omitempty"`
	Interim      string          `json:"interim,omitempty"`
	ResponseText string          `json:"response_text,omitempty"`
	Language     langdetect.Code `json:"language,omitempty"`
	LastError    *SessionError   `json:"last_error,omitempty"`

	// Processing is held from accepting a final transcript until the turn
	// resolves. A second final while it is set is dropped.
	Processing bool `json:"processing"`

	// RestartPending is set while a capture restart is scheduled.
	RestartPending bool `json:"restart_pending"`
}

// ErrorKind classifies session errors.
type ErrorKind int

const (
	// CaptureUnsupported: no speech capture on this platform. Halts the loop.
	CaptureUnsupported ErrorKind = iota + 1
	// CaptureTransient: no-speech or aborted. Retried or ignored, never surfaced.
	CaptureTransient
	// CaptureFatal: any other capture error. Halts the loop.
	CaptureFatal
	// RetrievalFailure: the chat backend failed. The loop keeps listening.
	RetrievalFailure
	// SynthesisFailure: network and local synthesis both failed.
	SynthesisFailure
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case CaptureUnsupported:
		return "capture_unsupported"
	case CaptureTransient:
		return "capture_transient"
	case CaptureFatal:
		return "capture_fatal"
	case RetrievalFailure:
		return "retrieval_failure"
	case SynthesisFailure:
		return "synthesis_failure"
	default:
		return "unknown"
	}
}

// SessionError is the error surfaced on a Session.
type SessionError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.Err == nil {
		return "voice: " + e.Kind.String()
	}
	return fmt.Sprintf("voice: %s: %v", e.Kind, e.Err)
}

// Unwrap returns the cause.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the hands-free loop keeps running.
func (e *SessionError) Recoverable() bool {
	return e.Kind != CaptureUnsupported && e.Kind != CaptureFatal
}

// MarshalJSON encodes the error as {"kind", "message", "recoverable"}.
func (e *SessionError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Kind        string `json:"kind"`
		Message     string `json:"message,omitempty"`
		Recoverable bool   `json:"recoverable"`
	}{e.Kind.String(), msg, e.Recoverable()})
}
