// Package protocol defines the WebSocket messages exchanged between the
// voice server and a device (phone or browser) that owns the microphone,
// the speaker and the on-device synthesizer.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → Server messages
	TypeHello            MessageType = "hello"          // Device capabilities
	TypeCaptureResult    MessageType = "capture.result" // Recognition hypothesis
	TypeCaptureError     MessageType = "capture.error"  // Recognition error code
	TypeCaptureEnd       MessageType = "capture.end"    // Recognition ended on its own
	TypeAudioStarted     MessageType = "audio.started"  // Playback began
	TypeAudioEnded       MessageType = "audio.ended"    // Playback finished naturally
	TypeAudioError       MessageType = "audio.error"    // Playback failed
	TypeTTSEnd           MessageType = "tts.end"        // Utterance finished
	TypeTTSError         MessageType = "tts.error"      // Utterance failed
	TypeTTSVoices        MessageType = "tts.voices"     // Voice catalog changed
	TypeControlOpen      MessageType = "control.open"
	TypeControlClose     MessageType = "control.close"
	TypeControlInterrupt MessageType = "control.interrupt"

	// Server → Device messages
	TypeCaptureStart MessageType = "capture.start"
	TypeCaptureStop  MessageType = "capture.stop"
	TypeCaptureAbort MessageType = "capture.abort"
	TypeAudioPlay    MessageType = "audio.play"
	TypeAudioStop    MessageType = "audio.stop"
	TypeTTSSpeak     MessageType = "tts.speak"
	TypeTTSCancel    MessageType = "tts.cancel"
	TypeSession      MessageType = "session" // Session snapshot
	TypeError        MessageType = "error"   // Protocol error

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Ref       string          `json:"ref,omitempty"` // Correlates audio and tts replies with their request
	Timestamp int64           `json:"ts,omitempty"`  // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// WithRef sets the correlation reference and returns m.
func (m *Message) WithRef(ref string) *Message {
	m.Ref = ref
	return m
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Device → Server Message Types
// =============================================================================

// HelloData announces what the device can do
type HelloData struct {
	Name    string  `json:"name,omitempty"`
	Capture bool    `json:"capture"`         // Speech recognition available
	Locale  string  `json:"locale,omitempty"` // Preferred recognition locale
	Voices  []Voice `json:"voices,omitempty"`
}

// CaptureResultData is one recognition hypothesis
type CaptureResultData struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
	Locale     string `json:"locale,omitempty"`
	Index      int    `json:"index"`
}

// CaptureErrorData carries an engine error code such as "no-speech"
type CaptureErrorData struct {
	Code string `json:"code"`
}

// FailureData describes a playback or utterance failure
type FailureData struct {
	Message string `json:"message"`
}

// Voice is one on-device synthesis voice
type Voice struct {
	Name    string `json:"name"`
	Locale  string `json:"locale"`
	Default bool   `json:"default,omitempty"`
}

// VoicesData is the device voice catalog
type VoicesData struct {
	Voices []Voice `json:"voices"`
}

// =============================================================================
// Server → Device Message Types
// =============================================================================

// CaptureStartData configures a recognition run
type CaptureStartData struct {
	Locale  string `json:"locale,omitempty"`
	Interim bool   `json:"interim"`
}

// AudioPlayData contains encoded audio to play
type AudioPlayData struct {
	MIME string `json:"mime"` // "audio/mpeg", "audio/wav"
	Data string `json:"data"` // base64 encoded
}

// SpeakData asks the device to speak text with its own synthesizer
type SpeakData struct {
	Text   string  `json:"text"`
	Locale string  `json:"locale,omitempty"`
	Voice  string  `json:"voice,omitempty"`
	Rate   float64 `json:"rate,omitempty"`
}

// ErrorData reports a protocol error to the device
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
