package protocol

import (
	"encoding/base64"
	"time"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewCaptureStartMessage creates a capture.start message
func NewCaptureStartMessage(locale string, interim bool) (*Message, error) {
	return NewMessage(TypeCaptureStart, CaptureStartData{Locale: locale, Interim: interim})
}

// NewAudioPlayMessage creates an audio.play message for the resource ref
func NewAudioPlayMessage(ref string, audio []byte, mime string) (*Message, error) {
	msg, err := NewMessage(TypeAudioPlay, AudioPlayData{
		MIME: mime,
		Data: base64.StdEncoding.EncodeToString(audio),
	})
	if err != nil {
		return nil, err
	}
	return msg.WithRef(ref), nil
}

// NewSpeakMessage creates a tts.speak message for the utterance ref
func NewSpeakMessage(ref string, data SpeakData) (*Message, error) {
	msg, err := NewMessage(TypeTTSSpeak, data)
	if err != nil {
		return nil, err
	}
	return msg.WithRef(ref), nil
}

// NewCaptureResultMessage creates a capture.result message
func NewCaptureResultMessage(transcript string, final bool, locale string, index int) (*Message, error) {
	return NewMessage(TypeCaptureResult, CaptureResultData{
		Transcript: transcript,
		Final:      final,
		Locale:     locale,
		Index:      index,
	})
}

// NewErrorMessage creates an error message
func NewErrorMessage(message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: message})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCaptureResult extracts a recognition hypothesis from a message
func (m *Message) GetCaptureResult() (*CaptureResultData, error) {
	var data CaptureResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCaptureError extracts a recognition error from a message
func (m *Message) GetCaptureError() (*CaptureErrorData, error) {
	var data CaptureErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFailure extracts audio or tts failure details from a message
func (m *Message) GetFailure() (*FailureData, error) {
	var data FailureData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetVoices extracts the voice catalog from a message
func (m *Message) GetVoices() (*VoicesData, error) {
	var data VoicesData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCaptureStart extracts capture options from a message
func (m *Message) GetCaptureStart() (*CaptureStartData, error) {
	var data CaptureStartData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAudioPlay extracts audio playback data from a message
func (m *Message) GetAudioPlay() (*AudioPlayData, error) {
	var data AudioPlayData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode decodes the base64 audio data
func (a *AudioPlayData) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}

// GetSpeakData extracts speak data from a message
func (m *Message) GetSpeakData() (*SpeakData, error) {
	var data SpeakData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
