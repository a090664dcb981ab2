// Package chat retrieves spoken-turn replies from the agriculture chat backend.
//
// A Retriever takes one finalized utterance plus its detected language and
// returns the assistant's reply text. Backend speaks the backend's plain
// HTTP route, WSClient its streaming websocket, and OpenAI any
// OpenAI-compatible completion endpoint.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

// Retriever fetches a reply for one utterance.
type Retriever interface {
	Retrieve(ctx context.Context, req Request) (*Response, error)
}

// Request is one user turn.
type Request struct {
	Message  string          `json:"message"`
	Language langdetect.Code `json:"language"`
}

// Response is the backend's reply.
type Response struct {
	Content string `json:"content"`

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64 `json:"-"`

	// Provider names the retriever that answered.
	Provider string `json:"-"`
}

// Validate checks that the request carries a message.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// language returns the request language or the default.
func (r Request) language() langdetect.Code {
	if r.Language == "" {
		return langdetect.Default
	}
	return r.Language
}

// Modes accepted by New.
const (
	ModeHTTP   = "http"
	ModeWS     = "ws"
	ModeOpenAI = "openai"
)

// New builds the retriever for mode.
func New(mode string, opts ...Option) (Retriever, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeHTTP:
		return NewBackend(opts...)
	case ModeWS:
		return NewWSClient(opts...)
	case ModeOpenAI:
		return NewOpenAI(opts...)
	default:
		return nil, fmt.Errorf("chat: unknown mode %q", mode)
	}
}
