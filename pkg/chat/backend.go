package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const providerBackend = "backend"

// Backend posts {"message", "language"} to the agriculture chat route and
// reads {"content"} back.
type Backend struct {
	config *Config
	http   *httpTransport
}

// backendReply accepts the field names the backend has used over time.
type backendReply struct {
	Content  string `json:"content"`
	Response string `json:"response"`
	Reply    string `json:"reply"`
	Error    string `json:"error"`
}

func (r backendReply) text() string {
	switch {
	case r.Content != "":
		return r.Content
	case r.Response != "":
		return r.Response
	default:
		return r.Reply
	}
}

// NewBackend creates an HTTP retriever.
func NewBackend(opts ...Option) (*Backend, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Backend{
		config: cfg,
		http: &httpTransport{
			config:   cfg,
			client:   cfg.client(),
			logger:   cfg.Logger.With("component", "chat.backend"),
			provider: providerBackend,
		},
	}, nil
}

// Retrieve sends one utterance and returns the reply.
func (b *Backend) Retrieve(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, WrapError(providerBackend, err)
	}
	start := time.Now()

	resp, err := b.http.post(ctx, b.config.BaseURL, Request{Message: req.Message, Language: req.language()})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reply backendReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, WrapError(providerBackend, fmt.Errorf("decode response: %w", err))
	}
	if reply.Error != "" {
		return nil, WrapError(providerBackend, fmt.Errorf("backend: %s", reply.Error))
	}

	content := reply.text()
	if strings.TrimSpace(content) == "" {
		return nil, WrapError(providerBackend, ErrEmptyResponse)
	}

	latency := time.Since(start).Milliseconds()
	b.http.logger.Debug("retrieved reply",
		"language", req.language(),
		"chars", len(content),
		"latency_ms", latency,
	)

	return &Response{Content: content, LatencyMs: latency, Provider: providerBackend}, nil
}

// Close releases idle connections.
func (b *Backend) Close() error {
	b.http.client.CloseIdleConnections()
	return nil
}

// Verify Backend implements Retriever at compile time.
var _ Retriever = (*Backend)(nil)
