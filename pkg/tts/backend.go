package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-agrivoice/internal/httpc"
)

const providerBackend = "backend"

// Backend implements Provider against the agriculture backend's TTS route.
//
// The route takes {"text", "language"} and answers with either raw audio
// (Content-Type audio/*) or JSON {"audio": base64, "mime": "..."}.
type Backend struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// backendAudio is the JSON response shape.
type backendAudio struct {
	Audio string `json:"audio"`
	MIME  string `json:"mime"`
	Error string `json:"error"`
}

// NewBackend creates a provider for the backend TTS route.
func NewBackend(opts ...Option) (*Backend, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	return &Backend{
		config: cfg,
		client: cfg.client(),
		logger: cfg.Logger.With("component", "tts.backend"),
	}, nil
}

// Synthesize posts the request and returns the audio bytes.
func (b *Backend) Synthesize(ctx context.Context, r Request) (*AudioResult, error) {
	if err := ValidateRequest(r); err != nil {
		return nil, err
	}
	start := time.Now()

	req, body, err := httpc.NewJSONRequest(ctx, b.config.BaseURL, r)
	if err != nil {
		return nil, WrapError(providerBackend, err)
	}
	req.Header.Set("Accept", "audio/mpeg, audio/wav, application/json")
	if b.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.config.APIKey)
	}

	resp, err := doWithRetry(ctx, b.config, b.client, b.logger, providerBackend, req, body, b.parseError)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, b.parseError(resp)
	}

	audio, mime, err := b.decode(resp)
	if err != nil {
		return nil, WrapError(providerBackend, err)
	}
	if len(audio) == 0 {
		return nil, WrapError(providerBackend, ErrEmptyAudio)
	}

	latency := time.Since(start).Milliseconds()
	b.logger.Debug("synthesized audio",
		"language", r.Language,
		"chars", len(r.Text),
		"bytes", len(audio),
		"mime", mime,
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio:     audio,
		MIME:      mime,
		CharCount: len([]rune(r.Text)),
		LatencyMs: latency,
		Provider:  providerBackend,
	}, nil
}

// decode reads either a raw audio body or the JSON envelope.
func (b *Backend) decode(resp *http.Response) ([]byte, string, error) {
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("read response: %w", err)
		}
		return audio, MIMEFromContentType(ct), nil
	}

	var out backendAudio
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, "", fmt.Errorf("backend: %s", out.Error)
	}
	audio, err := base64.StdEncoding.DecodeString(out.Audio)
	if err != nil {
		return nil, "", fmt.Errorf("decode audio: %w", err)
	}
	return audio, MIMEFromContentType(out.MIME), nil
}

// Health reports whether the backend answers at all.
func (b *Backend) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.config.BaseURL, nil)
	if err != nil {
		return WrapError(providerBackend, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return WrapError(providerBackend, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return b.parseError(resp)
	}
	return nil
}

// Close releases idle connections.
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// parseError reads and parses an error response.
func (b *Backend) parseError(resp *http.Response) error {
	body := readBody(resp)

	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Message != "":
			message = errResp.Message
		case errResp.Error != "":
			message = errResp.Error
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerBackend,
	}
}

// Verify Backend implements Provider at compile time.
var _ Provider = (*Backend)(nil)
