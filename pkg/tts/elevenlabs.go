package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-agrivoice/internal/httpc"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"
)

// ElevenLabs model IDs
const (
	// ModelFlashV2_5 is the fastest multilingual model. Accepts language_code.
	ModelFlashV2_5 = "eleven_flash_v2_5"

	// ModelTurboV2_5 is the low-latency multilingual model. Accepts language_code.
	ModelTurboV2_5 = "eleven_turbo_v2_5"

	// ModelMultilingualV2 is the highest quality multilingual model.
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// ElevenLabs implements Provider for ElevenLabs TTS.
type ElevenLabs struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.VoiceID == "" {
		cfg.VoiceID = ResolveElevenLabsVoice(DefaultElevenLabsVoice)
	} else {
		cfg.VoiceID = ResolveElevenLabsVoice(cfg.VoiceID)
	}
	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		config:  cfg,
		client:  cfg.client(),
		logger:  cfg.Logger.With("component", "tts.elevenlabs"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, r Request) (*AudioResult, error) {
	if err := ValidateRequest(r); err != nil {
		return nil, err
	}
	start := time.Now()

	voice := e.voiceFor(r.Language)
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(voice), url.QueryEscape(string(e.config.OutputFormat)))

	req, body, err := httpc.NewJSONRequest(ctx, endpoint, e.buildPayload(r))
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	e.setHeaders(req)

	resp, err := doWithRetry(ctx, e.config, e.client, e.logger, providerElevenLabs, req, body, e.parseError)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, e.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("read response: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerElevenLabs, ErrEmptyAudio)
	}

	e.logger.Debug("synthesized audio",
		"language", r.Language,
		"chars", len(r.Text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", e.config.ModelID,
	)

	return &AudioResult{
		Audio:     audio,
		MIME:      MIMEFromEncoding(e.config.OutputFormat),
		Format:    e.outputFormat(),
		CharCount: len([]rune(r.Text)),
		LatencyMs: latency,
		Duration:  e.estimateDuration(len(audio)),
		Provider:  providerElevenLabs,
	}, nil
}

// Health checks API connectivity and API key validity.
func (e *ElevenLabs) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/user", nil)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return WrapError(providerElevenLabs, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured default voice ID.
func (e *ElevenLabs) VoiceID() string {
	return e.config.VoiceID
}

// voiceFor returns the per-language voice override, or the default voice.
func (e *ElevenLabs) voiceFor(lang langdetect.Code) string {
	if v, ok := e.config.Voices[lang]; ok && v != "" {
		return ResolveElevenLabsVoice(v)
	}
	return e.config.VoiceID
}

// buildPayload constructs the API request payload.
// language_code is only accepted by the v2.5 models.
func (e *ElevenLabs) buildPayload(r Request) map[string]interface{} {
	payload := map[string]interface{}{
		"text":     r.Text,
		"model_id": e.config.ModelID,
		"voice_settings": map[string]interface{}{
			"stability":         e.config.VoiceSettings.Stability,
			"similarity_boost":  e.config.VoiceSettings.SimilarityBoost,
			"style":             e.config.VoiceSettings.Style,
			"use_speaker_boost": e.config.VoiceSettings.SpeakerBoost,
		},
	}
	if r.Language != "" && strings.HasSuffix(e.config.ModelID, "_v2_5") {
		payload["language_code"] = string(r.Language)
	}
	return payload
}

// setHeaders sets required HTTP headers.
func (e *ElevenLabs) setHeaders(req *http.Request) {
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Accept", MIMEFromEncoding(e.config.OutputFormat))
}

// parseError reads and parses an error response.
func (e *ElevenLabs) parseError(resp *http.Response) error {
	body := readBody(resp)

	var errResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		message = errResp.Detail.Message
		code = errResp.Detail.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerElevenLabs,
	}
}

// outputFormat returns the audio format configuration.
func (e *ElevenLabs) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   e.config.OutputFormat,
		SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
		Channels:   1,
		BitDepth:   16,
	}
}

// estimateDuration estimates audio duration from byte count.
func (e *ElevenLabs) estimateDuration(n int) time.Duration {
	if e.config.OutputFormat == EncodingMP3 {
		// 128 kbps
		return time.Duration(float64(n) * 8 / 128000 * float64(time.Second))
	}
	samples := n / 2
	seconds := float64(samples) / float64(SampleRateFromEncoding(e.config.OutputFormat))
	return time.Duration(seconds * float64(time.Second))
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)
