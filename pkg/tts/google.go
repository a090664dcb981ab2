package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/go-agrivoice/internal/httpc"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

const providerGoogle = "google"

// GoogleVoices maps languages to Cloud TTS voice names.
// Languages missing here are sent with only a language code.
var GoogleVoices = map[langdetect.Code]string{
	langdetect.English:   "en-IN-Wavenet-D",
	langdetect.Hindi:     "hi-IN-Wavenet-A",
	langdetect.Tamil:     "ta-IN-Wavenet-A",
	langdetect.Telugu:    "te-IN-Standard-A",
	langdetect.Kannada:   "kn-IN-Wavenet-A",
	langdetect.Malayalam: "ml-IN-Wavenet-A",
	langdetect.Bengali:   "bn-IN-Wavenet-A",
	langdetect.Marathi:   "mr-IN-Wavenet-A",
	langdetect.Gujarati:  "gu-IN-Wavenet-A",
	langdetect.Punjabi:   "pa-IN-Wavenet-A",
}

// Google implements Provider with Google Cloud Text-to-Speech.
type Google struct {
	config  *Config
	service *texttospeech.Service
	logger  *slog.Logger
}

// NewGoogle creates a Cloud TTS provider.
//
// Credentials are taken, in order, from an injected HTTP client, an API key,
// a service account file, or Application Default Credentials.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	clientOpts, err := googleClientOptions(ctx, cfg)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: svc,
		logger:  cfg.Logger.With("component", "tts.google"),
	}, nil
}

func googleClientOptions(ctx context.Context, cfg *Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	switch {
	case cfg.HTTPClient != nil:
		return append(opts, option.WithHTTPClient(cfg.HTTPClient)), nil
	case cfg.APIKey != "":
		return append(opts, option.WithAPIKey(cfg.APIKey)), nil
	}

	ts, err := googleTokenSource(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return append(opts, option.WithTokenSource(ts)), nil
}

// googleTokenSource loads credentials from path, or ADC when path is empty.
func googleTokenSource(ctx context.Context, path string) (oauth2.TokenSource, error) {
	if path == "" {
		creds, err := google.FindDefaultCredentials(ctx, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("default credentials: %w", err)
		}
		return creds.TokenSource, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, texttospeech.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return creds.TokenSource, nil
}

// Synthesize converts text to MP3 audio.
func (g *Google) Synthesize(ctx context.Context, r Request) (*AudioResult, error) {
	if err := ValidateRequest(r); err != nil {
		return nil, err
	}
	start := time.Now()

	call := g.service.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: r.Text},
		Voice: g.voiceFor(r.Language),
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  g.config.SpeakingRate,
		},
	})

	var (
		resp    *texttospeech.SynthesizeSpeechResponse
		lastErr error
	)
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := httpc.Backoff(ctx, attempt, g.config.RetryDelay); err != nil {
				return nil, err
			}
		}

		var err error
		resp, err = call.Context(ctx).Do()
		if err == nil {
			lastErr = nil
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = g.convertError(err)
		var apiErr *APIError
		if !errors.As(lastErr, &apiErr) || !apiErr.IsRetryable() {
			break
		}
		g.logger.Warn("retrying request", "attempt", attempt+1, "status", apiErr.StatusCode)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerGoogle, ErrEmptyAudio)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
		"language", r.Language,
		"chars", len(r.Text),
		"bytes", len(audio),
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio:     audio,
		MIME:      MIMEMPEG,
		Format:    AudioFormat{Encoding: EncodingMP3, SampleRate: 24000, Channels: 1},
		CharCount: len([]rune(r.Text)),
		LatencyMs: latency,
		Provider:  providerGoogle,
	}, nil
}

// Health lists voices for English as a connectivity check.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.service.Voices.List().LanguageCode(langdetect.EngineLocale(langdetect.English)).Context(ctx).Do()
	if err != nil {
		return g.convertError(err)
	}
	return nil
}

// Close is a no-op; the service holds no long-lived resources.
func (g *Google) Close() error {
	return nil
}

// voiceFor builds voice selection params for a language.
func (g *Google) voiceFor(lang langdetect.Code) *texttospeech.VoiceSelectionParams {
	if lang == "" {
		lang = langdetect.Default
	}
	params := &texttospeech.VoiceSelectionParams{
		LanguageCode: langdetect.EngineLocale(lang),
	}

	if v, ok := g.config.Voices[lang]; ok && v != "" {
		params.Name = v
	} else if v, ok := GoogleVoices[lang]; ok {
		params.Name = v
	}
	return params
}

// convertError maps googleapi errors onto APIError.
func (g *Google) convertError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
