// Package backends builds the chat and network speech providers selected by
// a config.Server.
package backends

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-agrivoice/internal/config"
	"github.com/teslashibe/go-agrivoice/pkg/chat"
	"github.com/teslashibe/go-agrivoice/pkg/tts"
)

// Retriever builds the chat retriever for cfg.ChatMode.
func Retriever(cfg *config.Server, logger *slog.Logger) (chat.Retriever, error) {
	opts := []chat.Option{chat.WithLogger(logger)}
	switch cfg.ChatMode {
	case chat.ModeOpenAI:
		opts = append(opts, chat.WithAPIKey(cfg.OpenAIKey), chat.WithModel(cfg.ChatModel))
	default:
		opts = append(opts, chat.WithBaseURL(cfg.ChatBackendURL))
	}
	r, err := chat.New(cfg.ChatMode, opts...)
	if err != nil {
		return nil, fmt.Errorf("chat backend: %w", err)
	}
	return r, nil
}

// Speech builds the network TTS chain in preference order: the
// agriculture backend, Google, ElevenLabs, then OpenAI. It returns a nil
// Provider when nothing is configured, leaving on-device synthesis only.
func Speech(ctx context.Context, cfg *config.Server, logger *slog.Logger) (tts.Provider, error) {
	var providers []tts.Provider

	if cfg.TTSBackendURL != "" {
		p, err := tts.NewBackend(tts.WithBaseURL(cfg.TTSBackendURL), tts.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("tts backend: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.GoogleTTS {
		p, err := tts.NewGoogle(ctx, tts.WithCredentialsFile(cfg.GoogleCredsFile), tts.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("google tts: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.ElevenLabsKey != "" {
		p, err := tts.NewElevenLabs(
			tts.WithAPIKey(cfg.ElevenLabsKey),
			tts.WithVoice(cfg.ElevenLabsVoice),
			tts.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs tts: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.OpenAIKey != "" {
		p, err := tts.NewOpenAI(tts.WithAPIKey(cfg.OpenAIKey), tts.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("openai tts: %w", err)
		}
		providers = append(providers, p)
	}

	switch len(providers) {
	case 0:
		return nil, nil
	case 1:
		return providers[0], nil
	}
	return tts.NewChainWithLogger(logger, providers...)
}
