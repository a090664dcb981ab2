// Package config provides configuration helpers for agrivoice commands.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults used when neither a flag nor an env var is set.
const (
	DefaultAddr           = ":8090"
	DefaultChatBackendURL = "http://localhost:5000/api/chat"
	DefaultChatMode       = "http"
	DefaultLogLevel       = "info"
	DefaultRestartDelay   = 100 * time.Millisecond
)

// Server holds the settings for the agrivoice server binary.
type Server struct {
	Addr     string
	LogLevel string

	// Chat backend
	ChatBackendURL string
	ChatMode       string // http, ws or openai
	ChatModel      string
	OpenAIKey      string

	// Network TTS
	TTSBackendURL    string
	GoogleTTS        bool
	GoogleCredsFile  string
	ElevenLabsKey    string
	ElevenLabsVoice  string
	PreferLocalVoice bool

	// Controller
	RestartDelay time.Duration
}

// FromEnv returns a Server config populated from the environment.
// Flags parsed afterwards override these values.
func FromEnv() *Server {
	return &Server{
		Addr:             Env("AGRIVOICE_ADDR", DefaultAddr),
		LogLevel:         Env("LOG_LEVEL", DefaultLogLevel),
		ChatBackendURL:   Env("CHAT_BACKEND_URL", DefaultChatBackendURL),
		ChatMode:         Env("CHAT_BACKEND_MODE", DefaultChatMode),
		ChatModel:        Env("CHAT_MODEL", "gpt-4o-mini"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		TTSBackendURL:    os.Getenv("TTS_BACKEND_URL"),
		GoogleTTS:        Bool("GOOGLE_TTS_ENABLED", false),
		GoogleCredsFile:  os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		ElevenLabsKey:    os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:  os.Getenv("ELEVENLABS_VOICE_ID"),
		PreferLocalVoice: Bool("PREFER_LOCAL_TTS", false),
		RestartDelay:     Duration("CAPTURE_RESTART_DELAY", DefaultRestartDelay),
	}
}

// Env returns the value of key, or def when unset or blank.
func Env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Bool parses key as a boolean, returning def when unset or invalid.
func Bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration parses key as a time.Duration, returning def when unset or invalid.
func Duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
