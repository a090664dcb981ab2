package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("AGRIVOICE_ADDR", "")
	t.Setenv("CHAT_BACKEND_MODE", "")
	t.Setenv("CAPTURE_RESTART_DELAY", "")

	cfg := FromEnv()
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.ChatMode != DefaultChatMode {
		t.Errorf("ChatMode = %q, want %q", cfg.ChatMode, DefaultChatMode)
	}
	if cfg.RestartDelay != DefaultRestartDelay {
		t.Errorf("RestartDelay = %v, want %v", cfg.RestartDelay, DefaultRestartDelay)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AGRIVOICE_ADDR", ":9999")
	t.Setenv("GOOGLE_TTS_ENABLED", "true")
	t.Setenv("CAPTURE_RESTART_DELAY", "250ms")

	cfg := FromEnv()
	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if !cfg.GoogleTTS {
		t.Error("expected GoogleTTS to be enabled")
	}
	if cfg.RestartDelay != 250*time.Millisecond {
		t.Errorf("RestartDelay = %v", cfg.RestartDelay)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "-5s")

	if Bool("X_BOOL", true) != true {
		t.Error("invalid bool should return default")
	}
	if Duration("X_DUR", time.Second) != time.Second {
		t.Error("negative duration should return default")
	}
}
