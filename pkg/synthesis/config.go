package synthesis

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-agrivoice/pkg/localtts"
)

// Config holds orchestrator configuration.
type Config struct {
	// NetworkTimeout bounds the network TTS call. Zero leaves it to the provider.
	NetworkTimeout time.Duration

	// VoiceWait is how long to wait for a local voice catalog to load.
	VoiceWait time.Duration

	// LocalRate is the on-device speaking rate.
	LocalRate float64

	// PreferLocal skips the network path entirely.
	PreferLocal bool

	Logger *slog.Logger
}

// Option is a functional option for the orchestrator.
type Option func(*Config)

// WithNetworkTimeout bounds the network TTS request.
func WithNetworkTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.NetworkTimeout = d
	}
}

// WithVoiceWait sets how long to wait for local voices.
func WithVoiceWait(d time.Duration) Option {
	return func(c *Config) {
		c.VoiceWait = d
	}
}

// WithLocalRate sets the on-device speaking rate.
func WithLocalRate(rate float64) Option {
	return func(c *Config) {
		c.LocalRate = rate
	}
}

// WithPreferLocal routes every request to on-device synthesis.
func WithPreferLocal(prefer bool) Option {
	return func(c *Config) {
		c.PreferLocal = prefer
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		NetworkTimeout: 12 * time.Second,
		VoiceWait:      time.Second,
		LocalRate:      localtts.DefaultRate,
		Logger:         slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
