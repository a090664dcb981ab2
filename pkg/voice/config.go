package voice

import (
	"errors"
	"log/slog"
	"time"
)

// DefaultRestartDelay is the pause before capture restarts after an
// engine-initiated end or a no-speech error.
const DefaultRestartDelay = 100 * time.Millisecond

// Config configures a Controller.
type Config struct {
	// Locale is the capture locale hint. Empty uses the engine default.
	Locale string

	// RestartDelay is the pause before an automatic capture restart.
	RestartDelay time.Duration

	// QueueSize is the event queue capacity.
	QueueSize int

	Logger *slog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		RestartDelay: DefaultRestartDelay,
		QueueSize:    64,
		Logger:       slog.Default(),
	}
}

// Option configures a Controller.
type Option func(*Config)

// WithLocale sets the capture locale hint.
func WithLocale(locale string) Option {
	return func(c *Config) {
		c.Locale = locale
	}
}

// WithRestartDelay sets the automatic restart delay.
func WithRestartDelay(d time.Duration) Option {
	return func(c *Config) {
		c.RestartDelay = d
	}
}

// WithQueueSize sets the event queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Config) {
		c.QueueSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RestartDelay < 0 {
		return errors.New("voice: RestartDelay must not be negative")
	}
	if c.QueueSize <= 0 {
		return errors.New("voice: QueueSize must be positive")
	}
	return nil
}
