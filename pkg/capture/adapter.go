package capture

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies an adapter event.
type EventKind int

const (
	// EventResult carries an interim or final hypothesis.
	EventResult EventKind = iota
	// EventError carries an engine error code.
	EventError
	// EventEnd reports that the engine stopped on its own.
	EventEnd
)

// Event is what the adapter forwards to its listener.
// Generation is the value passed to Start for the handle that produced it.
type Event struct {
	Kind       EventKind
	Generation uint64
	HandleID   string
	Result     Result
	Code       string
	Class      Class
}

// Listener receives adapter events. It may be called from engine goroutines.
type Listener func(Event)

// Config holds adapter configuration.
type Config struct {
	// Interim forwards non-final hypotheses.
	Interim bool

	// Logger for adapter diagnostics.
	Logger *slog.Logger
}

// Option is a functional option for configuring the adapter.
type Option func(*Config)

// WithInterim enables or disables interim results.
func WithInterim(enabled bool) Option {
	return func(c *Config) {
		c.Interim = enabled
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() *Config {
	return &Config{
		Interim: true,
		Logger:  slog.Default(),
	}
}

// Handle is one engine run bound to a session generation.
type Handle struct {
	ID         string
	Generation uint64
	Locale     string
	Started    time.Time

	mu        sync.Mutex
	disposed  bool
	forwarded map[int]bool
}

// Disposed reports whether the handle no longer forwards events.
func (h *Handle) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

func (h *Handle) dispose() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	was := h.disposed
	h.disposed = true
	return !was
}

// admit reports whether r should be forwarded and records finals.
func (h *Handle) admit(r Result) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return false
	}
	if !r.Final {
		return true
	}
	if h.forwarded[r.Index] {
		return false
	}
	h.forwarded[r.Index] = true
	return true
}

// Adapter wraps an Engine and owns its single live Handle.
type Adapter struct {
	engine Engine
	emit   Listener
	cfg    *Config
	logger *slog.Logger

	mu     sync.Mutex
	live   *Handle
	closed bool
}

// NewAdapter creates an adapter that forwards engine events to emit.
func NewAdapter(engine Engine, emit Listener, opts ...Option) *Adapter {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Adapter{
		engine: engine,
		emit:   emit,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "capture.adapter"),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Start begins a new recognition run for generation gen.
// Any live handle is aborted first. An engine that reports it is already
// running is stopped and started once more.
func (a *Adapter) Start(gen uint64, locale string) (*Handle, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	prev := a.live
	a.live = nil
	a.mu.Unlock()

	if prev != nil && prev.dispose() {
		if err := a.engine.Abort(); err != nil {
			a.logger.Debug("abort before restart failed", "error", err)
		}
	}

	h := &Handle{
		ID:         uuid.NewString(),
		Generation: gen,
		Locale:     locale,
		Started:    time.Now(),
		forwarded:  make(map[int]bool),
	}
	opts := Options{Locale: locale, Interim: a.cfg.Interim}
	cb := a.callbacks(h)

	err := a.engine.Start(opts, cb)
	if errors.Is(err, ErrAlreadyStarted) {
		a.logger.Debug("engine already started, retrying once", "generation", gen)
		if stopErr := a.engine.Stop(); stopErr != nil {
			a.logger.Debug("stop before retry failed", "error", stopErr)
		}
		err = a.engine.Start(opts, cb)
	}
	if err != nil {
		h.dispose()
		return nil, err
	}

	a.mu.Lock()
	a.live = h
	a.mu.Unlock()

	a.logger.Debug("capture started", "generation", gen, "handle", h.ID, "locale", locale)
	return h, nil
}

// Stop ends the live run gracefully. Safe to call with no live handle.
func (a *Adapter) Stop() error {
	h := a.take()
	if h == nil || !h.dispose() {
		return nil
	}
	return a.engine.Stop()
}

// Abort ends the live run immediately. Safe to call with no live handle.
func (a *Adapter) Abort() error {
	h := a.take()
	if h == nil || !h.dispose() {
		return nil
	}
	return a.engine.Abort()
}

// Close aborts any live run and rejects further starts.
func (a *Adapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Abort()
}

// Live returns the live handle, or nil.
func (a *Adapter) Live() *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

func (a *Adapter) take() *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.live
	a.live = nil
	return h
}

func (a *Adapter) callbacks(h *Handle) Callbacks {
	return Callbacks{
		OnResult: func(r Result) {
			r.Transcript = strings.TrimSpace(r.Transcript)
			if r.Transcript == "" {
				return
			}
			if !r.Final && !a.cfg.Interim {
				return
			}
			if !h.admit(r) {
				return
			}
			a.emit(Event{Kind: EventResult, Generation: h.Generation, HandleID: h.ID, Result: r})
		},
		OnError: func(code string) {
			if h.Disposed() {
				return
			}
			class := Classify(code)
			if class == Fatal {
				a.logger.Warn("capture error", "code", code, "generation", h.Generation)
			}
			a.emit(Event{Kind: EventError, Generation: h.Generation, HandleID: h.ID, Code: code, Class: class})
		},
		OnEnd: func() {
			a.mu.Lock()
			if a.live == h {
				a.live = nil
			}
			a.mu.Unlock()
			if !h.dispose() {
				return
			}
			a.emit(Event{Kind: EventEnd, Generation: h.Generation, HandleID: h.ID})
		},
	}
}
