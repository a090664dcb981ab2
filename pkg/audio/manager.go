package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Manager owns the single live playback Handle.
//
// Play, Stop, StopCurrent and Fence are serialised; completion callbacks
// from resources only touch the current-handle slot.
type Manager struct {
	logger *slog.Logger

	op sync.Mutex

	mu      sync.Mutex
	current *Handle
	floor   uint64

	played      atomic.Uint64
	ended       atomic.Uint64
	interrupted atomic.Uint64
	failed      atomic.Uint64
}

// Stats contains playback counters.
type Stats struct {
	Played      uint64 `json:"played"`
	Ended       uint64 `json:"ended"`
	Interrupted uint64 `json:"interrupted"`
	Failed      uint64 `json:"failed"`
}

// NewManager creates a playback manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger.With("component", "audio.manager"),
	}
}

// Play stops and releases the current handle, then starts h.
// A handle older than the fence generation is released and ErrStale returned.
// If h fails to start it is released without notifying its owner, and the
// error wraps ErrStartFailed.
func (m *Manager) Play(h *Handle) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if h.Generation < m.floor {
		m.mu.Unlock()
		h.settle(OutcomeInterrupted, ErrStale, false, false)
		return ErrStale
	}
	prev := m.current
	m.current = h
	m.mu.Unlock()

	if prev != nil && prev != h {
		if prev.settle(OutcomeInterrupted, nil, true, false) {
			m.interrupted.Add(1)
		}
	}

	h.markStarted()
	if err := h.resource.Start(func(err error) { m.complete(h, err) }); err != nil {
		m.clear(h)
		h.settle(OutcomeFailed, err, true, false)
		m.logger.Debug("playback start failed", "handle", h.ID, "source", h.Source, "error", err)
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	m.played.Add(1)
	m.logger.Debug("playback started", "handle", h.ID, "generation", h.Generation, "source", h.Source)
	return nil
}

// Stop hard-stops h. Safe to call on a handle that already finished.
// No completion is reported for h afterwards.
func (m *Manager) Stop(h *Handle) {
	if h == nil {
		return
	}
	m.op.Lock()
	defer m.op.Unlock()

	m.clear(h)
	if h.settle(OutcomeInterrupted, nil, true, false) {
		m.interrupted.Add(1)
		m.logger.Debug("playback interrupted", "handle", h.ID)
	}
}

// StopCurrent hard-stops whatever is playing.
func (m *Manager) StopCurrent() {
	m.Stop(m.Current())
}

// Fence hard-stops the current handle and rejects handles older than gen.
func (m *Manager) Fence(gen uint64) {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if gen > m.floor {
		m.floor = gen
	}
	cur := m.current
	m.current = nil
	m.mu.Unlock()

	if cur != nil && cur.settle(OutcomeInterrupted, nil, true, false) {
		m.interrupted.Add(1)
	}
}

// Current returns the live handle, or nil.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Stats returns playback counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Played:      m.played.Load(),
		Ended:       m.ended.Load(),
		Interrupted: m.interrupted.Load(),
		Failed:      m.failed.Load(),
	}
}

func (m *Manager) complete(h *Handle, err error) {
	m.clear(h)

	outcome := OutcomeEnded
	if err != nil {
		outcome = OutcomeFailed
	}
	if !h.settle(outcome, err, false, true) {
		return
	}

	if outcome == OutcomeEnded {
		m.ended.Add(1)
	} else {
		m.failed.Add(1)
		m.logger.Warn("playback failed", "handle", h.ID, "source", h.Source, "error", err)
	}
}

func (m *Manager) clear(h *Handle) {
	m.mu.Lock()
	if m.current == h {
		m.current = nil
	}
	m.mu.Unlock()
}
