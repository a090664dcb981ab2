package localtts

import (
	"sync"
)

// Mock implements Provider and VoiceNotifier for testing.
type Mock struct {
	// SpeakFunc is called when Speak is invoked. If nil, Speak succeeds
	// and the utterance stays in progress until Finish.
	SpeakFunc func(u Utterance) error

	mu        sync.Mutex
	voices    []Voice
	listeners Listeners
	done      func(error)
	spoken    []Utterance
	cancels   int
}

// NewMock creates a mock provider with the given catalog.
func NewMock(voices ...Voice) *Mock {
	return &Mock{voices: voices}
}

// Voices returns the current catalog.
func (m *Mock) Voices() []Voice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Voice(nil), m.voices...)
}

// SetVoices replaces the catalog and notifies listeners.
func (m *Mock) SetVoices(voices ...Voice) {
	m.mu.Lock()
	m.voices = voices
	m.mu.Unlock()

	m.listeners.Notify()
}

// OnVoicesChanged registers a catalog listener.
func (m *Mock) OnVoicesChanged(fn func()) func() {
	return m.listeners.Add(fn)
}

// ListenerCount returns the number of registered catalog listeners.
func (m *Mock) ListenerCount() int {
	return m.listeners.Len()
}

// Speak records the utterance.
func (m *Mock) Speak(u Utterance, done func(error)) error {
	if m.SpeakFunc != nil {
		if err := m.SpeakFunc(u); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.spoken = append(m.spoken, u)
	m.done = done
	m.mu.Unlock()
	return nil
}

// Cancel records the cancellation.
func (m *Mock) Cancel() error {
	m.mu.Lock()
	m.cancels++
	m.mu.Unlock()
	return nil
}

// Finish ends the current utterance with err (nil for a natural end).
func (m *Mock) Finish(err error) {
	m.mu.Lock()
	done := m.done
	m.done = nil
	m.mu.Unlock()
	if done != nil {
		done(err)
	}
}

// Spoken returns every utterance passed to Speak.
func (m *Mock) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.spoken...)
}

// Cancels returns how many times Cancel was called.
func (m *Mock) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

// Verify Mock implements its interfaces at compile time.
var (
	_ Provider      = (*Mock)(nil)
	_ VoiceNotifier = (*Mock)(nil)
)
