package capture

import (
	"sync"
	"time"
)

// MockEngine implements Engine for testing.
// Start/Stop/Abort can be customised via function fields; events are
// injected with Result, Error and End.
type MockEngine struct {
	// StartFunc is called when Start is invoked. If nil, Start succeeds.
	StartFunc func(opts Options) error

	// StopFunc is called when Stop is invoked. If nil, returns nil.
	StopFunc func() error

	// AbortFunc is called when Abort is invoked. If nil, returns nil.
	AbortFunc func() error

	mu      sync.Mutex
	cb      Callbacks
	running bool
	calls   []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Locale string
	Time   time.Time
}

// NewMockEngine creates a mock engine that starts successfully.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Start records the call and keeps cb for later injection.
func (m *MockEngine) Start(opts Options, cb Callbacks) error {
	m.record("Start", opts.Locale)

	m.mu.Lock()
	fn := m.StartFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(opts); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.cb = cb
	m.running = true
	m.mu.Unlock()
	return nil
}

// Stop records the call.
func (m *MockEngine) Stop() error {
	m.record("Stop", "")
	m.mu.Lock()
	m.running = false
	fn := m.StopFunc
	m.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

// Abort records the call.
func (m *MockEngine) Abort() error {
	m.record("Abort", "")
	m.mu.Lock()
	m.running = false
	fn := m.AbortFunc
	m.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

// Running reports whether the engine was started and not stopped.
func (m *MockEngine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Result delivers a hypothesis through the most recent callbacks.
func (m *MockEngine) Result(transcript string, final bool, locale string, index int) {
	cb := m.callbacks()
	if cb.OnResult != nil {
		cb.OnResult(Result{Transcript: transcript, Final: final, Locale: locale, Index: index})
	}
}

// Error delivers an error code through the most recent callbacks.
func (m *MockEngine) Error(code string) {
	cb := m.callbacks()
	if cb.OnError != nil {
		cb.OnError(code)
	}
}

// End delivers an end event through the most recent callbacks.
func (m *MockEngine) End() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	cb := m.callbacks()
	if cb.OnEnd != nil {
		cb.OnEnd()
	}
}

// callbacks returns the callbacks passed to the most recent Start.
func (m *MockEngine) callbacks() Callbacks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb
}

// Snapshot returns the callbacks of the most recent Start, so tests can
// replay events through a handle that has since been replaced.
func (m *MockEngine) Snapshot() Callbacks {
	return m.callbacks()
}

func (m *MockEngine) record(method, locale string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Locale: locale, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *MockEngine) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *MockEngine) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *MockEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify MockEngine implements Engine at compile time.
var _ Engine = (*MockEngine)(nil)
