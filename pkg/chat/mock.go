package chat

import (
	"context"
	"sync"
	"time"
)

// Mock implements Retriever for testing.
type Mock struct {
	// RetrieveFunc is called when Retrieve is invoked.
	// If nil, the message is echoed back.
	RetrieveFunc func(ctx context.Context, req Request) (*Response, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Retrieve invocation.
type MockCall struct {
	Request Request
	Time    time.Time
}

// NewMock creates a mock that echoes the message.
func NewMock() *Mock {
	return &Mock{}
}

// WithReply returns a mock that always answers content.
func WithReply(content string) *Mock {
	return &Mock{
		RetrieveFunc: func(ctx context.Context, req Request) (*Response, error) {
			return &Response{Content: content, Provider: "mock"}, nil
		},
	}
}

// WithError returns a mock that always fails with err wrapped as a retrieval failure.
func WithError(err error) *Mock {
	return &Mock{
		RetrieveFunc: func(ctx context.Context, req Request) (*Response, error) {
			return nil, WrapError("mock", err)
		},
	}
}

// WithLatency delays every reply by d, honoring cancellation.
func WithLatency(m *Mock, d time.Duration) *Mock {
	inner := m.RetrieveFunc
	m.RetrieveFunc = func(ctx context.Context, req Request) (*Response, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, WrapError("mock", ctx.Err())
		}
		if inner != nil {
			return inner(ctx, req)
		}
		return &Response{Content: req.Message, Provider: "mock"}, nil
	}
	return m
}

// Retrieve calls RetrieveFunc and records the call.
func (m *Mock) Retrieve(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Request: req, Time: time.Now()})
	fn := m.RetrieveFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &Response{Content: req.Message, Provider: "mock"}, nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Retrieve calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Retriever at compile time.
var _ Retriever = (*Mock)(nil)
