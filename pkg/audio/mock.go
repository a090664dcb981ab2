package audio

import (
	"sync"
)

// MockSink implements Sink for testing.
type MockSink struct {
	// OpenFunc is called when Open is invoked. If nil, a MockResource is returned.
	OpenFunc func(data []byte, mime string) (Resource, error)

	mu        sync.Mutex
	resources []*MockResource
}

// NewMockSink creates a mock sink that opens MockResources.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Open calls OpenFunc or returns a new MockResource.
func (s *MockSink) Open(data []byte, mime string) (Resource, error) {
	if s.OpenFunc != nil {
		return s.OpenFunc(data, mime)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	r := NewMockResource()
	r.Data = data
	r.MIME = mime

	s.mu.Lock()
	s.resources = append(s.resources, r)
	s.mu.Unlock()
	return r, nil
}

// Resources returns every resource opened so far.
func (s *MockSink) Resources() []*MockResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*MockResource, len(s.resources))
	copy(out, s.resources)
	return out
}

// Last returns the most recently opened resource, or nil.
func (s *MockSink) Last() *MockResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.resources) == 0 {
		return nil
	}
	return s.resources[len(s.resources)-1]
}

// MockResource implements Resource; tests end it with Finish.
type MockResource struct {
	Data []byte
	MIME string

	// StartErr, if set, is returned from Start.
	StartErr error

	mu       sync.Mutex
	done     func(error)
	started  bool
	stopped  bool
	released int
}

// NewMockResource creates a resource that starts successfully.
func NewMockResource() *MockResource {
	return &MockResource{}
}

// Start records the start and keeps done for Finish.
func (r *MockResource) Start(done func(error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartErr != nil {
		return r.StartErr
	}
	r.started = true
	r.done = done
	return nil
}

// Stop records the stop.
func (r *MockResource) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

// Release records the release.
func (r *MockResource) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released++
}

// Finish simulates the end of playback: nil for natural end, or an error.
// It is delivered even after Stop, like a late audio event.
func (r *MockResource) Finish(err error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		done(err)
	}
}

// Started reports whether Start succeeded.
func (r *MockResource) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Stopped reports whether Stop was called.
func (r *MockResource) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Released returns how many times Release was called.
func (r *MockResource) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Verify mocks implement their interfaces at compile time.
var (
	_ Sink     = (*MockSink)(nil)
	_ Resource = (*MockResource)(nil)
)
