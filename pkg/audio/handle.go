package audio

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle is one playback bound to a session generation.
type Handle struct {
	ID         string
	Generation uint64

	// Source labels where the audio came from ("network", "local", "silent").
	Source string

	resource Resource
	onDone   func(Outcome, error)

	mu      sync.Mutex
	settled bool
	outcome Outcome
	started time.Time
}

// NewHandle wraps r. onDone receives natural completion and failures;
// interruptions are never reported.
func NewHandle(gen uint64, source string, r Resource, onDone func(Outcome, error)) *Handle {
	return &Handle{
		ID:         uuid.NewString(),
		Generation: gen,
		Source:     source,
		resource:   r,
		onDone:     onDone,
	}
}

// Done reports whether the handle has finished and released its resource.
func (h *Handle) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settled
}

// Outcome returns how the handle finished. Valid once Done is true.
func (h *Handle) Outcome() Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

func (h *Handle) markStarted() {
	h.mu.Lock()
	h.started = time.Now()
	h.mu.Unlock()
}

// settle finishes the handle once. Later calls are no-ops.
func (h *Handle) settle(o Outcome, err error, stop, notify bool) bool {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return false
	}
	h.settled = true
	h.outcome = o
	h.mu.Unlock()

	if stop {
		h.resource.Stop()
	}
	h.resource.Release()

	if notify && o != OutcomeInterrupted && h.onDone != nil {
		h.onDone(o, err)
	}
	return true
}

// Started returns when playback began, or the zero time if it never did.
func (h *Handle) Started() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}
