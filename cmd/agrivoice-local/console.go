package main

import (
	"sync"

	"github.com/teslashibe/go-agrivoice/pkg/capture"
)

// consoleEngine is a capture.Engine fed by typed lines. Each line becomes
// one final result while recognition is running.
type consoleEngine struct {
	mu      sync.Mutex
	running bool
	locale  string
	cb      capture.Callbacks
	index   int
}

func newConsoleEngine() *consoleEngine {
	return &consoleEngine{}
}

func (e *consoleEngine) Start(opts capture.Options, cb capture.Callbacks) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return capture.ErrAlreadyStarted
	}
	e.running = true
	e.locale = opts.Locale
	e.cb = cb
	e.index = 0
	return nil
}

func (e *consoleEngine) Stop() error {
	return e.end()
}

func (e *consoleEngine) Abort() error {
	return e.end()
}

func (e *consoleEngine) end() error {
	e.mu.Lock()
	e.running = false
	e.cb = capture.Callbacks{}
	e.mu.Unlock()
	return nil
}

// Listening reports whether a line would be delivered.
func (e *consoleEngine) Listening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Say delivers text as a final result. It reports false when recognition
// is not running and the line was dropped.
func (e *consoleEngine) Say(text string) bool {
	e.mu.Lock()
	if !e.running || e.cb.OnResult == nil {
		e.mu.Unlock()
		return false
	}
	r := capture.Result{Transcript: text, Final: true, Locale: e.locale, Index: e.index}
	e.index++
	fn := e.cb.OnResult
	e.mu.Unlock()

	fn(r)
	return true
}

var _ capture.Engine = (*consoleEngine)(nil)
