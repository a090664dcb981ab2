package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/capture"
	"github.com/teslashibe/go-agrivoice/pkg/chat"
	"github.com/teslashibe/go-agrivoice/pkg/synthesis"
)

// ErrShutdown is returned by intents sent after Shutdown.
var ErrShutdown = errors.New("voice: controller shut down")

// Synthesizer speaks a reply in the background and reports through ev.
type Synthesizer interface {
	Synthesize(ctx context.Context, gen uint64, req synthesis.Request, ev synthesis.Events) error
	Close() error
}

var _ Synthesizer = (*synthesis.Orchestrator)(nil)

// Listener observes session changes. Listeners run on the controller loop
// and must not call Open, Close, Interrupt or Shutdown synchronously.
type Listener func(Session)

type intent struct {
	ev   Event
	done chan struct{}
}

// Controller runs the conversation loop for one session.
type Controller struct {
	config Config
	logger *slog.Logger

	adapter   *capture.Adapter
	retriever chat.Retriever
	synth     Synthesizer
	manager   *audio.Manager
	metrics   *MetricsCollector

	events  chan Event
	intents chan intent
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	// Loop-owned.
	session Session
	pending context.Context
	cancel  context.CancelFunc
	restart *time.Timer

	mu        sync.RWMutex
	snapshot  Session
	listeners []Listener
}

// New creates a controller and starts its loop. engine, retriever, synth
// and manager are required.
func New(engine capture.Engine, retriever chat.Retriever, synth Synthesizer, manager *audio.Manager, opts ...Option) (*Controller, error) {
	if engine == nil || retriever == nil || synth == nil || manager == nil {
		return nil, errors.New("voice: engine, retriever, synthesizer and manager are required")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller{
		config:    cfg,
		logger:    cfg.Logger.With("component", "voice.controller"),
		retriever: retriever,
		synth:     synth,
		manager:   manager,
		metrics:   NewMetricsCollector(),
		events:    make(chan Event, cfg.QueueSize),
		intents:   make(chan intent),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	c.adapter = capture.NewAdapter(engine, c.onCapture, capture.WithLogger(cfg.Logger))

	go c.run()
	return c, nil
}

// Open starts a session with a fresh ID. It is a no-op when already open.
func (c *Controller) Open() error {
	return c.do(Open{ID: uuid.NewString()})
}

// Close ends the session: capture is aborted, playback hard-stopped and
// pending requests cancelled.
func (c *Controller) Close() error {
	return c.do(Close{})
}

// Interrupt stops the current reply and listens again, or resumes a
// session halted by a capture error.
func (c *Controller) Interrupt() error {
	return c.do(Interrupt{})
}

// Snapshot returns a copy of the session.
func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Metrics returns the turn metrics collector.
func (c *Controller) Metrics() *MetricsCollector {
	return c.metrics
}

// OnChange registers a listener for session changes.
func (c *Controller) OnChange(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Shutdown closes the session, stops the loop and waits for background
// work to settle. It is safe to call more than once.
func (c *Controller) Shutdown() error {
	c.once.Do(func() {
		close(c.quit)
	})
	<-c.stopped
	c.wg.Wait()
	return c.synth.Close()
}

// Done is closed when the loop has stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.stopped
}

func (c *Controller) do(ev Event) error {
	in := intent{ev: ev, done: make(chan struct{})}
	select {
	case c.intents <- in:
	case <-c.quit:
		return ErrShutdown
	}
	select {
	case <-in.done:
		return nil
	case <-c.stopped:
		return ErrShutdown
	}
}

// post queues an asynchronous event. Safe from any goroutine.
func (c *Controller) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Controller) run() {
	defer close(c.stopped)
	defer c.dispose()

	for {
		select {
		case in := <-c.intents:
			c.apply(in.ev)
			close(in.done)
		case ev := <-c.events:
			c.apply(ev)
		case <-c.quit:
			return
		}
	}
}

// dispose is the single teardown path for Shutdown.
func (c *Controller) dispose() {
	c.apply(Close{})
	if err := c.adapter.Close(); err != nil {
		c.logger.Debug("adapter close failed", "error", err)
	}
}

func (c *Controller) apply(ev Event) {
	prev := c.session
	next, effects := Reduce(prev, ev)
	c.session = next

	if gen, ok := Generation(ev); ok && gen != prev.Generation {
		c.logger.Debug("stale event dropped", "event", eventName(ev), "generation", gen, "current", prev.Generation)
	}
	c.record(prev, next, ev)

	for _, eff := range effects {
		c.execute(eff)
	}

	if next != prev {
		c.publish(c.session)
	}
}

func (c *Controller) record(prev, next Session, ev Event) {
	busy := func(s Session) bool {
		return s.Open && (s.Status == StatusThinking || s.Status == StatusSpeaking)
	}
	switch {
	case prev.Status == StatusThinking && next.Status == StatusSpeaking:
		c.metrics.MarkResponse()
	case busy(prev) && !busy(next):
		_, interrupted := ev.(Interrupt)
		if _, closed := ev.(Close); closed {
			interrupted = true
		}
		_, failed := ev.(ResponseFailed)
		c.metrics.MarkDone(interrupted, failed)
		if !interrupted {
			m := c.metrics.Average()
			c.logger.Debug("turn done", "latency", m.FormatLatency())
		}
	}
	if next.Status != prev.Status || next.Open != prev.Open {
		c.logger.Info("session",
			"id", next.ID,
			"status", next.Status.String(),
			"generation", next.Generation,
			"event", eventName(ev),
		)
	}
}

func (c *Controller) execute(eff Effect) {
	switch eff := eff.(type) {
	case StartCapture:
		c.stopRestart()
		if _, err := c.adapter.Start(eff.Gen, c.config.Locale); err != nil {
			c.logger.Warn("capture start failed", "error", err, "generation", eff.Gen)
			c.apply(CaptureStartFailed{Gen: eff.Gen, Err: err})
		}

	case StopCapture:
		if err := c.adapter.Stop(); err != nil {
			c.logger.Debug("capture stop failed", "error", err)
		}

	case AbortCapture:
		if err := c.adapter.Abort(); err != nil {
			c.logger.Debug("capture abort failed", "error", err)
		}

	case Retrieve:
		c.metrics.MarkTranscript()
		c.retrieve(eff)

	case Synthesize:
		c.metrics.MarkSpeaking()
		c.synthesize(eff)

	case StopPlayback:
		c.manager.Fence(eff.Gen)

	case ScheduleRestart:
		c.stopRestart()
		delay := c.config.RestartDelay
		gen := eff.Gen
		c.restart = time.AfterFunc(delay, func() {
			c.post(RestartDue{Gen: gen})
		})

	case CancelPending:
		if c.cancel != nil {
			c.cancel()
			c.pending, c.cancel = nil, nil
		}
		c.stopRestart()
	}
}

func (c *Controller) pendingContext() context.Context {
	if c.pending == nil {
		c.pending, c.cancel = context.WithCancel(context.Background())
	}
	return c.pending
}

func (c *Controller) retrieve(eff Retrieve) {
	ctx := c.pendingContext()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		resp, err := c.retriever.Retrieve(ctx, chat.Request{Message: eff.Message, Language: eff.Language})
		if ctx.Err() != nil {
			return
		}
		if err == nil && resp == nil {
			err = chat.WrapError("retriever", chat.ErrEmptyResponse)
		}
		if err != nil {
			c.logger.Warn("retrieval failed", "error", err, "generation", eff.Gen)
			c.post(ResponseFailed{Gen: eff.Gen, Err: err})
			return
		}
		c.logger.Debug("reply received", "generation", eff.Gen, "provider", resp.Provider, "latency_ms", resp.LatencyMs)
		c.post(ResponseReceived{Gen: eff.Gen, Content: resp.Content})
	}()
}

func (c *Controller) synthesize(eff Synthesize) {
	gen := eff.Gen
	req, err := synthesis.NewRequest(eff.Text, eff.Language)
	if err == nil {
		err = c.synth.Synthesize(c.pendingContext(), gen, req, synthesis.Events{
			OnDegraded: func(d synthesis.Degradation) {
				c.post(SynthesisDegraded{Gen: gen, Err: d.Err, Terminal: d.Terminal})
			},
			OnDone: func(o audio.Outcome, err error) {
				c.post(PlaybackFinished{Gen: gen, Outcome: o, Err: err})
			},
		})
	}
	if err != nil {
		c.logger.Warn("synthesis rejected", "error", err, "generation", gen)
		c.apply(SynthesisDegraded{Gen: gen, Err: err, Terminal: true})
		c.apply(PlaybackFinished{Gen: gen, Outcome: audio.OutcomeFailed, Err: err})
	}
}

func (c *Controller) stopRestart() {
	if c.restart != nil {
		c.restart.Stop()
		c.restart = nil
	}
}

func (c *Controller) publish(s Session) {
	c.mu.Lock()
	c.snapshot = s
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func (c *Controller) onCapture(ev capture.Event) {
	switch ev.Kind {
	case capture.EventResult:
		c.post(TranscriptReceived{
			Gen:    ev.Generation,
			Text:   ev.Result.Transcript,
			Final:  ev.Result.Final,
			Locale: ev.Result.Locale,
		})
	case capture.EventError:
		c.post(CaptureFailed{Gen: ev.Generation, Code: ev.Code})
	case capture.EventEnd:
		c.post(CaptureEnded{Gen: ev.Generation})
	}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case Open:
		return "open"
	case Close:
		return "close"
	case Interrupt:
		return "interrupt"
	case TranscriptReceived:
		return "transcript"
	case CaptureFailed:
		return "capture_error"
	case CaptureEnded:
		return "capture_end"
	case CaptureStartFailed:
		return "capture_start_failed"
	case RestartDue:
		return "restart"
	case ResponseReceived:
		return "response"
	case ResponseFailed:
		return "response_failed"
	case PlaybackFinished:
		return "playback_finished"
	case SynthesisDegraded:
		return "synthesis_degraded"
	default:
		return "unknown"
	}
}
