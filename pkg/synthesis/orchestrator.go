// Package synthesis turns a reply into audible speech.
//
// The Orchestrator tries the network TTS provider first and plays the
// result on the audio sink. If that fails, it speaks the text with the
// on-device provider. If both fail, it plays silence. Whichever path
// runs, the playback goes through the audio Manager, so the turn always
// finishes through the same ended signal.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
	"github.com/teslashibe/go-agrivoice/pkg/localtts"
	"github.com/teslashibe/go-agrivoice/pkg/tts"
)

// Playback sources recorded on audio handles.
const (
	SourceNetwork = "network"
	SourceLocal   = "local"
	SourceSilent  = "silent"
)

// Degradation reports that the primary path was abandoned.
// Terminal is set when local synthesis failed too and silence was played.
type Degradation struct {
	Err      error
	Terminal bool
}

// Events receives the outcome of one Synthesize call. Either field may be nil.
type Events struct {
	// OnDegraded is called before falling back.
	OnDegraded func(Degradation)

	// OnDone is called once when the chosen playback ends or fails.
	// It is not called when the playback is interrupted or went stale.
	OnDone func(audio.Outcome, error)
}

// Orchestrator is the speech synthesis orchestrator.
type Orchestrator struct {
	network tts.Provider
	sink    audio.Sink
	local   localtts.Provider
	manager *audio.Manager

	config *Config
	logger *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool

	networkOK atomic.Uint64
	localOK   atomic.Uint64
	silent    atomic.Uint64
	rejected  atomic.Uint64
}

// Stats counts which path served each request.
type Stats struct {
	Network uint64 `json:"network"`
	Local   uint64 `json:"local"`
	Silent  uint64 `json:"silent"`

	// Rejected counts network audio the sink refused after it was sent.
	Rejected uint64 `json:"rejected"`
}

// New creates an orchestrator. network, sink and local may each be nil;
// the corresponding path is then skipped.
func New(manager *audio.Manager, network tts.Provider, sink audio.Sink, local localtts.Provider, opts ...Option) *Orchestrator {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	return &Orchestrator{
		network: network,
		sink:    sink,
		local:   local,
		manager: manager,
		config:  cfg,
		logger:  cfg.Logger.With("component", "synthesis.orchestrator"),
	}
}

// Synthesize speaks req for generation gen in the background.
// Cancelling ctx abandons the request without reporting OnDone.
func (o *Orchestrator) Synthesize(ctx context.Context, gen uint64, req Request, ev Events) error {
	if _, err := NewRequest(req.Text, req.Language); err != nil {
		return err
	}
	if !o.spawn(func() { o.run(ctx, gen, req, ev) }) {
		return ErrClosed
	}
	return nil
}

// Close waits for in-flight requests to settle. Callers cancel their
// contexts first.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wg.Wait()
	return nil
}

// spawn runs fn in a tracked goroutine unless the orchestrator is closed.
func (o *Orchestrator) spawn(fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
	return true
}

// Stats returns path counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Network:  o.networkOK.Load(),
		Local:    o.localOK.Load(),
		Silent:   o.silent.Load(),
		Rejected: o.rejected.Load(),
	}
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, req Request, ev Events) {
	err := o.playNetwork(ctx, gen, req, ev)
	if err == nil {
		o.networkOK.Add(1)
		return
	}
	if abandoned(ctx, err) {
		return
	}
	o.fallback(ctx, gen, req, ev, err)
}

// fallback speaks req locally after the network path failed with err,
// and plays silence if that fails too.
func (o *Orchestrator) fallback(ctx context.Context, gen uint64, req Request, ev Events, err error) {
	logger := o.logger.With("generation", gen, "language", req.Language)

	logger.Warn("network synthesis failed, using local voice", "kind", "SynthesisFailure", "error", err)
	if ev.OnDegraded != nil {
		ev.OnDegraded(Degradation{Err: err})
	}

	lerr := o.playLocal(ctx, gen, req, ev)
	if lerr == nil {
		o.localOK.Add(1)
		return
	}
	if abandoned(ctx, lerr) {
		return
	}

	logger.Warn("local synthesis failed, playing silence", "kind", "SynthesisFailure", "error", lerr)
	if ev.OnDegraded != nil {
		ev.OnDegraded(Degradation{Err: errors.Join(err, lerr), Terminal: true})
	}

	h := audio.NewHandle(gen, SourceSilent, audio.Silence{}, ev.OnDone)
	if err := o.manager.Play(h); err != nil {
		logger.Debug("silent playback rejected", "error", err)
		return
	}
	o.silent.Add(1)
}

// playNetwork fetches audio and starts it on the sink.
func (o *Orchestrator) playNetwork(ctx context.Context, gen uint64, req Request, ev Events) error {
	if o.config.PreferLocal {
		return fmt.Errorf("%w: local voice preferred", ErrNoNetwork)
	}
	if o.network == nil || o.sink == nil {
		return ErrNoNetwork
	}

	nctx := ctx
	if o.config.NetworkTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, o.config.NetworkTimeout)
		defer cancel()
	}

	res, err := o.network.Synthesize(nctx, tts.Request{Text: req.Text, Language: req.Language})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r, err := o.sink.Open(res.Audio, res.MIME)
	if err != nil {
		return fmt.Errorf("%w: %w", audio.ErrStartFailed, err)
	}

	o.logger.Debug("network audio ready", "provider", res.Provider, "bytes", len(res.Audio), "latency_ms", res.LatencyMs)
	return o.manager.Play(audio.NewHandle(gen, SourceNetwork, r, o.networkDone(ctx, gen, req, ev)))
}

// networkDone completes a network handle. Sinks that learn about a start
// failure only after Start returned (a remote device rejecting autoplay)
// report ErrStartFailed; that falls back like a synchronous start failure.
func (o *Orchestrator) networkDone(ctx context.Context, gen uint64, req Request, ev Events) func(audio.Outcome, error) {
	return func(out audio.Outcome, err error) {
		if out == audio.OutcomeFailed && errors.Is(err, audio.ErrStartFailed) && ctx.Err() == nil {
			o.rejected.Add(1)
			if o.spawn(func() { o.fallback(ctx, gen, req, ev, err) }) {
				return
			}
		}
		if ev.OnDone != nil {
			ev.OnDone(out, err)
		}
	}
}

// playLocal speaks on the device with the best matching voice.
func (o *Orchestrator) playLocal(ctx context.Context, gen uint64, req Request, ev Events) error {
	if o.local == nil {
		return ErrLocalUnavailable
	}

	voices := localtts.WaitForVoices(ctx, o.local, o.config.VoiceWait)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	voice, _ := localtts.SelectVoice(voices, req.Language)

	locale := voice.Locale
	if locale == "" {
		locale = langdetect.EngineLocale(req.Language)
	}

	u := localtts.Utterance{
		Text:   req.Text,
		Locale: locale,
		Voice:  voice,
		Rate:   o.config.LocalRate,
	}
	o.logger.Debug("speaking locally", "voice", voice.Name, "locale", locale, "catalog", len(voices))

	return o.manager.Play(audio.NewHandle(gen, SourceLocal, &utterance{provider: o.local, u: u}, ev.OnDone))
}

// abandoned reports whether the request was cancelled or superseded.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, audio.ErrStale)
}
