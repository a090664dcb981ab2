package gateway

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/capture"
	"github.com/teslashibe/go-agrivoice/pkg/localtts"
	"github.com/teslashibe/go-agrivoice/pkg/protocol"
)

// Device is one connected phone or browser. It provides speech capture,
// audio playback and on-device synthesis to a voice controller by relaying
// them over the device's websocket.
type Device struct {
	ID        string
	Connected time.Time

	write  func([]byte) error
	logger *slog.Logger

	mu        sync.Mutex
	name      string
	lastSeen  time.Time
	closed    bool
	captureOK bool
	locale    string

	capturing bool
	captureCB capture.Callbacks

	tracks map[string]*playback

	utterance string
	spoken    func(error)

	voices    []localtts.Voice
	listeners localtts.Listeners

	received atomic.Uint64
	sent     atomic.Uint64
}

// NewDevice creates a device that writes encoded messages with write.
func NewDevice(id string, write func([]byte) error, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Device{
		ID:        id,
		Connected: now,
		write:     write,
		logger:    logger.With("component", "gateway.device", "device", id),
		lastSeen:  now,
		captureOK: true,
		tracks:    make(map[string]*playback),
	}
}

// Send writes msg to the device.
func (d *Device) Send(msg *protocol.Message) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrDisconnected
	}

	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := d.write(data); err != nil {
		return err
	}
	d.sent.Add(1)
	return nil
}

func (d *Device) sendType(t protocol.MessageType, ref string) error {
	msg, err := protocol.NewMessage(t, nil)
	if err != nil {
		return err
	}
	return d.Send(msg.WithRef(ref))
}

// Name returns the name announced in the device hello.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// LastSeen returns when the device last sent a message.
func (d *Device) LastSeen() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSeen
}

// Locale returns the recognition locale announced in the device hello.
func (d *Device) Locale() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locale
}

// =============================================================================
// capture.Engine
// =============================================================================

// Start asks the device to begin recognition.
func (d *Device) Start(opts capture.Options, cb capture.Callbacks) error {
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return ErrDisconnected
	case !d.captureOK:
		d.mu.Unlock()
		return capture.ErrUnsupported
	case d.capturing:
		d.mu.Unlock()
		return capture.ErrAlreadyStarted
	}
	d.capturing = true
	d.captureCB = cb
	locale := opts.Locale
	if locale == "" {
		locale = d.locale
	}
	d.mu.Unlock()

	msg, err := protocol.NewCaptureStartMessage(locale, opts.Interim)
	if err == nil {
		err = d.Send(msg)
	}
	if err != nil {
		d.mu.Lock()
		d.capturing = false
		d.captureCB = capture.Callbacks{}
		d.mu.Unlock()
		return err
	}
	return nil
}

// Stop asks the device to finish recognition. Pending results may still arrive.
func (d *Device) Stop() error {
	d.mu.Lock()
	d.capturing = false
	d.mu.Unlock()
	return d.sendType(protocol.TypeCaptureStop, "")
}

// Abort asks the device to drop recognition; later results are discarded.
func (d *Device) Abort() error {
	d.mu.Lock()
	d.capturing = false
	d.captureCB = capture.Callbacks{}
	d.mu.Unlock()
	return d.sendType(protocol.TypeCaptureAbort, "")
}

// =============================================================================
// audio.Sink
// =============================================================================

// Open prepares audio for playback on the device.
func (d *Device) Open(data []byte, mime string) (audio.Resource, error) {
	if len(data) == 0 {
		return nil, audio.ErrEmptyAudio
	}
	return &track{device: d, ref: uuid.NewString(), data: data, mime: mime}, nil
}

// playback is a track awaiting its outcome from the device.
type playback struct {
	done    func(error)
	started bool
}

// track is audio sent to the device for playback.
type track struct {
	device *Device
	ref    string
	data   []byte
	mime   string
}

func (t *track) Start(done func(error)) error {
	d := t.device
	d.mu.Lock()
	d.tracks[t.ref] = &playback{done: done}
	d.mu.Unlock()

	msg, err := protocol.NewAudioPlayMessage(t.ref, t.data, t.mime)
	if err == nil {
		err = d.Send(msg)
	}
	if err != nil {
		d.forgetTrack(t.ref)
		return err
	}
	return nil
}

func (t *track) Stop() error {
	t.device.forgetTrack(t.ref)
	return t.device.sendType(protocol.TypeAudioStop, t.ref)
}

func (t *track) Release() {
	t.device.forgetTrack(t.ref)
	t.data = nil
}

func (d *Device) forgetTrack(ref string) *playback {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.tracks[ref]
	delete(d.tracks, ref)
	return p
}

func (d *Device) markStarted(ref string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.tracks[ref]; p != nil {
		p.started = true
	}
}

// =============================================================================
// localtts.Provider
// =============================================================================

// Voices returns the device voice catalog.
func (d *Device) Voices() []localtts.Voice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]localtts.Voice(nil), d.voices...)
}

// OnVoicesChanged registers a listener for catalog updates.
func (d *Device) OnVoicesChanged(fn func()) func() {
	return d.listeners.Add(fn)
}

// Speak asks the device to speak u with its own synthesizer.
func (d *Device) Speak(u localtts.Utterance, done func(error)) error {
	ref := uuid.NewString()
	d.mu.Lock()
	d.utterance = ref
	d.spoken = done
	d.mu.Unlock()

	msg, err := protocol.NewSpeakMessage(ref, protocol.SpeakData{
		Text:   u.Text,
		Locale: u.Locale,
		Voice:  u.Voice.Name,
		Rate:   u.Rate,
	})
	if err == nil {
		err = d.Send(msg)
	}
	if err != nil {
		d.takeUtterance(ref)
		return err
	}
	return nil
}

// Cancel stops the utterance in progress.
func (d *Device) Cancel() error {
	d.mu.Lock()
	ref := d.utterance
	d.utterance = ""
	d.spoken = nil
	d.mu.Unlock()
	return d.sendType(protocol.TypeTTSCancel, ref)
}

func (d *Device) takeUtterance(ref string) func(error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ref == "" || ref != d.utterance {
		return nil
	}
	done := d.spoken
	d.utterance = ""
	d.spoken = nil
	return done
}

// =============================================================================
// Inbound messages
// =============================================================================

// Handle applies one inbound message. Control messages are returned to the
// caller, which owns the session; everything else is consumed.
func (d *Device) Handle(msg *protocol.Message) (control protocol.MessageType, err error) {
	d.received.Add(1)
	d.mu.Lock()
	d.lastSeen = time.Now()
	d.mu.Unlock()

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := msg.GetHelloData()
		if err != nil {
			return "", err
		}
		d.mu.Lock()
		d.name = hello.Name
		d.captureOK = hello.Capture
		d.locale = hello.Locale
		d.mu.Unlock()
		d.logger.Info("device hello", "name", hello.Name, "capture", hello.Capture, "voices", len(hello.Voices))
		d.setVoices(hello.Voices)

	case protocol.TypeCaptureResult:
		r, err := msg.GetCaptureResult()
		if err != nil {
			return "", err
		}
		if cb := d.callbacks(); cb.OnResult != nil {
			cb.OnResult(capture.Result{Transcript: r.Transcript, Final: r.Final, Locale: r.Locale, Index: r.Index})
		}

	case protocol.TypeCaptureError:
		e, err := msg.GetCaptureError()
		if err != nil {
			return "", err
		}
		if cb := d.callbacks(); cb.OnError != nil {
			cb.OnError(e.Code)
		}

	case protocol.TypeCaptureEnd:
		d.mu.Lock()
		d.capturing = false
		cb := d.captureCB
		d.mu.Unlock()
		if cb.OnEnd != nil {
			cb.OnEnd()
		}

	case protocol.TypeAudioStarted:
		d.markStarted(msg.Ref)

	case protocol.TypeAudioEnded:
		if p := d.forgetTrack(msg.Ref); p != nil {
			p.done(nil)
		}

	case protocol.TypeAudioError:
		f, _ := msg.GetFailure()
		if p := d.forgetTrack(msg.Ref); p != nil {
			err := remoteError("playback", f)
			if !p.started {
				// Never played: autoplay rejected or undecodable audio.
				err = fmt.Errorf("%w: %w", audio.ErrStartFailed, err)
			}
			p.done(err)
		}

	case protocol.TypeTTSEnd:
		if done := d.takeUtterance(msg.Ref); done != nil {
			done(nil)
		}

	case protocol.TypeTTSError:
		f, _ := msg.GetFailure()
		if done := d.takeUtterance(msg.Ref); done != nil {
			done(remoteError("speech", f))
		}

	case protocol.TypeTTSVoices:
		v, err := msg.GetVoices()
		if err != nil {
			return "", err
		}
		d.setVoices(v.Voices)

	case protocol.TypePing:
		ping, _ := msg.GetPingData()
		id, ts := "", msg.Timestamp
		if ping != nil {
			id = ping.ID
			if ping.Timestamp != 0 {
				ts = ping.Timestamp
			}
		}
		pong, err := protocol.NewPongMessage(id, ts, time.Now().UnixMilli())
		if err != nil {
			return "", err
		}
		return "", d.Send(pong)

	case protocol.TypePong:

	case protocol.TypeControlOpen, protocol.TypeControlClose, protocol.TypeControlInterrupt:
		return msg.Type, nil

	default:
		d.logger.Debug("unknown message type", "type", msg.Type)
	}
	return "", nil
}

func (d *Device) callbacks() capture.Callbacks {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captureCB
}

func (d *Device) setVoices(voices []protocol.Voice) {
	catalog := make([]localtts.Voice, 0, len(voices))
	for _, v := range voices {
		catalog = append(catalog, localtts.Voice{Name: v.Name, Locale: v.Locale, Default: v.Default})
	}
	d.mu.Lock()
	d.voices = catalog
	d.mu.Unlock()

	d.listeners.Notify()
}

// close marks the device gone. Pending playback and speech callbacks are
// dropped; the controller is shut down by the gateway.
func (d *Device) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.capturing = false
	d.captureCB = capture.Callbacks{}
	d.tracks = make(map[string]*playback)
	d.spoken = nil
	d.utterance = ""
}

func remoteError(op string, f *protocol.FailureData) error {
	msg := "unknown error"
	if f != nil && f.Message != "" {
		msg = f.Message
	}
	return &RemoteError{Op: op, Message: msg}
}

// Verify Device implements the capabilities at compile time.
var (
	_ capture.Engine         = (*Device)(nil)
	_ audio.Sink             = (*Device)(nil)
	_ localtts.Provider      = (*Device)(nil)
	_ localtts.VoiceNotifier = (*Device)(nil)
)
