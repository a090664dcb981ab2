package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/capture"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
	"github.com/teslashibe/go-agrivoice/pkg/localtts"
	"github.com/teslashibe/go-agrivoice/pkg/protocol"
	"github.com/teslashibe/go-agrivoice/pkg/synthesis"
	"github.com/teslashibe/go-agrivoice/pkg/tts"
)

// wire records messages written to a device.
type wire struct {
	mu   sync.Mutex
	msgs []*protocol.Message
	err  error
}

func (w *wire) write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return err
	}
	w.msgs = append(w.msgs, msg)
	return nil
}

func (w *wire) last(t *testing.T) *protocol.Message {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.msgs) == 0 {
		t.Fatal("nothing written")
	}
	return w.msgs[len(w.msgs)-1]
}

func (w *wire) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func newTestDevice() (*Device, *wire) {
	w := &wire{}
	return NewDevice("dev-1", w.write, nil), w
}

func inbound(t *testing.T, d *Device, typ protocol.MessageType, ref string, data any) protocol.MessageType {
	t.Helper()
	msg, err := protocol.NewMessage(typ, data)
	if err != nil {
		t.Fatal(err)
	}
	control, err := d.Handle(msg.WithRef(ref))
	if err != nil {
		t.Fatalf("Handle(%s): %v", typ, err)
	}
	return control
}

func TestDeviceCapture(t *testing.T) {
	d, w := newTestDevice()
	inbound(t, d, protocol.TypeHello, "", protocol.HelloData{Name: "field phone", Capture: true, Locale: "hi-IN"})

	var results []capture.Result
	var codes []string
	ended := 0
	cb := capture.Callbacks{
		OnResult: func(r capture.Result) { results = append(results, r) },
		OnError:  func(code string) { codes = append(codes, code) },
		OnEnd:    func() { ended++ },
	}

	if err := d.Start(capture.Options{Interim: true}, cb); err != nil {
		t.Fatalf("Start: %v", err)
	}
	start := w.last(t)
	if start.Type != protocol.TypeCaptureStart {
		t.Fatalf("sent %s", start.Type)
	}
	opts, _ := start.GetCaptureStart()
	if opts.Locale != "hi-IN" || !opts.Interim {
		t.Errorf("capture options = %+v", opts)
	}

	if err := d.Start(capture.Options{}, cb); !errors.Is(err, capture.ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}

	inbound(t, d, protocol.TypeCaptureResult, "", protocol.CaptureResultData{Transcript: "टमाटर", Final: true})
	inbound(t, d, protocol.TypeCaptureError, "", protocol.CaptureErrorData{Code: "no-speech"})
	inbound(t, d, protocol.TypeCaptureEnd, "", nil)

	if len(results) != 1 || results[0].Transcript != "टमाटर" || !results[0].Final {
		t.Errorf("results = %+v", results)
	}
	if len(codes) != 1 || codes[0] != "no-speech" {
		t.Errorf("codes = %v", codes)
	}
	if ended != 1 {
		t.Errorf("ended = %d", ended)
	}

	if err := d.Start(capture.Options{Locale: "en-IN"}, cb); err != nil {
		t.Fatalf("Start after end: %v", err)
	}
	if err := d.Abort(); err != nil {
		t.Fatal(err)
	}
	if w.last(t).Type != protocol.TypeCaptureAbort {
		t.Errorf("sent %s, want capture.abort", w.last(t).Type)
	}
	inbound(t, d, protocol.TypeCaptureResult, "", protocol.CaptureResultData{Transcript: "late", Final: true})
	if len(results) != 1 {
		t.Error("result delivered after abort")
	}
}

func TestDeviceCaptureUnsupported(t *testing.T) {
	d, _ := newTestDevice()
	inbound(t, d, protocol.TypeHello, "", protocol.HelloData{Capture: false})

	err := d.Start(capture.Options{}, capture.Callbacks{})
	if !errors.Is(err, capture.ErrUnsupported) {
		t.Errorf("Start = %v, want ErrUnsupported", err)
	}
}

func TestDeviceStartWriteFailure(t *testing.T) {
	d, w := newTestDevice()
	w.err = errors.New("broken pipe")

	if err := d.Start(capture.Options{}, capture.Callbacks{}); err == nil {
		t.Fatal("expected write error")
	}
	w.err = nil
	if err := d.Start(capture.Options{}, capture.Callbacks{}); err != nil {
		t.Errorf("Start after failed write: %v", err)
	}
}

func TestDeviceAudio(t *testing.T) {
	d, w := newTestDevice()

	if _, err := d.Open(nil, "audio/mpeg"); err == nil {
		t.Error("expected error for empty audio")
	}

	res, err := d.Open([]byte{1, 2, 3}, "audio/mpeg")
	if err != nil {
		t.Fatal(err)
	}
	var outcomes []error
	done := func(err error) { outcomes = append(outcomes, err) }
	if err := res.Start(done); err != nil {
		t.Fatal(err)
	}

	play := w.last(t)
	if play.Type != protocol.TypeAudioPlay || play.Ref == "" {
		t.Fatalf("sent %+v", play)
	}

	inbound(t, d, protocol.TypeAudioEnded, "other", nil)
	if len(outcomes) != 0 {
		t.Fatal("ended with another ref completed the track")
	}
	inbound(t, d, protocol.TypeAudioEnded, play.Ref, nil)
	inbound(t, d, protocol.TypeAudioEnded, play.Ref, nil)
	if len(outcomes) != 1 || outcomes[0] != nil {
		t.Errorf("outcomes = %v", outcomes)
	}
	res.Release()

	t.Run("stop", func(t *testing.T) {
		res, _ := d.Open([]byte{1}, "audio/wav")
		called := false
		res.Start(func(error) { called = true })
		ref := w.last(t).Ref

		if err := res.Stop(); err != nil {
			t.Fatal(err)
		}
		if stop := w.last(t); stop.Type != protocol.TypeAudioStop || stop.Ref != ref {
			t.Errorf("sent %+v", stop)
		}
		inbound(t, d, protocol.TypeAudioEnded, ref, nil)
		if called {
			t.Error("stopped track reported completion")
		}
	})

	t.Run("error", func(t *testing.T) {
		res, _ := d.Open([]byte{1}, "audio/wav")
		var got error
		res.Start(func(err error) { got = err })
		inbound(t, d, protocol.TypeAudioError, w.last(t).Ref, protocol.FailureData{Message: "decode failed"})

		var remote *RemoteError
		if !errors.As(got, &remote) || remote.Message != "decode failed" {
			t.Errorf("error = %v", got)
		}
		if !errors.Is(got, audio.ErrStartFailed) {
			t.Errorf("error before audio.started = %v, want ErrStartFailed", got)
		}
	})

	t.Run("error after started", func(t *testing.T) {
		res, _ := d.Open([]byte{1}, "audio/wav")
		var got error
		res.Start(func(err error) { got = err })
		ref := w.last(t).Ref
		inbound(t, d, protocol.TypeAudioStarted, ref, nil)
		inbound(t, d, protocol.TypeAudioError, ref, protocol.FailureData{Message: "output device lost"})

		var remote *RemoteError
		if !errors.As(got, &remote) {
			t.Fatalf("error = %v", got)
		}
		if errors.Is(got, audio.ErrStartFailed) {
			t.Error("failure mid-playback reported as a start failure")
		}
	})
}

// waitSent polls until the device has written a message of type typ.
func waitSent(t *testing.T, w *wire, typ protocol.MessageType) *protocol.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		for _, m := range w.msgs {
			if m.Type == typ {
				w.mu.Unlock()
				return m
			}
		}
		w.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("device never sent %s", typ)
	return nil
}

func TestDeviceRejectedAudioFallsBackToDeviceVoice(t *testing.T) {
	d, w := newTestDevice()
	inbound(t, d, protocol.TypeHello, "", protocol.HelloData{
		Name:    "field phone",
		Capture: true,
		Voices:  []protocol.Voice{{Name: "Lekha", Locale: "hi-IN"}},
	})

	manager := audio.NewManager(nil)
	o := synthesis.New(manager, tts.NewMock(), d, d)
	defer o.Close()

	var (
		mu       sync.Mutex
		outcomes []audio.Outcome
		degraded []synthesis.Degradation
	)
	ev := synthesis.Events{
		OnDegraded: func(dg synthesis.Degradation) {
			mu.Lock()
			degraded = append(degraded, dg)
			mu.Unlock()
		},
		OnDone: func(out audio.Outcome, _ error) {
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		},
	}

	req, err := synthesis.NewRequest("पौधों को सुबह पानी दें", langdetect.Hindi)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Synthesize(context.Background(), 1, req, ev); err != nil {
		t.Fatal(err)
	}

	play := waitSent(t, w, protocol.TypeAudioPlay)
	inbound(t, d, protocol.TypeAudioError, play.Ref, protocol.FailureData{Message: "autoplay blocked"})

	speak := waitSent(t, w, protocol.TypeTTSSpeak)
	data, _ := speak.GetSpeakData()
	if data.Voice != "Lekha" || data.Locale != "hi-IN" {
		t.Errorf("speak = %+v", data)
	}

	mu.Lock()
	if len(outcomes) != 0 {
		t.Errorf("turn completed before local speech: %v", outcomes)
	}
	mu.Unlock()

	inbound(t, d, protocol.TypeTTSEnd, speak.Ref, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(outcomes)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	o.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 1 || outcomes[0] != audio.OutcomeEnded {
		t.Errorf("outcomes = %v, want [ended]", outcomes)
	}
	if len(degraded) != 1 || degraded[0].Terminal {
		t.Errorf("degraded = %+v, want one non-terminal", degraded)
	}
	if s := o.Stats(); s.Rejected != 1 || s.Local != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDeviceSpeech(t *testing.T) {
	d, w := newTestDevice()

	notified := 0
	remove := d.OnVoicesChanged(func() { notified++ })
	inbound(t, d, protocol.TypeTTSVoices, "", protocol.VoicesData{Voices: []protocol.Voice{
		{Name: "Lekha", Locale: "hi-IN"},
		{Name: "Rishi", Locale: "en-IN", Default: true},
	}})
	if notified != 1 {
		t.Errorf("notified = %d", notified)
	}
	remove()
	inbound(t, d, protocol.TypeTTSVoices, "", protocol.VoicesData{Voices: []protocol.Voice{
		{Name: "Lekha", Locale: "hi-IN"},
		{Name: "Rishi", Locale: "en-IN", Default: true},
	}})
	if notified != 1 || d.listeners.Len() != 0 {
		t.Errorf("removed listener still notified: %d calls, %d registered", notified, d.listeners.Len())
	}
	voices := d.Voices()
	if len(voices) != 2 || voices[1] != (localtts.Voice{Name: "Rishi", Locale: "en-IN", Default: true}) {
		t.Errorf("voices = %+v", voices)
	}

	var got []error
	err := d.Speak(localtts.Utterance{Text: "नमस्ते", Locale: "hi-IN", Voice: voices[0], Rate: 0.9}, func(err error) {
		got = append(got, err)
	})
	if err != nil {
		t.Fatal(err)
	}
	speak := w.last(t)
	data, _ := speak.GetSpeakData()
	if speak.Type != protocol.TypeTTSSpeak || data.Voice != "Lekha" || data.Rate != 0.9 {
		t.Errorf("sent %+v %+v", speak, data)
	}

	inbound(t, d, protocol.TypeTTSEnd, speak.Ref, nil)
	if len(got) != 1 || got[0] != nil {
		t.Errorf("done = %v", got)
	}

	d.Speak(localtts.Utterance{Text: "again"}, func(err error) { got = append(got, err) })
	ref := w.last(t).Ref
	if err := d.Cancel(); err != nil {
		t.Fatal(err)
	}
	if cancel := w.last(t); cancel.Type != protocol.TypeTTSCancel || cancel.Ref != ref {
		t.Errorf("sent %+v", cancel)
	}
	inbound(t, d, protocol.TypeTTSEnd, ref, nil)
	if len(got) != 1 {
		t.Error("cancelled utterance reported completion")
	}
}

func TestDevicePingAndControl(t *testing.T) {
	d, w := newTestDevice()

	ping, _ := protocol.NewPingMessage("p1")
	if _, err := d.Handle(ping); err != nil {
		t.Fatal(err)
	}
	pong := w.last(t)
	data, _ := pong.GetPongData()
	if pong.Type != protocol.TypePong || data.ID != "p1" {
		t.Errorf("sent %+v", pong)
	}

	for _, typ := range []protocol.MessageType{protocol.TypeControlOpen, protocol.TypeControlClose, protocol.TypeControlInterrupt} {
		if got := inbound(t, d, typ, "", nil); got != typ {
			t.Errorf("control = %q, want %q", got, typ)
		}
	}
}

func TestDeviceClosed(t *testing.T) {
	d, w := newTestDevice()
	d.close()

	if err := d.Start(capture.Options{}, capture.Callbacks{}); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Start = %v", err)
	}
	msg, _ := protocol.NewMessage(protocol.TypeCaptureStop, nil)
	if err := d.Send(msg); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Send = %v", err)
	}
	if w.count() != 0 {
		t.Errorf("wrote %d messages after close", w.count())
	}
}
