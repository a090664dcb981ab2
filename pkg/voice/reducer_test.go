package voice

import (
	"errors"
	"reflect"
	"testing"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/capture"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

func listening(gen uint64) Session {
	return Session{ID: "s1", Generation: gen, Open: true, Status: StatusListening}
}

func thinking(gen uint64) Session {
	s := listening(gen)
	s.Status = StatusThinking
	s.Processing = true
	s.Language = langdetect.English
	return s
}

func speaking(gen uint64) Session {
	s := thinking(gen)
	s.Status = StatusSpeaking
	return s
}

func TestReduceOpen(t *testing.T) {
	s, effects := Reduce(Session{Generation: 4}, Open{ID: "abc"})
	want := Session{ID: "abc", Generation: 5, Open: true, Status: StatusListening}
	if s != want {
		t.Fatalf("session = %+v, want %+v", s, want)
	}
	if !reflect.DeepEqual(effects, []Effect{StartCapture{Gen: 5}}) {
		t.Errorf("effects = %#v", effects)
	}

	again, effects := Reduce(s, Open{ID: "other"})
	if again != s || effects != nil {
		t.Errorf("second open changed state: %+v %#v", again, effects)
	}
}

func TestReduceClose(t *testing.T) {
	s := speaking(3)
	s.Transcript = "hello"
	s.LastError = &SessionError{Kind: RetrievalFailure}

	next, effects := Reduce(s, Close{})
	if next != (Session{Generation: 4}) {
		t.Errorf("session not reset: %+v", next)
	}
	want := []Effect{AbortCapture{}, StopPlayback{Gen: 4}, CancelPending{}}
	if !reflect.DeepEqual(effects, want) {
		t.Errorf("effects = %#v, want %#v", effects, want)
	}
}

func TestReduceFinalTranscript(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		locale string
		want   langdetect.Code
	}{
		{"english", "how do I grow tomatoes", "en-US", langdetect.English},
		{"devanagari without locale", "टमाटर कैसे उगाएं", "", langdetect.Hindi},
		{"romanized hindi with locale", "tamatar kaise ugayein", "hi-IN", langdetect.Hindi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, effects := Reduce(listening(1), TranscriptReceived{Gen: 1, Text: tt.text, Final: true, Locale: tt.locale})
			if s.Status != StatusThinking || !s.Processing {
				t.Fatalf("status = %v processing = %v", s.Status, s.Processing)
			}
			if s.Language != tt.want {
				t.Errorf("language = %q, want %q", s.Language, tt.want)
			}
			want := []Effect{StopCapture{}, Retrieve{Gen: 1, Message: tt.text, Language: tt.want}}
			if !reflect.DeepEqual(effects, want) {
				t.Errorf("effects = %#v", effects)
			}
		})
	}
}

func TestReduceFinalTranscriptClearsError(t *testing.T) {
	s := listening(2)
	s.LastError = &SessionError{Kind: RetrievalFailure, Err: errors.New("backend down")}

	interim, _ := Reduce(s, TranscriptReceived{Gen: 2, Text: "how", Final: false})
	if interim.LastError == nil {
		t.Errorf("interim result cleared the error")
	}

	next, _ := Reduce(interim, TranscriptReceived{Gen: 2, Text: "how do I water wheat", Final: true})
	if next.LastError != nil {
		t.Errorf("last error = %v after new question", next.LastError)
	}
}

func TestReduceInterimTranscript(t *testing.T) {
	s, effects := Reduce(listening(1), TranscriptReceived{Gen: 1, Text: "how do", Final: false})
	if s.Interim != "how do" || s.Status != StatusListening {
		t.Errorf("session = %+v", s)
	}
	if effects != nil {
		t.Errorf("interim produced effects: %#v", effects)
	}
}

func TestReduceDuplicateFinal(t *testing.T) {
	s := listening(1)
	s.Processing = true
	next, effects := Reduce(s, TranscriptReceived{Gen: 1, Text: "again", Final: true})
	if next != s || effects != nil {
		t.Errorf("duplicate final accepted: %+v %#v", next, effects)
	}

	next, effects = Reduce(thinking(1), TranscriptReceived{Gen: 1, Text: "late", Final: true})
	if next != thinking(1) || effects != nil {
		t.Errorf("final while thinking accepted: %+v %#v", next, effects)
	}
}

func TestReduceStaleEvents(t *testing.T) {
	events := []Event{
		TranscriptReceived{Gen: 1, Text: "old", Final: true},
		CaptureFailed{Gen: 1, Code: "not-allowed"},
		CaptureEnded{Gen: 1},
		RestartDue{Gen: 1},
		ResponseReceived{Gen: 1, Content: "old reply"},
		ResponseFailed{Gen: 1, Err: errors.New("x")},
		PlaybackFinished{Gen: 1, Outcome: audio.OutcomeEnded},
		SynthesisDegraded{Gen: 1, Terminal: true},
	}
	for _, s := range []Session{listening(2), thinking(2), speaking(2), {Generation: 1}} {
		for _, ev := range events {
			next, effects := Reduce(s, ev)
			if next != s || effects != nil {
				t.Errorf("%s on %v: state changed to %+v, effects %#v", eventName(ev), s.Status, next, effects)
			}
		}
	}
}

func TestReduceResponse(t *testing.T) {
	t.Run("speakable", func(t *testing.T) {
		s, effects := Reduce(thinking(2), ResponseReceived{Gen: 2, Content: "**Tomatoes** need full sun."})
		if s.Status != StatusSpeaking || !s.Processing {
			t.Fatalf("session = %+v", s)
		}
		if s.ResponseText != "Tomatoes need full sun." {
			t.Errorf("response text = %q", s.ResponseText)
		}
		want := []Effect{Synthesize{Gen: 2, Text: "Tomatoes need full sun.", Language: langdetect.English}}
		if !reflect.DeepEqual(effects, want) {
			t.Errorf("effects = %#v", effects)
		}
	})

	t.Run("nothing to say", func(t *testing.T) {
		s, effects := Reduce(thinking(2), ResponseReceived{Gen: 2, Content: "  "})
		if s.Status != StatusListening || s.Processing {
			t.Fatalf("session = %+v", s)
		}
		if !reflect.DeepEqual(effects, []Effect{StartCapture{Gen: 2}}) {
			t.Errorf("effects = %#v", effects)
		}
	})

	t.Run("failure", func(t *testing.T) {
		cause := errors.New("backend down")
		s, effects := Reduce(thinking(2), ResponseFailed{Gen: 2, Err: cause})
		if s.Status != StatusListening || s.Processing {
			t.Fatalf("session = %+v", s)
		}
		if s.LastError == nil || s.LastError.Kind != RetrievalFailure || !s.LastError.Recoverable() {
			t.Errorf("last error = %v", s.LastError)
		}
		if !errors.Is(s.LastError, cause) {
			t.Error("last error does not wrap cause")
		}
		if !reflect.DeepEqual(effects, []Effect{StartCapture{Gen: 2}}) {
			t.Errorf("effects = %#v", effects)
		}
	})
}

func TestReducePlaybackFinished(t *testing.T) {
	for _, outcome := range []audio.Outcome{audio.OutcomeEnded, audio.OutcomeFailed} {
		s, effects := Reduce(speaking(3), PlaybackFinished{Gen: 3, Outcome: outcome})
		if s.Status != StatusListening || s.Processing {
			t.Errorf("%v: session = %+v", outcome, s)
		}
		if !reflect.DeepEqual(effects, []Effect{StartCapture{Gen: 3}}) {
			t.Errorf("%v: effects = %#v", outcome, effects)
		}
	}

	s, effects := Reduce(speaking(3), PlaybackFinished{Gen: 3, Outcome: audio.OutcomeInterrupted})
	if s != speaking(3) || effects != nil {
		t.Errorf("interrupted outcome advanced the turn: %+v", s)
	}
}

func TestReduceInterrupt(t *testing.T) {
	for _, s := range []Session{thinking(5), speaking(5)} {
		t.Run(s.Status.String(), func(t *testing.T) {
			next, effects := Reduce(s, Interrupt{})
			if next.Generation != 6 || next.Status != StatusListening || next.Processing {
				t.Fatalf("session = %+v", next)
			}
			want := []Effect{StopPlayback{Gen: 6}, CancelPending{}, StartCapture{Gen: 6}}
			if !reflect.DeepEqual(effects, want) {
				t.Errorf("effects = %#v", effects)
			}
		})
	}

	t.Run("resume halted", func(t *testing.T) {
		s := listening(2)
		s.Status = StatusIdle
		s.LastError = &SessionError{Kind: CaptureFatal}
		next, effects := Reduce(s, Interrupt{})
		if next.Status != StatusListening || next.LastError != nil || next.Generation != 3 {
			t.Fatalf("session = %+v", next)
		}
		if !reflect.DeepEqual(effects, []Effect{CancelPending{}, StartCapture{Gen: 3}}) {
			t.Errorf("effects = %#v", effects)
		}
	})

	t.Run("closed", func(t *testing.T) {
		next, effects := Reduce(Session{Generation: 2}, Interrupt{})
		if next != (Session{Generation: 2}) || effects != nil {
			t.Errorf("interrupt on closed session: %+v %#v", next, effects)
		}
	})

	t.Run("listening", func(t *testing.T) {
		next, effects := Reduce(listening(2), Interrupt{})
		if next != listening(2) || effects != nil {
			t.Errorf("interrupt while listening: %+v %#v", next, effects)
		}
	})
}

func TestReduceCaptureErrors(t *testing.T) {
	t.Run("no-speech schedules one restart", func(t *testing.T) {
		s, effects := Reduce(listening(1), CaptureFailed{Gen: 1, Code: capture.CodeNoSpeech})
		if !s.RestartPending {
			t.Fatal("restart not pending")
		}
		if !reflect.DeepEqual(effects, []Effect{ScheduleRestart{Gen: 1, Delay: DefaultRestartDelay}}) {
			t.Errorf("effects = %#v", effects)
		}
		s2, effects := Reduce(s, CaptureEnded{Gen: 1})
		if s2 != s || effects != nil {
			t.Errorf("second restart scheduled: %#v", effects)
		}
		s3, effects := Reduce(s2, RestartDue{Gen: 1})
		if s3.RestartPending {
			t.Error("restart still pending")
		}
		if !reflect.DeepEqual(effects, []Effect{StartCapture{Gen: 1}}) {
			t.Errorf("effects = %#v", effects)
		}
		_, effects = Reduce(s3, RestartDue{Gen: 1})
		if effects != nil {
			t.Errorf("duplicate restart started capture: %#v", effects)
		}
	})

	t.Run("aborted ignored", func(t *testing.T) {
		s, effects := Reduce(listening(1), CaptureFailed{Gen: 1, Code: capture.CodeAborted})
		if s != listening(1) || effects != nil {
			t.Errorf("aborted changed state: %+v %#v", s, effects)
		}
	})

	t.Run("fatal halts", func(t *testing.T) {
		s, effects := Reduce(listening(1), CaptureFailed{Gen: 1, Code: capture.CodeNotAllowed})
		if s.Status != StatusIdle || !s.Open {
			t.Fatalf("session = %+v", s)
		}
		if s.LastError == nil || s.LastError.Kind != CaptureFatal || s.LastError.Recoverable() {
			t.Errorf("last error = %v", s.LastError)
		}
		if !reflect.DeepEqual(effects, []Effect{AbortCapture{}, CancelPending{}}) {
			t.Errorf("effects = %#v", effects)
		}
		_, effects = Reduce(s, CaptureEnded{Gen: 1})
		if effects != nil {
			t.Errorf("end after fatal scheduled restart: %#v", effects)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		s, _ := Reduce(listening(1), CaptureStartFailed{Gen: 1, Err: capture.ErrUnsupported})
		if s.Status != StatusIdle || s.LastError == nil || s.LastError.Kind != CaptureUnsupported {
			t.Errorf("session = %+v", s)
		}
	})

	t.Run("errors while thinking ignored", func(t *testing.T) {
		s, effects := Reduce(thinking(1), CaptureFailed{Gen: 1, Code: capture.CodeNetwork})
		if s != thinking(1) || effects != nil {
			t.Errorf("session = %+v", s)
		}
	})
}

func TestReduceSynthesisDegraded(t *testing.T) {
	s, _ := Reduce(speaking(1), SynthesisDegraded{Gen: 1, Err: errors.New("network"), Terminal: false})
	if s.LastError != nil {
		t.Errorf("non-terminal degradation surfaced: %v", s.LastError)
	}
	s, _ = Reduce(speaking(1), SynthesisDegraded{Gen: 1, Err: errors.New("both"), Terminal: true})
	if s.LastError == nil || s.LastError.Kind != SynthesisFailure {
		t.Errorf("terminal degradation not surfaced: %v", s.LastError)
	}
	if s.Status != StatusSpeaking {
		t.Errorf("status = %v", s.Status)
	}
}

func TestGenerationMonotonic(t *testing.T) {
	s := Session{}
	var last uint64
	steps := []Event{Open{ID: "a"}, Interrupt{}, Close{}, Close{}, Open{ID: "b"}}
	for _, ev := range steps {
		s, _ = Reduce(s, ev)
		if s.Generation < last {
			t.Fatalf("generation went back from %d to %d", last, s.Generation)
		}
		last = s.Generation
	}
	if last != 4 {
		t.Errorf("generation = %d, want 4", last)
	}
}

func TestSessionErrorJSON(t *testing.T) {
	e := &SessionError{Kind: RetrievalFailure, Err: errors.New("timeout")}
	b, err := e.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"kind":"retrieval_failure","message":"timeout","recoverable":true}` {
		t.Errorf("json = %s", b)
	}
}
