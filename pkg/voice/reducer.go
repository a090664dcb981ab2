package voice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/capture"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
	"github.com/teslashibe/go-agrivoice/pkg/textnorm"
)

// Reduce applies ev to s and returns the next session and the effects the
// controller must run. It has no side effects.
func Reduce(s Session, ev Event) (Session, []Effect) {
	switch ev := ev.(type) {
	case Open:
		return open(s, ev)
	case Close:
		return closeSession(s)
	case Interrupt:
		return interrupt(s)
	}

	if !current(s, ev) {
		return s, nil
	}

	switch ev := ev.(type) {
	case TranscriptReceived:
		return transcript(s, ev)
	case CaptureFailed:
		return captureFailed(s, ev)
	case CaptureEnded:
		return scheduleRestart(s)
	case CaptureStartFailed:
		return captureStartFailed(s, ev)
	case RestartDue:
		return restartDue(s)
	case ResponseReceived:
		return responseReceived(s, ev)
	case ResponseFailed:
		return responseFailed(s, ev)
	case PlaybackFinished:
		return playbackFinished(s, ev)
	case SynthesisDegraded:
		if ev.Terminal {
			s.LastError = &SessionError{Kind: SynthesisFailure, Err: ev.Err}
		}
		return s, nil
	}
	return s, nil
}

// Generation returns the generation an asynchronous event was started
// under, or false for user intents.
func Generation(ev Event) (uint64, bool) {
	switch ev := ev.(type) {
	case TranscriptReceived:
		return ev.Gen, true
	case CaptureFailed:
		return ev.Gen, true
	case CaptureEnded:
		return ev.Gen, true
	case CaptureStartFailed:
		return ev.Gen, true
	case RestartDue:
		return ev.Gen, true
	case ResponseReceived:
		return ev.Gen, true
	case ResponseFailed:
		return ev.Gen, true
	case PlaybackFinished:
		return ev.Gen, true
	case SynthesisDegraded:
		return ev.Gen, true
	}
	return 0, false
}

func current(s Session, ev Event) bool {
	gen, ok := Generation(ev)
	return ok && s.Open && gen == s.Generation
}

func open(s Session, ev Open) (Session, []Effect) {
	if s.Open {
		return s, nil
	}
	gen := s.Generation + 1
	next := Session{
		ID:         ev.ID,
		Generation: gen,
		Open:       true,
		Status:     StatusListening,
	}
	return next, []Effect{StartCapture{Gen: gen}}
}

func closeSession(s Session) (Session, []Effect) {
	gen := s.Generation + 1
	return Session{Generation: gen}, []Effect{
		AbortCapture{},
		StopPlayback{Gen: gen},
		CancelPending{},
	}
}

func interrupt(s Session) (Session, []Effect) {
	if !s.Open {
		return s, nil
	}
	switch s.Status {
	case StatusThinking, StatusSpeaking:
		s.Generation++
		s.Status = StatusListening
		s.Processing = false
		s.RestartPending = false
		s.Interim = ""
		return s, []Effect{
			StopPlayback{Gen: s.Generation},
			CancelPending{},
			StartCapture{Gen: s.Generation},
		}
	case StatusIdle:
		s.Generation++
		s.Status = StatusListening
		s.Processing = false
		s.RestartPending = false
		s.LastError = nil
		return s, []Effect{
			CancelPending{},
			StartCapture{Gen: s.Generation},
		}
	}
	return s, nil
}

func transcript(s Session, ev TranscriptReceived) (Session, []Effect) {
	if s.Status != StatusListening {
		return s, nil
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return s, nil
	}
	if !ev.Final {
		s.Interim = text
		return s, nil
	}
	if s.Processing {
		return s, nil
	}

	s.Processing = true
	s.Transcript = text
	s.Interim = ""
	s.ResponseText = ""
	s.Language = langdetect.Detect(ev.Locale, text)
	s.Status = StatusThinking
	s.RestartPending = false
	s.LastError = nil
	return s, []Effect{
		StopCapture{},
		Retrieve{Gen: s.Generation, Message: text, Language: s.Language},
	}
}

func captureFailed(s Session, ev CaptureFailed) (Session, []Effect) {
	if s.Status != StatusListening {
		return s, nil
	}
	switch capture.Classify(ev.Code) {
	case capture.Ignored:
		return s, nil
	case capture.Transient:
		return scheduleRestart(s)
	}
	s.Status = StatusIdle
	s.Processing = false
	s.RestartPending = false
	s.Interim = ""
	s.LastError = &SessionError{Kind: CaptureFatal, Err: fmt.Errorf("capture error %q", ev.Code)}
	return s, []Effect{AbortCapture{}, CancelPending{}}
}

func scheduleRestart(s Session) (Session, []Effect) {
	if s.Status != StatusListening || s.RestartPending {
		return s, nil
	}
	s.RestartPending = true
	s.Interim = ""
	return s, []Effect{ScheduleRestart{Gen: s.Generation, Delay: DefaultRestartDelay}}
}

func restartDue(s Session) (Session, []Effect) {
	if !s.RestartPending {
		return s, nil
	}
	s.RestartPending = false
	if s.Status != StatusListening {
		return s, nil
	}
	return s, []Effect{StartCapture{Gen: s.Generation}}
}

func captureStartFailed(s Session, ev CaptureStartFailed) (Session, []Effect) {
	if s.Status != StatusListening {
		return s, nil
	}
	kind := CaptureFatal
	if errors.Is(ev.Err, capture.ErrUnsupported) {
		kind = CaptureUnsupported
	}
	s.Status = StatusIdle
	s.Processing = false
	s.RestartPending = false
	s.LastError = &SessionError{Kind: kind, Err: ev.Err}
	return s, []Effect{CancelPending{}}
}

func responseReceived(s Session, ev ResponseReceived) (Session, []Effect) {
	if s.Status != StatusThinking {
		return s, nil
	}
	text := textnorm.Normalize(ev.Content)
	s.ResponseText = text
	if !textnorm.IsSpeakable(text) {
		s.Processing = false
		s.Status = StatusListening
		return s, []Effect{StartCapture{Gen: s.Generation}}
	}
	s.Status = StatusSpeaking
	return s, []Effect{Synthesize{Gen: s.Generation, Text: text, Language: s.Language}}
}

func responseFailed(s Session, ev ResponseFailed) (Session, []Effect) {
	if s.Status != StatusThinking {
		return s, nil
	}
	s.Processing = false
	s.Status = StatusListening
	s.LastError = &SessionError{Kind: RetrievalFailure, Err: ev.Err}
	return s, []Effect{StartCapture{Gen: s.Generation}}
}

func playbackFinished(s Session, ev PlaybackFinished) (Session, []Effect) {
	if s.Status != StatusSpeaking || ev.Outcome == audio.OutcomeInterrupted {
		return s, nil
	}
	s.Processing = false
	s.Status = StatusListening
	return s, []Effect{StartCapture{Gen: s.Generation}}
}
