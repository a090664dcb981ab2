// Package speaker plays synthesized speech on the host sound card.
package speaker

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
)

// DefaultSampleRate is the device rate every track is resampled to.
const DefaultSampleRate = 44100

// resampleQuality trades CPU for fidelity in beep.Resample (1-6).
const resampleQuality = 4

// Sink implements audio.Sink on the default output device.
// The device is initialised lazily on the first Start.
type Sink struct {
	rate   beep.SampleRate
	logger *slog.Logger

	once    sync.Once
	initErr error
}

// New creates a speaker sink at sampleRate (DefaultSampleRate if zero).
func New(sampleRate int, logger *slog.Logger) *Sink {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		rate:   beep.SampleRate(sampleRate),
		logger: logger.With("component", "audio.speaker"),
	}
}

// Open decodes MP3 or WAV bytes into a playable track.
func (s *Sink) Open(data []byte, mime string) (audio.Resource, error) {
	if len(data) == 0 {
		return nil, audio.ErrEmptyAudio
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch kind := strings.ToLower(mime); {
	case strings.Contains(kind, "mpeg"), strings.Contains(kind, "mp3"):
		stream, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case strings.Contains(kind, "wav"):
		stream, format, err = wav.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, mime)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mime, err)
	}

	return &track{sink: s, stream: stream, format: format}, nil
}

func (s *Sink) init() error {
	s.once.Do(func() {
		s.initErr = speaker.Init(s.rate, s.rate.N(time.Second/10))
		if s.initErr != nil {
			s.logger.Error("speaker init failed", "error", s.initErr)
		}
	})
	return s.initErr
}

// track is one decoded buffer queued on the speaker mixer.
type track struct {
	sink   *Sink
	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
}

func (t *track) Start(done func(error)) error {
	if err := t.sink.init(); err != nil {
		return err
	}

	var src beep.Streamer = t.stream
	if t.format.SampleRate != t.sink.rate {
		src = beep.Resample(resampleQuality, t.format.SampleRate, t.sink.rate, t.stream)
	}

	t.ctrl = &beep.Ctrl{Streamer: beep.Seq(src, beep.Callback(func() {
		go done(nil)
	}))}
	speaker.Play(t.ctrl)
	return nil
}

// Stop detaches the track from the mixer so its callback never runs.
func (t *track) Stop() error {
	if t.ctrl == nil {
		return nil
	}
	speaker.Lock()
	t.ctrl.Streamer = nil
	speaker.Unlock()
	return nil
}

func (t *track) Release() {
	if err := t.stream.Close(); err != nil {
		t.sink.logger.Debug("close stream", "error", err)
	}
}

// Verify Sink implements audio.Sink at compile time.
var _ audio.Sink = (*Sink)(nil)
