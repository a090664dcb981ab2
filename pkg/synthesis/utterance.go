package synthesis

import (
	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/localtts"
)

// utterance adapts a local speech request to an audio.Resource so the
// Manager owns it like any other playback.
type utterance struct {
	provider localtts.Provider
	u        localtts.Utterance
}

func (r *utterance) Start(done func(error)) error {
	return r.provider.Speak(r.u, done)
}

func (r *utterance) Stop() error {
	return r.provider.Cancel()
}

func (r *utterance) Release() {}

var _ audio.Resource = (*utterance)(nil)
