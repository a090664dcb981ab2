// Package tts provides a unified interface for network text-to-speech providers.
//
// Providers turn a Request (normalized text plus a language code) into a
// complete encoded audio buffer. The agriculture backend, Google Cloud TTS,
// ElevenLabs and OpenAI all implement Provider, and a Chain tries them in
// order so callers never depend on a single vendor.
//
// Example usage:
//
//	provider, _ := tts.NewBackend(tts.WithBaseURL("http://localhost:5000/api/tts"))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, tts.Request{Text: "नमस्ते", Language: langdetect.Hindi})
//	// result.Audio holds MP3 or WAV bytes described by result.MIME
package tts

import (
	"context"
	"strings"
	"time"

	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

// Provider defines the network TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, req Request) (*AudioResult, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request is one synthesis call.
type Request struct {
	Text     string          `json:"text"`
	Language langdetect.Code `json:"language"`
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the encoded audio data.
	Audio []byte

	// MIME identifies the container, e.g. audio/mpeg or audio/wav.
	MIME string

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated playback duration, zero when unknown.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64

	// Provider names the provider that produced the audio.
	Provider string
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding represents audio encoding types.
// Values follow ElevenLabs output format names.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"

	EncodingMP3 Encoding = "mp3_44100_128"
	EncodingWAV Encoding = "wav"
)

// MIME types returned in AudioResult.
const (
	MIMEMPEG = "audio/mpeg"
	MIMEWAV  = "audio/wav"
	MIMEPCM  = "audio/pcm"
)

// VoiceSettings controls voice characteristics for providers that support it.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	Stability float64

	// SimilarityBoost controls how closely the voice matches the original (0.0-1.0).
	SimilarityBoost float64

	// Style controls style exaggeration (0.0-1.0).
	Style float64

	// SpeakerBoost enhances speaker clarity. Useful outdoors.
	SpeakerBoost bool
}

// DefaultVoiceSettings returns sensible defaults for voice synthesis.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44, EncodingMP3:
		return 44100
	default:
		return 24000
	}
}

// MIMEFromEncoding returns the MIME type for an encoding.
func MIMEFromEncoding(enc Encoding) string {
	switch {
	case enc == EncodingWAV:
		return MIMEWAV
	case strings.HasPrefix(string(enc), "pcm_"):
		return MIMEPCM
	default:
		return MIMEMPEG
	}
}

// MIMEFromContentType maps an HTTP Content-Type header to a MIME type,
// defaulting to MPEG when the header is missing or generic.
func MIMEFromContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return MIMEWAV
	case "audio/pcm", "audio/l16":
		return MIMEPCM
	case "audio/mpeg", "audio/mp3", "audio/mpeg3":
		return MIMEMPEG
	default:
		return MIMEMPEG
	}
}

// ValidateRequest checks that a request carries speakable text.
func ValidateRequest(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	return nil
}
