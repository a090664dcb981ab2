package synthesis

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
	"github.com/teslashibe/go-agrivoice/pkg/textnorm"
)

// Sentinel errors for synthesis.
var (
	// ErrEmptyText is returned for blank text.
	ErrEmptyText = errors.New("synthesis: empty text")

	// ErrTooLong is returned for text over textnorm.MaxLength runes.
	ErrTooLong = errors.New("synthesis: text too long")

	// ErrNoNetwork is returned when no network provider or sink is configured.
	ErrNoNetwork = errors.New("synthesis: network path not configured")

	// ErrLocalUnavailable is returned when on-device synthesis cannot be used.
	ErrLocalUnavailable = errors.New("synthesis: local synthesis unavailable")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("synthesis: orchestrator closed")
)

// Request is normalized text to speak in a language.
type Request struct {
	Text     string
	Language langdetect.Code
}

// NewRequest validates text and lang. An empty language becomes the default.
func NewRequest(text string, lang langdetect.Code) (Request, error) {
	if strings.TrimSpace(text) == "" {
		return Request{}, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > textnorm.MaxLength {
		return Request{}, ErrTooLong
	}
	if lang == "" {
		lang = langdetect.Default
	}
	return Request{Text: text, Language: lang}, nil
}
