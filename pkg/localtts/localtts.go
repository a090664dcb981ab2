// Package localtts describes on-device speech synthesis and picks a voice
// for a language from whatever the platform offers.
package localtts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

// DefaultRate is the fallback speaking rate, slightly slowed for clarity.
const DefaultRate = 0.9

// Sentinel errors for local synthesis.
var (
	// ErrUnavailable is returned when the platform has no local synthesis.
	ErrUnavailable = errors.New("localtts: synthesis unavailable")

	// ErrNoVoices is returned when the voice catalog is empty.
	ErrNoVoices = errors.New("localtts: no voices available")

	// ErrBusy is returned when an utterance is already being spoken.
	ErrBusy = errors.New("localtts: already speaking")
)

// Voice is one entry of the platform voice catalog.
type Voice struct {
	Name    string `json:"name"`
	Locale  string `json:"locale"`
	Default bool   `json:"default,omitempty"`
}

// Utterance is one request to speak.
type Utterance struct {
	Text   string
	Locale string
	Voice  Voice

	// Rate is relative to the platform's normal pace (1.0).
	Rate float64
}

// Provider is the on-device synthesis capability (SynthesisProvider).
type Provider interface {
	// Voices returns the current catalog. It may be empty until loaded.
	Voices() []Voice

	// Speak starts speaking and returns without waiting.
	// done is called once when speech ends (nil) or fails.
	Speak(u Utterance, done func(error)) error

	// Cancel stops any utterance in progress.
	Cancel() error
}

// VoiceNotifier is implemented by providers that load voices asynchronously.
// OnVoicesChanged returns a func that removes the listener.
type VoiceNotifier interface {
	OnVoicesChanged(fn func()) (remove func())
}

// Listeners is a set of voices-changed callbacks for VoiceNotifier
// implementations. The zero value is ready to use.
type Listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

// Add registers fn and returns a func that removes it. Remove is idempotent.
func (l *Listeners) Add(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

// Notify calls every registered listener outside the lock.
func (l *Listeners) Notify() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

// SelectVoice picks the best voice for lang. In order it prefers an exact
// engine-locale match, a locale with the language prefix, a voice whose
// name mentions the language, any English voice, and finally the first
// voice. It returns false only for an empty catalog.
func SelectVoice(voices []Voice, lang langdetect.Code) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	want := canonical(langdetect.EngineLocale(lang))
	for _, v := range voices {
		if canonical(v.Locale) == want {
			return v, true
		}
	}

	for _, v := range voices {
		if hasLanguage(v.Locale, string(lang)) {
			return v, true
		}
	}

	for _, name := range langdetect.Names(lang) {
		name = strings.ToLower(name)
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), name) {
				return v, true
			}
		}
	}

	for _, v := range voices {
		if hasLanguage(v.Locale, string(langdetect.English)) {
			return v, true
		}
	}

	return voices[0], true
}

// WaitForVoices returns the catalog, waiting up to timeout for a
// voices-changed notification when it is still empty.
func WaitForVoices(ctx context.Context, p Provider, timeout time.Duration) []Voice {
	if voices := p.Voices(); len(voices) > 0 {
		return voices
	}

	n, ok := p.(VoiceNotifier)
	if !ok || timeout <= 0 {
		return nil
	}

	changed := make(chan struct{}, 1)
	remove := n.OnVoicesChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-changed:
			if voices := p.Voices(); len(voices) > 0 {
				return voices
			}
		case <-timer.C:
			return p.Voices()
		case <-ctx.Done():
			return nil
		}
	}
}

func canonical(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

func hasLanguage(locale, lang string) bool {
	l := canonical(locale)
	return l == lang || strings.HasPrefix(l, lang+"-")
}
