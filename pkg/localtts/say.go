package localtts

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// sayBaseWPM is the words-per-minute that corresponds to Rate 1.0.
const sayBaseWPM = 175

var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}_[A-Za-z0-9]+)\s+#`)

// Say implements Provider with the macOS say command.
type Say struct {
	logger *slog.Logger

	voicesOnce sync.Once
	voices     []Voice

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewSay creates a say-backed provider.
func NewSay(logger *slog.Logger) *Say {
	if logger == nil {
		logger = slog.Default()
	}
	return &Say{logger: logger.With("component", "localtts.say")}
}

// SayAvailable reports whether the say command can be used on this host.
func SayAvailable() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath("say")
	return err == nil
}

// Voices lists installed voices, loading them on first use.
func (s *Say) Voices() []Voice {
	s.voicesOnce.Do(func() {
		out, err := exec.Command("say", "-v", "?").Output()
		if err != nil {
			s.logger.Warn("list voices failed", "error", err)
			return
		}
		s.voices = ParseSayVoices(out)
		s.logger.Debug("voices loaded", "count", len(s.voices))
	})
	return s.voices
}

// Speak runs say in the background and reports completion through done.
func (s *Say) Speak(u Utterance, done func(error)) error {
	if !SayAvailable() {
		return ErrUnavailable
	}

	args := []string{}
	if u.Voice.Name != "" {
		args = append(args, "-v", u.Voice.Name)
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	args = append(args, "-r", strconv.Itoa(int(rate*sayBaseWPM)), "--", u.Text)

	cmd := exec.Command("say", args...)

	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return ErrBusy
	}
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start say: %w", err)
	}
	s.cmd = cmd
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
		}
		s.mu.Unlock()
		done(err)
	}()
	return nil
}

// Cancel kills the running say process, if any.
func (s *Say) Cancel() error {
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// ParseSayVoices parses the output of `say -v '?'`.
func ParseSayVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := sayVoiceLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		voices = append(voices, Voice{
			Name:   strings.TrimSpace(m[1]),
			Locale: strings.ReplaceAll(m[2], "_", "-"),
		})
	}
	return voices
}

// Verify Say implements Provider at compile time.
var _ Provider = (*Say)(nil)
