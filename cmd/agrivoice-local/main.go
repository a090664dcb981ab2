// agrivoice-local: run one voice session in a terminal.
// Typed lines stand in for speech; replies play on the default speaker,
// or through the macOS say command when no network TTS is configured.
//
// Commands: /open, /close, /stop (interrupt), /status, /quit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-agrivoice/internal/backends"
	"github.com/teslashibe/go-agrivoice/internal/config"
	"github.com/teslashibe/go-agrivoice/internal/log"
	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/audio/speaker"
	"github.com/teslashibe/go-agrivoice/pkg/localtts"
	"github.com/teslashibe/go-agrivoice/pkg/synthesis"
	"github.com/teslashibe/go-agrivoice/pkg/voice"
)

func main() {
	cfg := config.FromEnv()

	flag.StringVar(&cfg.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.ChatMode, "chat-mode", cfg.ChatMode, "Chat backend mode (http, ws, openai)")
	flag.StringVar(&cfg.ChatBackendURL, "chat-url", cfg.ChatBackendURL, "Chat backend URL")
	flag.StringVar(&cfg.TTSBackendURL, "tts-url", cfg.TTSBackendURL, "Backend TTS URL")
	flag.BoolVar(&cfg.PreferLocalVoice, "prefer-local", cfg.PreferLocalVoice, "Speak with the say command first")
	locale := flag.String("locale", "", "Locale reported with typed lines (e.g. hi-IN)")
	flag.Parse()

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retriever, err := backends.Retriever(cfg, logger)
	if err != nil {
		fatal("chat backend", err)
	}
	network, err := backends.Speech(ctx, cfg, logger)
	if err != nil {
		fatal("speech backend", err)
	}

	var local localtts.Provider
	if localtts.SayAvailable() {
		local = localtts.NewSay(logger)
	}
	if network == nil && local == nil {
		fmt.Println("⚠️  No TTS available, replies are printed only")
	}

	engine := newConsoleEngine()
	manager := audio.NewManager(logger)
	synth := synthesis.New(manager, network, speaker.New(0, logger), local,
		synthesis.WithPreferLocal(cfg.PreferLocalVoice),
		synthesis.WithLogger(logger),
	)

	ctrl, err := voice.New(engine, retriever, synth, manager,
		voice.WithLocale(*locale),
		voice.WithRestartDelay(cfg.RestartDelay),
		voice.WithLogger(logger),
	)
	if err != nil {
		fatal("controller", err)
	}
	defer ctrl.Shutdown()

	last := voice.StatusIdle
	var lastErr *voice.SessionError
	ctrl.OnChange(func(s voice.Session) {
		if s.Status != last {
			fmt.Printf("   [%s]\n", s.Status)
			last = s.Status
		}
		if s.Status == voice.StatusSpeaking && s.ResponseText != "" {
			fmt.Printf("🌾 %s\n", s.ResponseText)
		}
		if s.LastError != nil && s.LastError != lastErr {
			fmt.Printf("⚠️  %s\n", s.LastError)
		}
		lastErr = s.LastError
	})

	fmt.Println()
	fmt.Println("🌾 AgriVoice console")
	fmt.Println("   Type to talk. /open /close /stop /status /quit")
	fmt.Println()

	if err := ctrl.Open(); err != nil {
		fatal("open", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handle(ctrl, engine, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// handle runs one typed line. It returns false to quit.
func handle(ctrl *voice.Controller, engine *consoleEngine, line string) bool {
	var err error
	switch line {
	case "":
		return true
	case "/quit", "/exit":
		return false
	case "/open":
		err = ctrl.Open()
	case "/close":
		err = ctrl.Close()
	case "/stop":
		err = ctrl.Interrupt()
	case "/status":
		s := ctrl.Snapshot()
		fmt.Printf("   open=%v status=%s language=%s\n", s.Open, s.Status, s.Language)
		avg := ctrl.Metrics().Average()
		fmt.Printf("   turns=%d %s\n", ctrl.Metrics().Turns(), avg.FormatLatency())
	default:
		if !engine.Say(line) {
			fmt.Println("   (not listening, /open to start)")
		}
	}
	if err != nil {
		fmt.Printf("⚠️  %v\n", err)
	}
	return true
}

func fatal(what string, err error) {
	log.Error(what, "error", err)
	os.Exit(1)
}
