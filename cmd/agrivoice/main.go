// agrivoice: hands-free voice assistant server for farm devices.
// Phones and browsers connect over WebSocket and stream speech capture
// results; replies are spoken back on the device.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-agrivoice/internal/backends"
	"github.com/teslashibe/go-agrivoice/internal/config"
	"github.com/teslashibe/go-agrivoice/internal/log"
	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/gateway"
	"github.com/teslashibe/go-agrivoice/pkg/synthesis"
	"github.com/teslashibe/go-agrivoice/pkg/voice"
	"github.com/teslashibe/go-agrivoice/pkg/web"
)

var version = "0.1.0"

func main() {
	cfg := config.FromEnv()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.ChatMode, "chat-mode", cfg.ChatMode, "Chat backend mode (http, ws, openai)")
	flag.StringVar(&cfg.ChatBackendURL, "chat-url", cfg.ChatBackendURL, "Chat backend URL")
	flag.StringVar(&cfg.TTSBackendURL, "tts-url", cfg.TTSBackendURL, "Backend TTS URL")
	flag.BoolVar(&cfg.GoogleTTS, "google-tts", cfg.GoogleTTS, "Enable Google Cloud TTS")
	flag.BoolVar(&cfg.PreferLocalVoice, "prefer-local", cfg.PreferLocalVoice, "Speak with on-device voices first")
	flag.DurationVar(&cfg.RestartDelay, "restart-delay", cfg.RestartDelay, "Pause before capture restarts")
	staticDir := flag.String("static", "", "Directory served at /")
	autoOpen := flag.Bool("auto-open", false, "Start listening as soon as a device connects")
	flag.Parse()

	log.Init(cfg.LogLevel)
	logger := log.L()

	fmt.Println()
	fmt.Println("🌾 AgriVoice v" + version)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retriever, err := backends.Retriever(cfg, logger)
	if err != nil {
		log.Error("chat backend", "error", err)
		os.Exit(1)
	}
	network, err := backends.Speech(ctx, cfg, logger)
	if err != nil {
		log.Error("speech backend", "error", err)
		os.Exit(1)
	}
	if network == nil {
		log.Warn("no network TTS configured, replies use on-device voices")
	}

	// One controller per connected device. The network provider is shared.
	factory := func(d *gateway.Device) (*voice.Controller, error) {
		dl := logger.With("device", d.ID)
		manager := audio.NewManager(dl)
		synth := synthesis.New(manager, network, d, d,
			synthesis.WithPreferLocal(cfg.PreferLocalVoice),
			synthesis.WithLogger(dl),
		)
		// No locale hint: the device falls back to the one in its hello.
		return voice.New(d, retriever, synth, manager,
			voice.WithRestartDelay(cfg.RestartDelay),
			voice.WithLogger(dl),
		)
	}

	gw := gateway.New(factory, gateway.WithAutoOpen(*autoOpen), gateway.WithLogger(logger))
	server := web.NewServer(gw,
		web.WithAddr(cfg.Addr),
		web.WithStaticDir(*staticDir),
		web.WithLogger(logger),
	)

	log.Info("starting",
		"addr", cfg.Addr,
		"chat_mode", cfg.ChatMode,
		"device_ws", "/ws/device",
		"status_ws", "/ws/status",
	)

	if err := server.Start(ctx); err != nil {
		log.Error("server", "error", err)
		os.Exit(1)
	}
	log.Info("shut down")
}
