// Package web serves the status API, the session control endpoints and the
// websockets for dashboards and devices.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-agrivoice/pkg/gateway"
	"github.com/teslashibe/go-agrivoice/pkg/hub"
	"github.com/teslashibe/go-agrivoice/pkg/voice"
)

const conversationSize = 200

// ConversationEntry is one spoken turn shown on the dashboard.
type ConversationEntry struct {
	Time     string `json:"time"`
	Device   string `json:"device"`
	Role     string `json:"role"` // user, assistant
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

// StatusUpdate is broadcast on /ws/status for every session change.
type StatusUpdate struct {
	Device  string        `json:"device"`
	Session voice.Session `json:"session"`
}

// Config holds server configuration.
type Config struct {
	Addr      string
	StaticDir string
	Logger    *slog.Logger
}

// Option is a functional option for configuring the server.
type Option func(*Config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithStaticDir serves dashboard assets from dir.
func WithStaticDir(dir string) Option {
	return func(c *Config) {
		c.StaticDir = dir
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Server is the web server
type Server struct {
	app     *fiber.App
	config  Config
	logger  *slog.Logger
	gateway *gateway.Gateway
	started time.Time

	statusHub *hub.Hub

	mu           sync.RWMutex
	last         map[string]voice.Session
	conversation []ConversationEntry
}

// NewServer creates the server and subscribes to gateway session changes.
func NewServer(gw *gateway.Gateway, opts ...Option) *Server {
	cfg := Config{Addr: ":8080", Logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		config:       cfg,
		logger:       cfg.Logger.With("component", "web"),
		gateway:      gw,
		started:      time.Now(),
		statusHub:    hub.New("status", cfg.Logger),
		last:         make(map[string]voice.Session),
		conversation: make([]ConversationEntry, 0, conversationSize),
	}

	app := fiber.New(fiber.Config{
		AppName:               "agrivoice",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Post("/sessions/:id/:action", s.handleControl)
	api.Get("/conversation", s.handleGetConversation)

	app.Use("/ws/status", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	gw.RegisterRoutes(app)
	gw.OnSession(s.Observe)
	gw.OnDisconnect(s.forget)

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the status hub and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.config.Addr)
		errc <- s.app.Listen(s.config.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown disconnects devices and stops the server.
func (s *Server) Shutdown() error {
	s.gateway.Shutdown()
	return s.app.Shutdown()
}

// StatusHub returns the status hub.
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// Observe records a session change from device id and broadcasts it.
func (s *Server) Observe(id string, sess voice.Session) {
	now := time.Now().Format("15:04:05")

	s.mu.Lock()
	prev := s.last[id]
	s.last[id] = sess
	if sess.Status == voice.StatusThinking && prev.Status != voice.StatusThinking && sess.Transcript != "" {
		s.appendLocked(ConversationEntry{Time: now, Device: id, Role: "user", Message: sess.Transcript, Language: string(sess.Language)})
	}
	if sess.Status == voice.StatusSpeaking && prev.Status != voice.StatusSpeaking && sess.ResponseText != "" {
		s.appendLocked(ConversationEntry{Time: now, Device: id, Role: "assistant", Message: sess.ResponseText, Language: string(sess.Language)})
	}
	s.mu.Unlock()

	if err := s.statusHub.BroadcastJSON(id, StatusUpdate{Device: id, Session: sess}); err != nil {
		s.logger.Warn("status broadcast failed", "device", id, "error", err)
	}
}

func (s *Server) appendLocked(e ConversationEntry) {
	s.conversation = append(s.conversation, e)
	if len(s.conversation) > conversationSize {
		s.conversation = s.conversation[1:]
	}
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.last, id)
	s.mu.Unlock()
	s.statusHub.Forget(id)
}
