// Package gateway accepts device websocket connections and runs one voice
// controller per connected device.
package gateway

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-agrivoice/pkg/protocol"
	"github.com/teslashibe/go-agrivoice/pkg/voice"
)

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

// Factory builds the controller that drives a newly connected device.
type Factory func(d *Device) (*voice.Controller, error)

// Config holds gateway configuration.
type Config struct {
	// AutoOpen opens the session as soon as the device connects.
	AutoOpen bool

	Logger *slog.Logger
}

// Option is a functional option for configuring the gateway.
type Option func(*Config)

// WithAutoOpen opens sessions on connect.
func WithAutoOpen(enabled bool) Option {
	return func(c *Config) {
		c.AutoOpen = enabled
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

type entry struct {
	device *Device
	ctrl   *voice.Controller
}

// Gateway manages device connections and their controllers.
type Gateway struct {
	factory Factory
	config  Config
	logger  *slog.Logger

	mu      sync.RWMutex
	devices map[string]*entry

	onSession    func(deviceID string, s voice.Session)
	onDisconnect func(deviceID string)

	connections atomic.Uint64
	rejected    atomic.Uint64
}

// New creates a gateway that builds controllers with factory.
func New(factory Factory, opts ...Option) *Gateway {
	cfg := Config{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		factory: factory,
		config:  cfg,
		logger:  cfg.Logger.With("component", "gateway"),
		devices: make(map[string]*entry),
	}
}

// OnSession sets the callback for session changes on any device.
// It runs on the device controller's loop.
func (g *Gateway) OnSession(fn func(deviceID string, s voice.Session)) {
	g.mu.Lock()
	g.onSession = fn
	g.mu.Unlock()
}

// OnDisconnect sets the callback for device disconnects.
func (g *Gateway) OnDisconnect(fn func(deviceID string)) {
	g.mu.Lock()
	g.onDisconnect = fn
	g.mu.Unlock()
}

// RegisterRoutes registers the device websocket routes on a Fiber app.
func (g *Gateway) RegisterRoutes(app fiber.Router) {
	app.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/device", websocket.New(g.handleDevice))
	app.Get("/ws/device/:id", websocket.New(g.handleDevice))
}

func (g *Gateway) handleDevice(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	var wmu sync.Mutex
	write := func(data []byte) error {
		wmu.Lock()
		defer wmu.Unlock()
		c.SetWriteDeadline(time.Now().Add(writeWait))
		return c.WriteMessage(websocket.TextMessage, data)
	}

	d := NewDevice(id, write, g.config.Logger)
	if err := g.Attach(d); err != nil {
		g.rejected.Add(1)
		if msg, merr := protocol.NewErrorMessage(err.Error()); merr == nil {
			d.Send(msg)
		}
		g.logger.Warn("device rejected", "device", id, "error", err)
		return
	}
	defer g.Detach(id)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			g.logger.Debug("device read ended", "device", id, "error", err)
			return
		}
		if err := g.Dispatch(id, data); err != nil {
			g.logger.Warn("device message failed", "device", id, "error", err)
		}
	}
}

// Attach registers d and starts its controller.
func (g *Gateway) Attach(d *Device) error {
	g.mu.Lock()
	if _, ok := g.devices[d.ID]; ok {
		g.mu.Unlock()
		return ErrDuplicateDevice
	}
	// Reserve the ID while the controller is built.
	g.devices[d.ID] = &entry{device: d}
	g.mu.Unlock()

	ctrl, err := g.factory(d)
	if err != nil {
		g.mu.Lock()
		delete(g.devices, d.ID)
		g.mu.Unlock()
		return err
	}

	ctrl.OnChange(func(s voice.Session) {
		if msg, err := protocol.NewMessage(protocol.TypeSession, s); err == nil {
			if err := d.Send(msg); err != nil && !errors.Is(err, ErrDisconnected) {
				g.logger.Debug("session update not delivered", "device", d.ID, "error", err)
			}
		}
		g.mu.RLock()
		fn := g.onSession
		g.mu.RUnlock()
		if fn != nil {
			fn(d.ID, s)
		}
	})

	g.mu.Lock()
	e, ok := g.devices[d.ID]
	if !ok {
		// Detached while the controller was being built.
		g.mu.Unlock()
		ctrl.Shutdown()
		return ErrDisconnected
	}
	e.ctrl = ctrl
	count := len(g.devices)
	g.mu.Unlock()
	g.connections.Add(1)

	g.logger.Info("device connected", "device", d.ID, "devices", count)

	if g.config.AutoOpen {
		if err := ctrl.Open(); err != nil {
			g.logger.Warn("auto open failed", "device", d.ID, "error", err)
		}
	}
	return nil
}

// Detach shuts down the device controller and forgets the device.
func (g *Gateway) Detach(id string) {
	g.mu.Lock()
	e, ok := g.devices[id]
	delete(g.devices, id)
	count := len(g.devices)
	fn := g.onDisconnect
	g.mu.Unlock()
	if !ok {
		return
	}

	e.device.close()
	if e.ctrl != nil {
		if err := e.ctrl.Shutdown(); err != nil {
			g.logger.Debug("controller shutdown failed", "device", id, "error", err)
		}
	}
	if fn != nil {
		fn(id)
	}
	g.logger.Info("device disconnected", "device", id, "devices", count)
}

// Dispatch parses and applies one inbound message from device id.
func (g *Gateway) Dispatch(id string, data []byte) error {
	e, ok := g.lookup(id)
	if !ok {
		return ErrDeviceNotFound
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return err
	}
	control, err := e.device.Handle(msg)
	if err != nil || control == "" {
		return err
	}
	return g.Control(id, control)
}

// Control applies a user intent to the device session.
func (g *Gateway) Control(id string, intent protocol.MessageType) error {
	e, ok := g.lookup(id)
	if !ok || e.ctrl == nil {
		return ErrDeviceNotFound
	}
	switch intent {
	case protocol.TypeControlOpen:
		return e.ctrl.Open()
	case protocol.TypeControlClose:
		return e.ctrl.Close()
	case protocol.TypeControlInterrupt:
		return e.ctrl.Interrupt()
	}
	return fiber.NewError(fiber.StatusBadRequest, "unknown control "+string(intent))
}

// lookup returns a copy of the entry for id.
func (g *Gateway) lookup(id string) (entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.devices[id]
	if !ok {
		return entry{}, false
	}
	return *e, true
}

// Controller returns the controller for device id.
func (g *Gateway) Controller(id string) (*voice.Controller, bool) {
	e, ok := g.lookup(id)
	if !ok || e.ctrl == nil {
		return nil, false
	}
	return e.ctrl, true
}

// Device returns a connected device by ID, or nil.
func (g *Gateway) Device(id string) *Device {
	e, ok := g.lookup(id)
	if !ok {
		return nil
	}
	return e.device
}

// DeviceCount returns the number of connected devices.
func (g *Gateway) DeviceCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.devices)
}

// Shutdown disconnects every device.
func (g *Gateway) Shutdown() {
	g.mu.RLock()
	ids := make([]string, 0, len(g.devices))
	for id := range g.devices {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	for _, id := range ids {
		g.Detach(id)
	}
}

// Stats contains gateway statistics
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	Connections      uint64 `json:"connections"`
	Rejected         uint64 `json:"rejected"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
}

// Stats returns gateway statistics.
func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Stats{
		DeviceCount: len(g.devices),
		Connections: g.connections.Load(),
		Rejected:    g.rejected.Load(),
	}
	for _, e := range g.devices {
		s.MessagesReceived += e.device.received.Load()
		s.MessagesSent += e.device.sent.Load()
	}
	return s
}

// DeviceInfo describes a connected device and its session.
type DeviceInfo struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	Connected time.Time     `json:"connected"`
	LastSeen  time.Time     `json:"last_seen"`
	Session   voice.Session `json:"session"`
	Turns     int           `json:"turns"`
}

// DeviceInfos returns info about all connected devices.
func (g *Gateway) DeviceInfos() []DeviceInfo {
	g.mu.RLock()
	entries := make([]entry, 0, len(g.devices))
	for _, e := range g.devices {
		entries = append(entries, *e)
	}
	g.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(entries))
	for _, e := range entries {
		info := DeviceInfo{
			ID:        e.device.ID,
			Name:      e.device.Name(),
			Connected: e.device.Connected,
			LastSeen:  e.device.LastSeen(),
		}
		if e.ctrl != nil {
			info.Session = e.ctrl.Snapshot()
			info.Turns = e.ctrl.Metrics().Turns()
		}
		infos = append(infos, info)
	}
	return infos
}
