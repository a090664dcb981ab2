package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-agrivoice/pkg/gateway"
	"github.com/teslashibe/go-agrivoice/pkg/hub"
	"github.com/teslashibe/go-agrivoice/pkg/protocol"
	"github.com/teslashibe/go-agrivoice/pkg/voice"
)

// handleStatus returns server and gateway statistics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"uptime":         time.Since(s.started).Round(time.Second).String(),
		"gateway":        s.gateway.Stats(),
		"status_clients": s.statusHub.ClientCount(),
	})
}

// handleListSessions returns every connected device with its session
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	infos := s.gateway.DeviceInfos()
	return c.JSON(fiber.Map{
		"sessions": infos,
		"count":    len(infos),
	})
}

// handleGetSession returns one device session
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	ctrl, ok := s.gateway.Controller(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": gateway.ErrDeviceNotFound.Error()})
	}
	return c.JSON(fiber.Map{
		"session": ctrl.Snapshot(),
		"metrics": ctrl.Metrics().Average(),
	})
}

var controls = map[string]protocol.MessageType{
	"open":      protocol.TypeControlOpen,
	"close":     protocol.TypeControlClose,
	"interrupt": protocol.TypeControlInterrupt,
}

// handleControl applies open, close or interrupt to a device session
func (s *Server) handleControl(c *fiber.Ctx) error {
	id := c.Params("id")
	intent, ok := controls[c.Params("action")]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown action"})
	}

	if err := s.gateway.Control(id, intent); err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, gateway.ErrDeviceNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, voice.ErrShutdown):
			status = fiber.StatusGone
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	ctrl, _ := s.gateway.Controller(id)
	if ctrl == nil {
		return c.JSON(fiber.Map{"status": "ok"})
	}
	return c.JSON(fiber.Map{"status": "ok", "session": ctrl.Snapshot()})
}

// handleGetConversation returns recent turns across all devices
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(s.conversation)
}

// handleStatusWS streams session updates to a dashboard
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		return
	}
	client.Run()
}
