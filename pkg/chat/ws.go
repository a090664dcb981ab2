package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const providerWS = "ws"

// WSClient retrieves replies over the backend's streaming websocket.
//
// One request is in flight at a time. Streamed chunks are concatenated
// into a single Response. A failed exchange drops the connection and the
// next Retrieve redials.
type WSClient struct {
	config *Config
	dialer *websocket.Dialer
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// wsMessage is the websocket envelope.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsChunk is a streamed piece of the reply. Some servers send "delta"
// instead of "content".
type wsChunk struct {
	Content string `json:"content,omitempty"`
	Delta   string `json:"delta,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c wsChunk) text() string {
	if c.Content != "" {
		return c.Content
	}
	return c.Delta
}

// NewWSClient creates a websocket retriever. BaseURL must be a ws:// or wss:// URL.
func NewWSClient(opts ...Option) (*WSClient, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}

	return &WSClient{
		config: cfg,
		dialer: dialer,
		logger: cfg.Logger.With("component", "chat.ws"),
	}, nil
}

// Retrieve sends one utterance and assembles the streamed reply.
func (c *WSClient) Retrieve(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, WrapError(providerWS, err)
	}
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := Request{Message: req.Message, Language: req.language()}
	reused := c.conn != nil
	content, err := c.roundTrip(ctx, msg)
	if err != nil && reused && errors.Is(err, errNoReply) && ctx.Err() == nil {
		// The server closed an idle connection. Nothing was answered, so resend once.
		c.logger.Debug("cached connection closed, redialing", "error", err)
		content, err = c.roundTrip(ctx, msg)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapError(providerWS, ctx.Err())
		}
		return nil, WrapError(providerWS, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, WrapError(providerWS, ErrEmptyResponse)
	}

	latency := time.Since(start).Milliseconds()
	c.logger.Debug("retrieved reply",
		"language", req.language(),
		"chars", len(content),
		"latency_ms", latency,
	)

	return &Response{Content: content, LatencyMs: latency, Provider: providerWS}, nil
}

// errNoReply marks an exchange that failed before any frame came back.
var errNoReply = errors.New("no reply")

// roundTrip runs one exchange on the live connection. A connection that
// failed or was closed by ctx is dropped. Caller holds mu.
func (c *WSClient) roundTrip(ctx context.Context, req Request) (string, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	// Closing the socket unblocks ReadJSON when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	content, err := c.exchange(conn, req)
	if !stop() || err != nil {
		c.drop()
	}
	return content, err
}

// exchange writes the chat message and reads until the reply completes.
func (c *WSClient) exchange(conn *websocket.Conn, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	if c.config.Timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.config.Timeout))
		conn.SetReadDeadline(time.Now().Add(c.config.Timeout))
	}
	if err := conn.WriteJSON(wsMessage{Type: "chat", Payload: payload}); err != nil {
		return "", fmt.Errorf("send message: %w: %w", errNoReply, err)
	}

	var sb strings.Builder
	for received := false; ; received = true {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !received {
				return "", fmt.Errorf("read response: %w: %w", errNoReply, err)
			}
			return "", fmt.Errorf("read response: %w", err)
		}

		switch msg.Type {
		case "chunk":
			var chunk wsChunk
			if err := json.Unmarshal(msg.Payload, &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				return "", fmt.Errorf("server error: %s", chunk.Error)
			}
			sb.WriteString(chunk.text())
			if chunk.Done {
				return sb.String(), nil
			}

		case "done":
			return sb.String(), nil

		case "error":
			var e struct {
				Error string `json:"error"`
			}
			json.Unmarshal(msg.Payload, &e)
			return "", fmt.Errorf("server error: %s", e.Error)

		case "pong":
			continue
		}
	}
}

// connect returns the live connection, dialing if needed. Caller holds mu.
func (c *WSClient) connect(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.config.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c.conn = conn
	c.logger.Info("connected", "url", c.config.BaseURL)
	return conn, nil
}

// drop closes and forgets the connection. Caller holds mu.
func (c *WSClient) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Ping sends an application-level ping.
func (c *WSClient) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(wsMessage{Type: "ping"})
}

// IsConnected reports whether a connection is open.
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.drop()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// Verify WSClient implements Retriever at compile time.
var _ Retriever = (*WSClient)(nil)
