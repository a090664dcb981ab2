package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-agrivoice/pkg/chat"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

var tomato = chat.Request{Message: "My tomato leaves are turning yellow", Language: langdetect.English}

func TestBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("requires base URL", func(t *testing.T) {
		if _, err := chat.NewBackend(); !errors.Is(err, chat.ErrNoBaseURL) {
			t.Errorf("expected ErrNoBaseURL, got %v", err)
		}
	})

	t.Run("posts message and language", func(t *testing.T) {
		var got chat.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(map[string]string{"content": "Check for nitrogen deficiency."})
		}))
		defer srv.Close()

		b, _ := chat.NewBackend(chat.WithBaseURL(srv.URL))
		resp, err := b.Retrieve(ctx, chat.Request{Message: "पत्ते पीले", Language: langdetect.Hindi})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Message != "पत्ते पीले" || got.Language != langdetect.Hindi {
			t.Errorf("backend received %+v", got)
		}
		if resp.Content != "Check for nitrogen deficiency." {
			t.Errorf("content = %q", resp.Content)
		}
	})

	t.Run("missing language defaults to english", func(t *testing.T) {
		var got chat.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			w.Write([]byte(`{"response":"ok"}`))
		}))
		defer srv.Close()

		b, _ := chat.NewBackend(chat.WithBaseURL(srv.URL))
		resp, err := b.Retrieve(ctx, chat.Request{Message: "hello"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Language != langdetect.English || resp.Content != "ok" {
			t.Errorf("language=%q content=%q", got.Language, resp.Content)
		}
	})

	t.Run("failures match ErrRetrievalFailed", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"upstream down"}`))
		}))
		defer srv.Close()

		b, _ := chat.NewBackend(chat.WithBaseURL(srv.URL), chat.WithRetry(2, time.Millisecond))
		_, err := b.Retrieve(ctx, tomato)

		if !errors.Is(err, chat.ErrRetrievalFailed) {
			t.Errorf("expected ErrRetrievalFailed, got %v", err)
		}
		var apiErr *chat.APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "upstream down" {
			t.Errorf("expected APIError, got %v", err)
		}
		if n := atomic.LoadInt32(&calls); n != 3 {
			t.Errorf("expected 3 attempts, got %d", n)
		}
	})

	t.Run("empty content is a failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"content":"  "}`))
		}))
		defer srv.Close()

		b, _ := chat.NewBackend(chat.WithBaseURL(srv.URL))
		_, err := b.Retrieve(ctx, tomato)
		if !errors.Is(err, chat.ErrEmptyResponse) || !errors.Is(err, chat.ErrRetrievalFailed) {
			t.Errorf("expected empty response retrieval failure, got %v", err)
		}
	})

	t.Run("blank message is rejected", func(t *testing.T) {
		b, _ := chat.NewBackend(chat.WithBaseURL("http://unused"))
		if _, err := b.Retrieve(ctx, chat.Request{Message: " "}); !errors.Is(err, chat.ErrEmptyMessage) {
			t.Errorf("expected ErrEmptyMessage, got %v", err)
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		b, _ := chat.NewBackend(chat.WithBaseURL(srv.URL))
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := b.Retrieve(cctx, tomato)
		if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, chat.ErrRetrievalFailed) {
			t.Errorf("expected deadline retrieval failure, got %v", err)
		}
	})
}

func TestOpenAI(t *testing.T) {
	t.Run("requires key for default endpoint", func(t *testing.T) {
		if _, err := chat.NewOpenAI(); !errors.Is(err, chat.ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("sends language-aware system prompt", func(t *testing.T) {
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("path = %q", r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&payload)
			w.Write([]byte(`{"model":"m","choices":[{"message":{"content":"நீர் பாய்ச்சவும்"},"finish_reason":"stop"}]}`))
		}))
		defer srv.Close()

		o, err := chat.NewOpenAI(chat.WithBaseURL(srv.URL+"/"), chat.WithModel("m"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		resp, err := o.Retrieve(context.Background(), chat.Request{Message: "தக்காளி", Language: langdetect.Tamil})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Content != "நீர் பாய்ச்சவும்" {
			t.Errorf("content = %q", resp.Content)
		}
		if len(payload.Messages) != 2 || !strings.Contains(payload.Messages[0].Content, "Tamil") {
			t.Errorf("messages = %+v", payload.Messages)
		}
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		o, _ := chat.NewOpenAI(chat.WithBaseURL(srv.URL))
		if _, err := o.Retrieve(context.Background(), tomato); !errors.Is(err, chat.ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})
}

// wsServer runs handle for every websocket connection.
func wsServer(t *testing.T, handle func(conn *websocket.Conn)) (string, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	return "ws" + strings.TrimPrefix(srv.URL, "http"), srv.Close
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func TestWSClient(t *testing.T) {
	t.Run("assembles streamed chunks", func(t *testing.T) {
		var got chat.Request
		url, stop := wsServer(t, func(conn *websocket.Conn) {
			for {
				var msg envelope
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				json.Unmarshal(msg.Payload, &got)
				conn.WriteJSON(map[string]any{"type": "chunk", "payload": map[string]any{"content": "Spray "}})
				conn.WriteJSON(map[string]any{"type": "pong"})
				conn.WriteJSON(map[string]any{"type": "chunk", "payload": map[string]any{"delta": "neem oil."}})
				conn.WriteJSON(map[string]any{"type": "done"})
			}
		})
		defer stop()

		c, err := chat.NewWSClient(chat.WithBaseURL(url))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer c.Close()

		for i := 0; i < 2; i++ {
			resp, err := c.Retrieve(context.Background(), tomato)
			if err != nil {
				t.Fatalf("turn %d: unexpected error: %v", i, err)
			}
			if resp.Content != "Spray neem oil." {
				t.Errorf("turn %d: content = %q", i, resp.Content)
			}
		}
		if got.Message != tomato.Message || got.Language != langdetect.English {
			t.Errorf("server received %+v", got)
		}
		if !c.IsConnected() {
			t.Error("connection should be reused")
		}
	})

	t.Run("server error drops connection", func(t *testing.T) {
		url, stop := wsServer(t, func(conn *websocket.Conn) {
			var msg envelope
			if conn.ReadJSON(&msg) == nil {
				conn.WriteJSON(map[string]any{"type": "error", "payload": map[string]any{"error": "model offline"}})
			}
		})
		defer stop()

		c, _ := chat.NewWSClient(chat.WithBaseURL(url))
		_, err := c.Retrieve(context.Background(), tomato)
		if !errors.Is(err, chat.ErrRetrievalFailed) || !strings.Contains(err.Error(), "model offline") {
			t.Errorf("expected server error, got %v", err)
		}
		if c.IsConnected() {
			t.Error("failed exchange should drop the connection")
		}
	})

	t.Run("cancellation unblocks read", func(t *testing.T) {
		url, stop := wsServer(t, func(conn *websocket.Conn) {
			var msg envelope
			conn.ReadJSON(&msg)
			conn.ReadJSON(&msg)
		})
		defer stop()

		c, _ := chat.NewWSClient(chat.WithBaseURL(url))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err := c.Retrieve(ctx, tomato)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", err)
		}
	})

	t.Run("redials after server closes idle connection", func(t *testing.T) {
		var conns atomic.Int32
		url, stop := wsServer(t, func(conn *websocket.Conn) {
			conns.Add(1)
			var msg envelope
			if conn.ReadJSON(&msg) == nil {
				conn.WriteJSON(map[string]any{"type": "chunk", "payload": map[string]any{"content": "Water at dawn.", "done": true}})
			}
		})
		defer stop()

		c, _ := chat.NewWSClient(chat.WithBaseURL(url))
		defer c.Close()

		for i := 0; i < 2; i++ {
			resp, err := c.Retrieve(context.Background(), tomato)
			if err != nil {
				t.Fatalf("turn %d: unexpected error: %v", i, err)
			}
			if resp.Content != "Water at dawn." {
				t.Errorf("turn %d: content = %q", i, resp.Content)
			}
		}
		if n := conns.Load(); n != 2 {
			t.Errorf("server saw %d connections, want 2", n)
		}
	})

	t.Run("recovers after cancelled turn", func(t *testing.T) {
		url, stop := wsServer(t, func(conn *websocket.Conn) {
			for {
				var msg envelope
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				var req chat.Request
				json.Unmarshal(msg.Payload, &req)
				if req.Message == "slow" {
					time.Sleep(100 * time.Millisecond)
				}
				conn.WriteJSON(map[string]any{"type": "chunk", "payload": map[string]any{"content": "ok", "done": true}})
			}
		})
		defer stop()

		c, _ := chat.NewWSClient(chat.WithBaseURL(url))
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if _, err := c.Retrieve(ctx, chat.Request{Message: "slow"}); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
		if c.IsConnected() {
			t.Error("closed connection kept after cancellation")
		}

		resp, err := c.Retrieve(context.Background(), tomato)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Content != "ok" {
			t.Errorf("content = %q", resp.Content)
		}
	})
}

func TestMock(t *testing.T) {
	m := chat.WithError(errors.New("boom"))
	if _, err := m.Retrieve(context.Background(), tomato); !errors.Is(err, chat.ErrRetrievalFailed) {
		t.Errorf("mock error should be a retrieval failure, got %v", err)
	}
	if m.CallCount() != 1 || m.LastCall().Request.Message != tomato.Message {
		t.Errorf("calls = %+v", m.Calls())
	}
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"", "http", "ws", "openai"} {
		if _, err := chat.New(mode, chat.WithBaseURL("http://localhost:1")); err != nil {
			t.Errorf("New(%q): %v", mode, err)
		}
	}
	if _, err := chat.New("carrier-pigeon"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
