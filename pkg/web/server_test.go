package web

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-agrivoice/pkg/audio"
	"github.com/teslashibe/go-agrivoice/pkg/chat"
	"github.com/teslashibe/go-agrivoice/pkg/gateway"
	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
	"github.com/teslashibe/go-agrivoice/pkg/synthesis"
	"github.com/teslashibe/go-agrivoice/pkg/tts"
	"github.com/teslashibe/go-agrivoice/pkg/voice"
)

func newTestServer(t *testing.T) (*Server, *gateway.Gateway) {
	t.Helper()
	gw := gateway.New(func(d *gateway.Device) (*voice.Controller, error) {
		manager := audio.NewManager(nil)
		synth := synthesis.New(manager, tts.NewMock(), d, d)
		return voice.New(d, chat.NewMock(), synth, manager)
	})
	s := NewServer(gw)
	t.Cleanup(func() { gw.Shutdown() })
	return s, gw
}

func attachDevice(t *testing.T, gw *gateway.Gateway, id string) {
	t.Helper()
	d := gateway.NewDevice(id, func([]byte) error { return nil }, nil)
	if err := gw.Attach(d); err != nil {
		t.Fatalf("Attach: %v", err)
	}
}

func do(t *testing.T, s *Server, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(method, path, nil))
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(body) > 0 && body[0] == '{' {
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, "GET", "/api/status")
	if code != 200 {
		t.Fatalf("Status = %d, want 200", code)
	}
	if _, ok := body["gateway"]; !ok {
		t.Error("response should contain gateway stats")
	}
}

func TestListSessions(t *testing.T) {
	s, gw := newTestServer(t)
	attachDevice(t, gw, "farm-1")

	code, body := do(t, s, "GET", "/api/sessions")
	if code != 200 {
		t.Fatalf("Status = %d", code)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v", body["count"])
	}
}

func TestControlEndpoints(t *testing.T) {
	s, gw := newTestServer(t)
	attachDevice(t, gw, "farm-1")

	tests := []struct {
		name   string
		path   string
		code   int
		open   bool
		status string
	}{
		{"open", "/api/sessions/farm-1/open", 200, true, "listening"},
		{"interrupt while listening", "/api/sessions/farm-1/interrupt", 200, true, "listening"},
		{"close", "/api/sessions/farm-1/close", 200, false, "idle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, "POST", tt.path)
			if code != tt.code {
				t.Fatalf("Status = %d, want %d (%v)", code, tt.code, body)
			}
			sess, ok := body["session"].(map[string]any)
			if !ok {
				t.Fatalf("no session in %v", body)
			}
			if sess["open"] != tt.open || sess["status"] != tt.status {
				t.Errorf("session = %v", sess)
			}
		})
	}

	code, body := do(t, s, "GET", "/api/sessions/farm-1")
	if code != 200 || body["session"] == nil {
		t.Errorf("GET session = %d %v", code, body)
	}
}

func TestControlErrors(t *testing.T) {
	s, gw := newTestServer(t)
	attachDevice(t, gw, "farm-1")

	if code, _ := do(t, s, "POST", "/api/sessions/farm-1/explode"); code != 400 {
		t.Errorf("unknown action = %d, want 400", code)
	}
	if code, _ := do(t, s, "POST", "/api/sessions/missing/open"); code != 404 {
		t.Errorf("unknown device = %d, want 404", code)
	}
	if code, _ := do(t, s, "GET", "/api/sessions/missing"); code != 404 {
		t.Errorf("GET unknown device = %d, want 404", code)
	}
}

func TestObserveConversation(t *testing.T) {
	s, _ := newTestServer(t)

	listening := voice.Session{Open: true, Status: voice.StatusListening}
	thinking := voice.Session{Open: true, Status: voice.StatusThinking, Transcript: "टमाटर कैसे उगाएं", Language: langdetect.Hindi}
	speaking := thinking
	speaking.Status = voice.StatusSpeaking
	speaking.ResponseText = "टमाटर को धूप चाहिए।"

	for _, sess := range []voice.Session{listening, thinking, thinking, speaking} {
		s.Observe("farm-1", sess)
	}

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/conversation", nil))
	if err != nil {
		t.Fatal(err)
	}
	var entries []ConversationEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Role != "user" || entries[1].Role != "assistant" || entries[0].Language != "hi" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestStatusWSRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/status", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("Status = %d, want 426", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Upgrade") {
		t.Errorf("body = %s", body)
	}
}
