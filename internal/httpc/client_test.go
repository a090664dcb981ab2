package httpc

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestNewJSONRequest(t *testing.T) {
	req, body, err := NewJSONRequest(context.Background(), "http://localhost/api/chat", map[string]string{"message": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	got, _ := io.ReadAll(req.Body)
	if string(got) != string(body) || string(body) != `{"message":"hi"}` {
		t.Errorf("body = %s, returned %s", got, body)
	}
}

func TestRetryable(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503} {
		if !Retryable(code) {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if Retryable(code) {
			t.Errorf("expected %d not to be retryable", code)
		}
	}
}

func TestBackoff(t *testing.T) {
	t.Run("waits", func(t *testing.T) {
		start := time.Now()
		if err := Backoff(context.Background(), 2, 10*time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Since(start) < 20*time.Millisecond {
			t.Error("expected at least 20ms of backoff")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := Backoff(ctx, 5, time.Second); err == nil {
			t.Error("expected context error")
		}
	})
}
