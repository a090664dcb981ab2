package hub

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	waitFor(t, h.IsRunning)
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

// attach registers a client without a websocket connection.
func attach(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan Message, 8)}
	h.register <- c
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestBroadcast(t *testing.T) {
	h := startHub(t)
	a, b := attach(h), attach(h)

	if err := h.BroadcastJSON("", map[string]string{"status": "listening"}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*Client{a, b} {
		if got := string(receive(t, c).Data); got != `{"status":"listening"}` {
			t.Errorf("data = %s", got)
		}
	}
	if h.ClientCount() != 2 {
		t.Errorf("ClientCount = %d", h.ClientCount())
	}
}

func TestRetainedReplay(t *testing.T) {
	h := startHub(t)

	h.BroadcastJSON("device-1", map[string]int{"generation": 1})
	h.BroadcastJSON("device-1", map[string]int{"generation": 2})
	h.BroadcastJSON("device-2", map[string]int{"generation": 7})
	waitFor(t, func() bool { return h.Retained() == 2 })

	late := attach(h)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[string(receive(t, late).Data)] = true
	}
	if !seen[`{"generation":2}`] || !seen[`{"generation":7}`] {
		t.Errorf("replayed = %v", seen)
	}

	h.Forget("device-1")
	waitFor(t, func() bool { return h.Retained() == 1 })
}

func TestUnregister(t *testing.T) {
	h := startHub(t)
	c := attach(h)
	h.unregister <- c
	waitFor(t, func() bool { return h.ClientCount() == 0 })

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestSlowClientDropped(t *testing.T) {
	h := startHub(t)
	c := &Client{hub: h, send: make(chan Message)}
	h.register <- c

	h.Broadcast(Message{Data: []byte("x")})
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestStop(t *testing.T) {
	h := New("stop", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	waitFor(t, h.IsRunning)
	c := attach(h)

	cancel()
	<-h.done
	if h.IsRunning() {
		t.Error("hub still running")
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on stop")
	}
	if NewClient(h, nil) != nil {
		t.Error("NewClient on a stopped hub should return nil")
	}
}
