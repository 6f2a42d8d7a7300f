package websocket

import (
	"testing"

	"go.uber.org/zap"
)

func TestDeliverDropsSlowClient(t *testing.T) {
	h := NewHub(zap.NewNop())

	slow := &Client{JobID: "job-1", Send: make(chan []byte, 1)}
	h.clients["job-1"] = map[*Client]bool{slow: true}

	// First message fills the buffer, the second marks the client slow.
	h.deliver(&BroadcastMessage{JobID: "job-1", Message: []byte("one")})
	h.deliver(&BroadcastMessage{JobID: "job-1", Message: []byte("two")})

	h.mu.RLock()
	_, registered := h.clients["job-1"]
	h.mu.RUnlock()
	if registered {
		t.Error("slow client still registered after drop")
	}

	// The writer goroutine must observe the closed channel.
	if msg := <-slow.Send; string(msg) != "one" {
		t.Fatalf("buffered message = %q, want %q", msg, "one")
	}
	if _, ok := <-slow.Send; ok {
		t.Error("send channel still open after drop")
	}
}

func TestSendAfterCloseIsSafe(t *testing.T) {
	c := &Client{JobID: "job-1", Send: make(chan []byte, 1)}
	c.close()

	// The reader's pong path may race the hub dropping the client; a
	// send after close must be a quiet no-op, not a panic.
	if !c.trySend([]byte(`{"type":"pong"}`)) {
		t.Error("trySend on closed client = false, want true")
	}

	// Double close is also a no-op.
	c.close()
}

func TestUnregisterUnknownClient(t *testing.T) {
	h := NewHub(zap.NewNop())

	known := &Client{JobID: "job-1", Send: make(chan []byte, 1)}
	h.clients["job-1"] = map[*Client]bool{known: true}

	// Deliver can drop a client while its unregister is still queued;
	// the second removal must not close the channel again.
	h.deliver(&BroadcastMessage{JobID: "job-1", Message: []byte("one")})
	h.deliver(&BroadcastMessage{JobID: "job-1", Message: []byte("two")})

	go h.Run()
	h.unregister <- known

	// A later broadcast to the now-empty job is a no-op.
	h.deliver(&BroadcastMessage{JobID: "job-1", Message: []byte("three")})
}
