package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func TestSlowClientUnregisteredWithoutDoubleClose(t *testing.T) {
	h := NewHub(nil, nopLogger{})
	go h.Run()

	sid := uuid.New()
	client := &Client{Hub: h, SessionID: sid, Send: make(chan []byte, 1)}
	h.register <- client

	// Fill the buffer so the push hits the drop path. Only the unregister
	// handler may close Send; a second close would panic the hub loop.
	client.Send <- []byte("backlog")
	h.SendToSession(sid, map[string]string{"kind": "insights"})

	deadline := time.After(time.Second)
	for {
		h.mu.RLock()
		_, registered := h.clients[sid]
		h.mu.RUnlock()
		if !registered {
			break
		}
		select {
		case <-deadline:
			t.Fatal("slow client was never unregistered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Drain the backlog; the channel must end up closed exactly once.
	for {
		select {
		case _, open := <-client.Send:
			if !open {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("Send was never closed by the unregister handler")
		}
	}
}
