package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs handles a capture websocket connection for one session.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID uuid.UUID, handler FrameHandler) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Handler: handler, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
