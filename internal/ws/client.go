package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// clientConn serializes writes to one websocket connection. gorilla
// allows a single concurrent writer, and both the reader loop (acks) and
// the hub (broadcasts) write to it.
type clientConn struct {
	rawConn *websocket.Conn
	mu      sync.Mutex

	// Throttle for the high-frequency ephemeral events (progress,
	// cursor). Frames over the budget are dropped, never queued.
	limiter *rate.Limiter
}

func (c *clientConn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data)
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteJSON(v)
}

func (c *clientConn) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *clientConn) close() {
	_ = c.rawConn.Close()
}
