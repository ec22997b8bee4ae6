package wsplayer

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 5 * time.Second

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Conn serializes writes to a websocket; gorilla allows one writer at a time
// and both the player and the room state stream write to the same socket.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, writeTimeout: defaultWriteTimeout}
}

func (c *Conn) Send(ctx context.Context, messageType string, payload any) error {
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return c.ws.WriteJSON(Output{Type: messageType, Payload: payload})
}

// CloseWith sends a close frame with reason and closes the socket.
func (c *Conn) CloseWith(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

	return c.ws.Close()
}

func (c *Conn) WS() *websocket.Conn {
	return c.ws
}
