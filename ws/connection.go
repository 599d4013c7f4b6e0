// Package ws is the WebSocket transport: one Connection per live session,
// upgraded and driven by the Handler. It owns session ids and nothing else;
// presence and group state live in runtime and the repositories.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pairlink/domain/event"
	"pairlink/errors"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Frame is the wire envelope for every server-to-client push.
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Connection wraps a websocket and coordinates outbound writes via a
// buffered channel. A connection is uniquely identified per session and is
// safe for concurrent use. It is the EventSink serving its session: the
// delivery worker hands it events, the write loop flushes them.
type Connection struct {
	ID       string
	Username string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

// NewConnection constructs a Connection for the given user.
func NewConnection(username string, ws *websocket.Conn, bufferSize int) *Connection {
	return &Connection{
		ID:       uuid.NewString(),
		Username: username,
		ws:       ws,
		send:     make(chan []byte, bufferSize),
		close:    make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per
// connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Consume implements contract.EventSink: the event is wrapped in its wire
// frame and queued for the write loop. Delivery is fire-and-forget; a full
// buffer drops the event rather than blocking the delivery worker.
func (c *Connection) Consume(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(Frame{Type: e.EventName(), Payload: e})
	if err != nil {
		return err
	}
	select {
	case <-c.close:
		return errors.ErrConnectionClosed
	case c.send <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSendBufferExceeded
	}
}

// Send enqueues payload for delivery, dropping when the buffer is full to
// keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return errors.ErrConnectionClosed
	case c.send <- payload:
		return nil
	default:
		return errors.ErrSendBufferExceeded
	}
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}
