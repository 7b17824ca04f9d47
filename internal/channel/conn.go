package channel

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rahul2762/codesync-backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer before giving up.
	writeWait = 10 * time.Second

	// Maximum inbound message size. Document snapshots are relayed
	// whole, so this is generous.
	maxMessageSize = 1 << 20

	sendBufferSize = 256
)

var (
	ErrConnClosed   = errors.New("channel: connection closed")
	ErrSlowConsumer = errors.New("channel: send buffer full, connection dropped")
)

// envelope is the wire frame for every named event.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Conn is one live bidirectional connection on the hub. All writes go
// through the send channel so only the write pump touches the socket.
type Conn struct {
	id  string
	hub *Hub
	ws  *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once

	pongMu   sync.Mutex
	lastPong time.Time
}

// ID returns the opaque connection identifier.
func (c *Conn) ID() string { return c.id }

// Emit marshals payload and queues a named event for delivery. A full
// send buffer means the peer has stopped draining; the connection is
// dropped rather than blocking the caller.
func (c *Conn) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: event, Payload: data})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnClosed
	case c.send <- frame:
		return nil
	default:
		logger.Warn().Str("socket_id", c.id).Msg("Send buffer full, dropping connection")
		c.Close()
		return ErrSlowConsumer
	}
}

// Close tears the connection down exactly once and removes it from
// the hub. The socket itself is closed by the write pump after it has
// had a chance to send a close frame.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.unregister(c)
	})
}

func (c *Conn) touchPong() {
	c.pongMu.Lock()
	c.lastPong = time.Now()
	c.pongMu.Unlock()
}

// staleSince reports whether the last pong is older than maxAge.
func (c *Conn) staleSince(maxAge time.Duration) bool {
	c.pongMu.Lock()
	defer c.pongMu.Unlock()
	return time.Since(c.lastPong) > maxAge
}

// readPump decodes inbound frames and dispatches them until the
// socket dies. Runs on the HTTP handler goroutine, so per-connection
// event handling is sequential and sender order is preserved.
func (c *Conn) readPump() {
	defer c.Close()
	c.ws.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn().Str("socket_id", c.id).Err(err).Msg("Dropping malformed frame")
			continue
		}

		if env.Event == EventPong {
			c.touchPong()
			continue
		}

		c.hub.dispatch(c, env)
	}
}

// writePump is the single goroutine allowed to write to the socket,
// and the one that finally closes it. Closing here unblocks the read
// pump, whose own deferred Close is then a no-op.
func (c *Conn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
