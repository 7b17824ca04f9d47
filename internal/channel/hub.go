package channel

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rahul2762/codesync-backend/pkg/logger"
)

// Channel-level event names. Heartbeat runs above the transport
// because websocket keepalive alone does not survive idle proxies.
const (
	EventPing  = "ping"
	EventPong  = "pong"
	EventError = "error"
)

// HandlerFunc handles one named event from one connection.
type HandlerFunc func(c *Conn, payload json.RawMessage)

// Hub is the event broadcast channel: it owns every live connection,
// the derived room membership sets and the named-event dispatch table.
// Rooms exist implicitly: a room key appears when the first connection
// joins and is deleted when the last one leaves.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Conn
	rooms    map[string]map[string]*Conn
	handlers map[string]HandlerFunc

	connectFn    func(*Conn)
	disconnectFn func(*Conn)

	upgrader websocket.Upgrader

	pingInterval  time.Duration
	sweepInterval time.Duration
	staleAfter    time.Duration

	done     chan struct{}
	shutOnce sync.Once
}

// NewHub creates a hub with the 30s ping / 60s sweep / 90s eviction
// heartbeat policy and starts its heartbeat loop.
func NewHub() *Hub {
	return newHub(30*time.Second, 60*time.Second, 90*time.Second)
}

func newHub(pingInterval, sweepInterval, staleAfter time.Duration) *Hub {
	h := &Hub{
		conns:    make(map[string]*Conn),
		rooms:    make(map[string]map[string]*Conn),
		handlers: make(map[string]HandlerFunc),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingInterval:  pingInterval,
		sweepInterval: sweepInterval,
		staleAfter:    staleAfter,
		done:          make(chan struct{}),
	}
	go h.heartbeat()
	return h
}

// OnEvent registers the handler for a named event. Must be called
// before the hub starts accepting connections.
func (h *Hub) OnEvent(event string, fn HandlerFunc) {
	h.handlers[event] = fn
}

// OnConnect registers a callback invoked after a connection is accepted.
func (h *Hub) OnConnect(fn func(*Conn)) { h.connectFn = fn }

// OnDisconnect registers a callback invoked while the departing
// connection's room memberships are still visible, so handlers can
// notify remaining members.
func (h *Hub) OnDisconnect(fn func(*Conn)) { h.disconnectFn = fn }

// ServeWS upgrades an HTTP request into a hub connection and blocks
// until the connection dies.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &Conn{
		id:       uuid.NewString(),
		hub:      h,
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		lastPong: time.Now(),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	logger.Info().Str("socket_id", c.id).Msg("Socket connected")

	go c.writePump()
	if h.connectFn != nil {
		h.connectFn(c)
	}
	c.readPump()
}

// Join adds the connection to a room, creating the room on first use.
// Re-joining is a no-op for membership.
func (h *Hub) Join(c *Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]*Conn)
		h.rooms[roomID] = room
	}
	room[c.id] = c
}

// RoomMembers returns the connection IDs currently in a room. This is
// the authoritative membership; rosters are derived from it live.
func (h *Hub) RoomMembers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[roomID]
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	return ids
}

// RoomsOf returns every room the connection currently belongs to.
func (h *Hub) RoomsOf(c *Conn) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for roomID, room := range h.rooms {
		if _, ok := room[c.id]; ok {
			out = append(out, roomID)
		}
	}
	return out
}

// EmitTo delivers a named event to a single connection by id.
func (h *Hub) EmitTo(socketID, event string, payload interface{}) bool {
	h.mu.RLock()
	c, ok := h.conns[socketID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Emit(event, payload) == nil
}

// BroadcastToRoom delivers a named event to every room member except
// exceptID (pass "" to include everyone).
func (h *Hub) BroadcastToRoom(roomID, event string, payload interface{}, exceptID string) {
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[roomID]))
	for id, c := range h.rooms[roomID] {
		if id == exceptID {
			continue
		}
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.Emit(event, payload)
	}
}

// CloseConn drops a single connection by id, sending it a normal
// close frame first. Returns false when the id is unknown.
func (h *Hub) CloseConn(socketID string) bool {
	h.mu.RLock()
	c, ok := h.conns[socketID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	c.Close()
	return true
}

// Close shuts the heartbeat down and drops every connection.
func (h *Hub) Close() {
	h.shutOnce.Do(func() { close(h.done) })

	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

// dispatch routes one inbound event. A panic inside a handler is
// contained to that event: it is logged, surfaced to the offending
// connection, and never reaches other connections or the hub.
func (h *Hub) dispatch(c *Conn, env envelope) {
	fn, ok := h.handlers[env.Event]
	if !ok {
		logger.Debug().Str("socket_id", c.id).Str("event", env.Event).Msg("No handler for event")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("socket_id", c.id).
				Str("event", env.Event).
				Interface("panic", r).
				Msg("Event handler panicked")
			c.Emit(EventError, map[string]string{"message": "Failed to handle " + env.Event})
		}
	}()

	fn(c, env.Payload)
}

// unregister is called exactly once per connection, from Conn.Close.
func (h *Hub) unregister(c *Conn) {
	// Let handlers announce the departure while membership is intact.
	if h.disconnectFn != nil {
		h.disconnectFn(c)
	}

	h.mu.Lock()
	delete(h.conns, c.id)
	for roomID, room := range h.rooms {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	logger.Info().Str("socket_id", c.id).Msg("Socket disconnected")
}

// heartbeat pings every connection on one ticker and evicts stale
// connections on another. Eviction is what actually detects dead
// peers behind proxies that keep the TCP session open.
func (h *Hub) heartbeat() {
	ping := time.NewTicker(h.pingInterval)
	sweep := time.NewTicker(h.sweepInterval)
	defer ping.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ping.C:
			for _, c := range h.snapshot() {
				c.Emit(EventPing, nil)
			}
		case <-sweep.C:
			for _, c := range h.snapshot() {
				if c.staleSince(h.staleAfter) {
					logger.Warn().Str("socket_id", c.id).Msg("Force disconnecting stale socket")
					c.Close()
				}
			}
		}
	}
}

func (h *Hub) snapshot() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}
