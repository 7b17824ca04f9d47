package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/rahul2762/codesync-backend/internal/channel"
	"github.com/rahul2762/codesync-backend/internal/models"
	"github.com/rahul2762/codesync-backend/pkg/logger"
)

// SocketServer wires the room events onto the hub. The server is a
// relay: it tracks who is where but never stores document state, so
// newly joined peers are brought up to date by existing members via
// the sync events.
type SocketServer struct {
	hub      *channel.Hub
	presence *Presence
}

func NewSocketServer() *SocketServer {
	s := &SocketServer{
		hub:      channel.NewHub(),
		presence: NewPresence(),
	}
	s.registerEvents()
	return s
}

// Hub exposes the underlying channel, mainly for tests.
func (s *SocketServer) Hub() *channel.Hub { return s.hub }

// Handler upgrades a request into a hub connection.
func (s *SocketServer) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	}
}

func (s *SocketServer) Close() {
	s.hub.Close()
}

// Roster computes the current room roster from live channel
// membership plus the presence registry.
func (s *SocketServer) Roster(roomID string) []models.Client {
	ids := s.hub.RoomMembers(roomID)
	clients := make([]models.Client, 0, len(ids))
	for _, id := range ids {
		clients = append(clients, models.Client{
			SocketID: id,
			Username: s.presence.Username(id),
		})
	}
	return clients
}

func (s *SocketServer) registerEvents() {
	s.hub.OnEvent(models.EventJoin, s.handleJoin)
	s.hub.OnEvent(models.EventCodeChange, s.handleCodeChange)
	s.hub.OnEvent(models.EventSyncCode, s.handleSyncCode)
	s.hub.OnEvent(models.EventLanguageChange, s.handleLanguageChange)
	s.hub.OnEvent(models.EventSyncLanguage, s.handleSyncLanguage)
	s.hub.OnDisconnect(s.handleDisconnect)
}

func (s *SocketServer) handleJoin(c *channel.Conn, payload json.RawMessage) {
	var req models.JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Warn().Str("socket_id", c.ID()).Err(err).Msg("Bad join payload")
		c.Emit(models.EventError, models.ErrorPayload{Message: "Failed to join room"})
		return
	}

	s.presence.Join(c.ID(), req.Username)
	s.hub.Join(c, req.RoomID)

	// Everyone in the room, the joiner included, gets the fresh
	// roster plus who just arrived.
	joined := models.JoinedPayload{
		Clients:  s.Roster(req.RoomID),
		Username: req.Username,
		SocketID: c.ID(),
	}
	s.hub.BroadcastToRoom(req.RoomID, models.EventJoined, joined, "")

	logger.Info().
		Str("socket_id", c.ID()).
		Str("room_id", req.RoomID).
		Str("username", req.Username).
		Msg("User joined room")
}

func (s *SocketServer) handleCodeChange(c *channel.Conn, payload json.RawMessage) {
	var req models.CodeChangePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Warn().Str("socket_id", c.ID()).Err(err).Msg("Bad code-change payload")
		return
	}
	// Relay to everyone else; the sender already has the text.
	s.hub.BroadcastToRoom(req.RoomID, models.EventCodeChange,
		models.CodeChangePayload{Code: req.Code}, c.ID())
}

func (s *SocketServer) handleSyncCode(c *channel.Conn, payload json.RawMessage) {
	var req models.SyncCodePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Warn().Str("socket_id", c.ID()).Err(err).Msg("Bad sync:code payload")
		return
	}
	// Directed unicast: an existing member pushes the authoritative
	// text to one peer, arriving as an ordinary code-change.
	s.hub.EmitTo(req.SocketID, models.EventCodeChange,
		models.CodeChangePayload{Code: req.Code})
}

func (s *SocketServer) handleLanguageChange(c *channel.Conn, payload json.RawMessage) {
	var req models.LanguageChangePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Warn().Str("socket_id", c.ID()).Err(err).Msg("Bad language-change payload")
		return
	}
	s.hub.BroadcastToRoom(req.RoomID, models.EventLanguageChange,
		models.LanguageChangePayload{Language: req.Language}, c.ID())
}

func (s *SocketServer) handleSyncLanguage(c *channel.Conn, payload json.RawMessage) {
	var req models.SyncLanguagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Warn().Str("socket_id", c.ID()).Err(err).Msg("Bad sync:language payload")
		return
	}
	s.hub.EmitTo(req.SocketID, models.EventLanguageChange,
		models.LanguageChangePayload{Language: req.Language})
}

func (s *SocketServer) handleDisconnect(c *channel.Conn) {
	username := s.presence.Username(c.ID())
	for _, roomID := range s.hub.RoomsOf(c) {
		s.hub.BroadcastToRoom(roomID, models.EventDisconnected,
			models.DisconnectedPayload{SocketID: c.ID(), Username: username}, c.ID())
	}
	s.presence.Leave(c.ID())
}
