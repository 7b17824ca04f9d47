package models

// Event names exchanged over the room channel. Server and client must
// agree on these exactly, so they live in one place.
const (
	EventJoin           = "join"
	EventJoined         = "joined"
	EventCodeChange     = "code-change"
	EventSyncCode       = "sync:code"
	EventLanguageChange = "language-change"
	EventSyncLanguage   = "sync:language"
	EventDisconnected   = "disconnected"
	EventError          = "error"

	// Application-level heartbeat, independent of websocket control frames.
	EventPing = "ping"
	EventPong = "pong"
)

// Client is one participant as seen in a room roster.
type Client struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// JoinPayload is sent by a client entering a room.
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// JoinedPayload is broadcast to every room member after a join,
// carrying the full roster plus who just arrived.
type JoinedPayload struct {
	Clients  []Client `json:"clients"`
	Username string   `json:"username"`
	SocketID string   `json:"socketId"`
}

// CodeChangePayload relays a full document snapshot. RoomID is set on
// the inbound leg only; the relayed copy carries just the code.
type CodeChangePayload struct {
	RoomID string `json:"roomId,omitempty"`
	Code   string `json:"code"`
}

// SyncCodePayload pushes the current document to one connection,
// typically a peer that just joined.
type SyncCodePayload struct {
	SocketID string `json:"socketId"`
	Code     string `json:"code"`
}

// LanguageChangePayload mirrors CodeChangePayload for the language tag.
type LanguageChangePayload struct {
	RoomID   string `json:"roomId,omitempty"`
	Language string `json:"language"`
}

// SyncLanguagePayload mirrors SyncCodePayload for the language tag.
type SyncLanguagePayload struct {
	SocketID string `json:"socketId"`
	Language string `json:"language"`
}

// DisconnectedPayload tells remaining room members who left.
type DisconnectedPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// ErrorPayload is surfaced to a connection whose event handler failed.
type ErrorPayload struct {
	Message string `json:"message"`
}
