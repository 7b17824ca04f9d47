// Package client is the session controller for one editor connection:
// it owns the connect → join → synchronized lifecycle, the bounded
// reconnection loop, and the push of document state to newly joined
// peers. The server never stores a document, so synchronization is
// entirely peer-driven through the sync events.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rahul2762/codesync-backend/internal/models"
)

const (
	defaultDialTimeout    = 20 * time.Second
	defaultReconnectTries = 5
	defaultReconnectDelay = time.Second
	defaultReconnectMax   = 5 * time.Second
)

// ErrNotConnected is returned when emitting while the socket is down.
var ErrNotConnected = errors.New("client: not connected")

// Options configures a session.
type Options struct {
	// URL is the backend origin, http(s) or ws(s) scheme.
	URL      string
	RoomID   string
	Username string

	DialTimeout          time.Duration
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	ReconnectionDelayMax time.Duration
}

// Handlers are the application callbacks. All of them are invoked
// from the session's read loop, one at a time.
type Handlers struct {
	OnRoster         func(clients []models.Client)
	OnPeerJoined     func(username string)
	OnPeerLeft       func(socketID, username string)
	OnCodeChange     func(code string)
	OnLanguageChange func(language string)
	OnStateChange    func(state State)
	OnError          func(message string)
}

// Client is one connection's session controller.
type Client struct {
	opts     Options
	handlers Handlers

	mu       sync.Mutex
	state    State
	ws       *websocket.Conn
	selfID   string
	code     string
	language string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a disconnected session. The language tag starts as
// javascript, mirroring a fresh editor.
func New(opts Options, handlers Handlers) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.ReconnectionAttempts <= 0 {
		opts.ReconnectionAttempts = defaultReconnectTries
	}
	if opts.ReconnectionDelay <= 0 {
		opts.ReconnectionDelay = defaultReconnectDelay
	}
	if opts.ReconnectionDelayMax <= 0 {
		opts.ReconnectionDelayMax = defaultReconnectMax
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:     opts,
		handlers: handlers,
		state:    StateDisconnected,
		language: "javascript",
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the backend and joins the room. It returns once the
// socket is up; the read loop runs until Close or a terminal
// reconnect failure.
func (c *Client) Connect() error {
	if !c.transition(StateConnecting) {
		return fmt.Errorf("client: cannot connect from state %s", c.State())
	}
	if err := c.dial(); err != nil {
		c.transition(StateDisconnected)
		return err
	}
	c.afterConnect()
	return nil
}

// Reconnect is the manual retry for a session that exhausted its
// automatic attempts.
func (c *Client) Reconnect() error {
	if c.State() != StateDisconnected {
		return fmt.Errorf("client: reconnect only valid when disconnected")
	}
	return c.Connect()
}

// Close tears the session down: the read loop, the socket and any
// pending backoff timer all stop before Close returns.
func (c *Client) Close() {
	c.cancel()
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()
	c.wg.Wait()
}

// SetCode records the local document and relays it to the room.
func (c *Client) SetCode(code string) error {
	c.mu.Lock()
	c.code = code
	c.mu.Unlock()
	return c.emit(models.EventCodeChange, models.CodeChangePayload{
		RoomID: c.opts.RoomID,
		Code:   code,
	})
}

// SetLanguage records the language tag and relays it to the room.
func (c *Client) SetLanguage(language string) error {
	c.mu.Lock()
	c.language = language
	c.mu.Unlock()
	return c.emit(models.EventLanguageChange, models.LanguageChangePayload{
		RoomID:   c.opts.RoomID,
		Language: language,
	})
}

// Code returns the last-known document text.
func (c *Client) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

// wsURL converts the configured origin into the /ws endpoint.
func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *Client) dial() error {
	target, err := c.wsURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	ws, resp, err := dialer.DialContext(c.ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("client: dial %s: %s: %w", target, resp.Status, err)
		}
		return fmt.Errorf("client: dial %s: %w", target, err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		ws.Close()
		return fmt.Errorf("client: unexpected handshake status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	return nil
}

// afterConnect runs on every successful (re)connect: announce the
// state, join the room, start reading.
func (c *Client) afterConnect() {
	c.transition(StateConnected)
	c.emit(models.EventJoin, models.JoinPayload{
		RoomID:   c.opts.RoomID,
		Username: c.opts.Username,
	})
	c.wg.Add(1)
	go c.readLoop()
}

func (c *Client) emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{Event: event, Payload: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.onReadError(err)
			return
		}

		var env struct {
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if jsonErr := json.Unmarshal(data, &env); jsonErr != nil {
			continue
		}
		c.dispatch(env.Event, env.Payload)
	}
}

func (c *Client) dispatch(event string, payload json.RawMessage) {
	switch event {
	case models.EventPing:
		c.emit(models.EventPong, nil)

	case models.EventJoined:
		var p models.JoinedPayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		c.onJoined(p)

	case models.EventCodeChange:
		var p models.CodeChangePayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		c.mu.Lock()
		c.code = p.Code
		c.mu.Unlock()
		if c.handlers.OnCodeChange != nil {
			c.handlers.OnCodeChange(p.Code)
		}

	case models.EventLanguageChange:
		var p models.LanguageChangePayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		c.mu.Lock()
		c.language = p.Language
		c.mu.Unlock()
		if c.handlers.OnLanguageChange != nil {
			c.handlers.OnLanguageChange(p.Language)
		}

	case models.EventDisconnected:
		var p models.DisconnectedPayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		if c.handlers.OnPeerLeft != nil {
			c.handlers.OnPeerLeft(p.SocketID, p.Username)
		}

	case models.EventError:
		var p models.ErrorPayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		if c.handlers.OnError != nil {
			c.handlers.OnError(p.Message)
		}
	}
}

// onJoined absorbs a roster update. The first joined event for our own
// username identifies our connection id; a joined event for anyone
// else means a fresh peer that needs the current document pushed to
// it, because the server holds no copy.
func (c *Client) onJoined(p models.JoinedPayload) {
	c.mu.Lock()
	if c.selfID == "" && p.Username == c.opts.Username {
		c.selfID = p.SocketID
	}
	selfID := c.selfID
	code := c.code
	language := c.language
	c.mu.Unlock()

	if c.handlers.OnRoster != nil {
		c.handlers.OnRoster(p.Clients)
	}

	if p.SocketID != selfID {
		if c.handlers.OnPeerJoined != nil {
			c.handlers.OnPeerJoined(p.Username)
		}
		c.emit(models.EventSyncCode, models.SyncCodePayload{
			SocketID: p.SocketID,
			Code:     code,
		})
		c.emit(models.EventSyncLanguage, models.SyncLanguagePayload{
			SocketID: p.SocketID,
			Language: language,
		})
	}
}

// onReadError drives the reconnection state machine. A server-initiated
// close retries immediately; anything else backs off through a bounded
// number of attempts before going terminally disconnected.
func (c *Client) onReadError(err error) {
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.selfID = ""
	c.mu.Unlock()

	if !c.transition(StateReconnecting) {
		return
	}

	if serverInitiated(err) {
		if c.dial() == nil {
			c.afterConnect()
			return
		}
	}

	for attempt := 1; attempt <= c.opts.ReconnectionAttempts; attempt++ {
		delay := time.Duration(attempt) * c.opts.ReconnectionDelay
		if delay > c.opts.ReconnectionDelayMax {
			delay = c.opts.ReconnectionDelayMax
		}

		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if c.dial() == nil {
			c.afterConnect()
			return
		}
	}

	c.transition(StateDisconnected)
}

func serverInitiated(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (c *Client) transition(to State) bool {
	c.mu.Lock()
	if !canTransition(c.state, to) {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.mu.Unlock()

	if c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(to)
	}
	return true
}
