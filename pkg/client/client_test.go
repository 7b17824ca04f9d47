package client

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rahul2762/codesync-backend/internal/handlers"
	"github.com/rahul2762/codesync-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBackend(t *testing.T) (*handlers.SocketServer, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := handlers.NewSocketServer()
	r := gin.New()
	r.GET("/ws", s.Handler())

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return s, srv
}

// recorder collects callbacks so tests can wait on them.
type recorder struct {
	mu        sync.Mutex
	states    []State
	rosters   [][]models.Client
	code      string
	peerJoins chan string
	codes     chan string
	languages chan string
	peerLefts chan string
}

func newRecorder() *recorder {
	return &recorder{
		peerJoins: make(chan string, 8),
		codes:     make(chan string, 8),
		languages: make(chan string, 8),
		peerLefts: make(chan string, 8),
	}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnStateChange: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnRoster: func(clients []models.Client) {
			r.mu.Lock()
			r.rosters = append(r.rosters, clients)
			r.mu.Unlock()
		},
		OnPeerJoined:     func(name string) { r.peerJoins <- name },
		OnPeerLeft:       func(_, name string) { r.peerLefts <- name },
		OnCodeChange:     func(code string) { r.codes <- code },
		OnLanguageChange: func(lang string) { r.languages <- lang },
	}
}

func (r *recorder) lastStates() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func waitFor(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, canTransition(StateDisconnected, StateConnecting))
	assert.True(t, canTransition(StateConnecting, StateConnected))
	assert.True(t, canTransition(StateConnected, StateReconnecting))
	assert.True(t, canTransition(StateReconnecting, StateConnected))
	assert.True(t, canTransition(StateReconnecting, StateDisconnected))

	assert.False(t, canTransition(StateDisconnected, StateConnected), "must connect before being connected")
	assert.False(t, canTransition(StateConnected, StateConnecting))
}

func TestConnectJoinsRoom(t *testing.T) {
	_, srv := startBackend(t)
	rec := newRecorder()

	c := New(Options{URL: srv.URL, RoomID: "r1", Username: "ana"}, rec.handlers())
	require.NoError(t, c.Connect())
	defer c.Close()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.rosters) > 0
	}, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	roster := rec.rosters[0]
	rec.mu.Unlock()
	require.Len(t, roster, 1)
	assert.Equal(t, "ana", roster[0].Username)
	assert.Equal(t, StateConnected, c.State())
}

func TestConnectRefusedFromConnectedState(t *testing.T) {
	_, srv := startBackend(t)
	c := New(Options{URL: srv.URL, RoomID: "r1", Username: "ana"}, Handlers{})
	require.NoError(t, c.Connect())
	defer c.Close()

	assert.Error(t, c.Connect(), "connect is only valid from disconnected")
}

func TestNewPeerReceivesDocumentFromExistingMember(t *testing.T) {
	_, srv := startBackend(t)

	anaRec := newRecorder()
	ana := New(Options{URL: srv.URL, RoomID: "r1", Username: "ana"}, anaRec.handlers())
	require.NoError(t, ana.Connect())
	defer ana.Close()

	require.NoError(t, ana.SetCode("shared document"))
	require.NoError(t, ana.SetLanguage("cpp"))

	benRec := newRecorder()
	ben := New(Options{URL: srv.URL, RoomID: "r1", Username: "ben"}, benRec.handlers())
	require.NoError(t, ben.Connect())
	defer ben.Close()

	// Ana hears about Ben and pushes her state; the server stores
	// nothing, so this is the only way Ben gets the document.
	waitFor(t, anaRec.peerJoins, "ben")
	waitFor(t, benRec.codes, "shared document")
	waitFor(t, benRec.languages, "cpp")
	assert.Equal(t, "shared document", ben.Code())
}

func TestEditPropagatesToPeersOnly(t *testing.T) {
	_, srv := startBackend(t)

	anaRec := newRecorder()
	ana := New(Options{URL: srv.URL, RoomID: "r1", Username: "ana"}, anaRec.handlers())
	require.NoError(t, ana.Connect())
	defer ana.Close()

	benRec := newRecorder()
	ben := New(Options{URL: srv.URL, RoomID: "r1", Username: "ben"}, benRec.handlers())
	require.NoError(t, ben.Connect())
	defer ben.Close()
	waitFor(t, anaRec.peerJoins, "ben")

	require.NoError(t, ben.SetCode("ben's edit"))

	waitFor(t, anaRec.codes, "ben's edit")
	select {
	case code := <-benRec.codes:
		// Ben may legitimately receive Ana's initial sync push; his own
		// edit must never come back.
		assert.NotEqual(t, "ben's edit", code, "edit echoed to its sender")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPeerLeftNotification(t *testing.T) {
	_, srv := startBackend(t)

	anaRec := newRecorder()
	ana := New(Options{URL: srv.URL, RoomID: "r1", Username: "ana"}, anaRec.handlers())
	require.NoError(t, ana.Connect())
	defer ana.Close()

	ben := New(Options{URL: srv.URL, RoomID: "r1", Username: "ben"}, Handlers{})
	require.NoError(t, ben.Connect())
	waitFor(t, anaRec.peerJoins, "ben")

	ben.Close()
	waitFor(t, anaRec.peerLefts, "ben")
}

func TestServerInitiatedCloseReconnectsImmediately(t *testing.T) {
	backend, srv := startBackend(t)

	rec := newRecorder()
	c := New(Options{
		URL:                  srv.URL,
		RoomID:               "r1",
		Username:             "ana",
		ReconnectionDelay:    50 * time.Millisecond,
		ReconnectionDelayMax: 100 * time.Millisecond,
	}, rec.handlers())
	require.NoError(t, c.Connect())
	defer c.Close()

	require.Eventually(t, func() bool {
		return len(backend.Roster("r1")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	oldID := backend.Roster("r1")[0].SocketID

	require.True(t, backend.Hub().CloseConn(oldID))

	// The controller must come back on its own and re-join the room.
	require.Eventually(t, func() bool {
		roster := backend.Roster("r1")
		return len(roster) == 1 && roster[0].SocketID != oldID
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, StateConnected, c.State())
	assert.Contains(t, rec.lastStates(), StateReconnecting)
}

func TestReconnectGivesUpAfterBoundedAttempts(t *testing.T) {
	backend, srv := startBackend(t)

	rec := newRecorder()
	c := New(Options{
		URL:                  srv.URL,
		RoomID:               "r1",
		Username:             "ana",
		ReconnectionAttempts: 2,
		ReconnectionDelay:    20 * time.Millisecond,
		ReconnectionDelayMax: 40 * time.Millisecond,
	}, rec.handlers())
	require.NoError(t, c.Connect())

	// Kill the backend entirely: every reconnect attempt must fail and
	// the session must end up terminally disconnected. The listener goes
	// first so no retry can land, then the hub drops the live socket
	// (upgraded connections are hijacked, so closing the server alone
	// does not sever them).
	srv.Close()
	backend.Hub().Close()

	require.Eventually(t, func() bool {
		return c.State() == StateDisconnected
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, rec.lastStates(), StateReconnecting)
	c.Close()
}

func TestCloseStopsEverything(t *testing.T) {
	_, srv := startBackend(t)

	c := New(Options{URL: srv.URL, RoomID: "r1", Username: "ana"}, Handlers{})
	require.NoError(t, c.Connect())

	c.Close()
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.SetCode("after close"), ErrNotConnected)
}
