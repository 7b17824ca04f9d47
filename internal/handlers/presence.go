package handlers

import "sync"

// Presence maps connection ids to display names. It holds identity
// only; room membership stays in the channel layer so rosters can
// never drift from actual connection state.
type Presence struct {
	mu        sync.RWMutex
	usernames map[string]string
}

func NewPresence() *Presence {
	return &Presence{usernames: make(map[string]string)}
}

// Join records the participant identity for a connection. Re-joining
// overwrites the previous name.
func (p *Presence) Join(socketID, username string) {
	p.mu.Lock()
	p.usernames[socketID] = username
	p.mu.Unlock()
}

// Username returns the display name for a connection, or "" when the
// connection never joined.
func (p *Presence) Username(socketID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.usernames[socketID]
}

// Leave removes the participant identity on disconnect.
func (p *Presence) Leave(socketID string) {
	p.mu.Lock()
	delete(p.usernames, socketID)
	p.mu.Unlock()
}
