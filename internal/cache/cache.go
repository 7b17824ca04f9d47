package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rahul2762/codesync-backend/internal/models"
)

// Store caches execute responses keyed by Key(language, code).
// Identical snippets are common in shared rooms, so a hit skips the
// whole compile/run cycle.
type Store interface {
	Get(ctx context.Context, key string) (models.ExecuteResponse, bool)
	Set(ctx context.Context, key string, resp models.ExecuteResponse)
}

// Key derives the cache key for one snippet.
func Key(language, code string) string {
	sum := sha256.Sum256([]byte(language + ":" + code))
	return hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	resp    models.ExecuteResponse
	addedAt time.Time
}

// Memory is the in-process fallback store with TTL expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemory creates an in-memory store with a 1h TTL and starts its
// sweep goroutine.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     time.Hour,
	}
	go m.sweep()
	return m
}

func (m *Memory) Get(_ context.Context, key string) (models.ExecuteResponse, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok || time.Since(entry.addedAt) > m.ttl {
		return models.ExecuteResponse{}, false
	}
	return entry.resp, true
}

func (m *Memory) Set(_ context.Context, key string, resp models.ExecuteResponse) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{resp: resp, addedAt: time.Now()}
	m.mu.Unlock()
}

func (m *Memory) sweep() {
	for {
		time.Sleep(10 * time.Minute)
		m.mu.Lock()
		for key, entry := range m.entries {
			if time.Since(entry.addedAt) > m.ttl {
				delete(m.entries, key)
			}
		}
		m.mu.Unlock()
	}
}
