package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rahul2762/codesync-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestKeyIsStableAndDiscriminating(t *testing.T) {
	assert.Equal(t, Key("cpp", "int main(){}"), Key("cpp", "int main(){}"))
	assert.NotEqual(t, Key("cpp", "int main(){}"), Key("javascript", "int main(){}"))
	assert.NotEqual(t, Key("cpp", "a"), Key("cpp", "b"))
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	resp := models.ExecuteResponse{Output: "x\n", Success: true}
	m.Set(ctx, "k", resp)

	got, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, resp, got)
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory()
	m.ttl = 10 * time.Millisecond
	ctx := context.Background()

	m.Set(ctx, "k", models.ExecuteResponse{Output: "x", Success: true})
	time.Sleep(20 * time.Millisecond)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok, "expired entries must read as misses")
}
