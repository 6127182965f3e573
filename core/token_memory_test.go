package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := NewToken("doej", now, 0)
	b := NewToken("doej", now, time.Hour)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 32)
	assert.Nil(t, a.ExpiresAt)
	require.NotNil(t, b.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *b.ExpiresAt)
	assert.False(t, b.ExpiredAt(now))
	assert.True(t, b.ExpiredAt(now.Add(time.Hour)))
	assert.False(t, a.ExpiredAt(now.Add(100*365*24*time.Hour)))
}

func TestMemoryTokenManager_AddLookupRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTokenManager()
	tok := NewToken("doej", time.Now(), time.Hour)

	require.NoError(t, m.Add(ctx, tok))

	got, ok, err := m.Lookup(ctx, tok.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok, got)

	require.NoError(t, m.Remove(ctx, tok.ID))
	_, ok, err = m.Lookup(ctx, tok.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent id is a no-op.
	require.NoError(t, m.Remove(ctx, tok.ID))
	require.NoError(t, m.Remove(ctx, "never-existed"))
}

func TestMemoryTokenManager_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTokenManager()
	first := Token{ID: "same", Username: "alice", IssuedAt: time.Now()}
	second := Token{ID: "same", Username: "bob", IssuedAt: time.Now()}

	require.NoError(t, m.Add(ctx, first))
	require.NoError(t, m.Add(ctx, second))

	got, ok, err := m.Lookup(ctx, "same")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryTokenManager_LazyExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	withClock(t, &now)

	ctx := context.Background()
	m := NewMemoryTokenManager()
	tok := NewToken("doej", now, time.Minute)
	require.NoError(t, m.Add(ctx, tok))

	_, ok, err := m.Lookup(ctx, tok.ID)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = m.Lookup(ctx, tok.ID)
	require.NoError(t, err)
	assert.False(t, ok, "expired token must be absent")
	assert.Equal(t, 0, m.Len(), "expired token found by lookup is removed")
}

func TestMemoryTokenManager_ManyTokensPerUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTokenManager()
	a := NewToken("doej", time.Now(), 0)
	b := NewToken("doej", time.Now(), 0)
	require.NoError(t, m.Add(ctx, a))
	require.NoError(t, m.Add(ctx, b))

	for _, id := range []string{a.ID, b.ID} {
		_, ok, err := m.Lookup(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	snapshot, err := m.Tokens(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
}

func TestMemoryTokenManager_SnapshotIsIndependent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTokenManager()
	tok := NewToken("doej", time.Now(), 0)
	require.NoError(t, m.Add(ctx, tok))

	snapshot, err := m.Tokens(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Remove(ctx, tok.ID))

	assert.Len(t, snapshot, 1)
	again, err := m.Tokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMemoryTokenManager_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemoryTokenManager()

	_, _, err := m.Lookup(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryTokenManager_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTokenManager()
	shared := NewToken("doej", time.Now(), 0)
	require.NoError(t, m.Add(ctx, shared))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			own := NewToken(fmt.Sprintf("user%d", i), time.Now(), time.Hour)
			_ = m.Add(ctx, own)
			for j := 0; j < 20; j++ {
				_, ok, err := m.Lookup(ctx, shared.ID)
				if err != nil || !ok {
					t.Errorf("shared token lookup failed: ok=%v err=%v", ok, err)
					return
				}
				_, _ = m.Tokens(ctx)
			}
			_ = m.Remove(ctx, own.ID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, m.Len())
}
