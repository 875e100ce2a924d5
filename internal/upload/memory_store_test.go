package upload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	t.Cleanup(func() { _ = store.Close() })

	_, err := store.Get(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)

	s := NewSession(7, "https://cdn/x/a.bin")
	require.NoError(t, store.Put(context.Background(), s))

	got, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingShortenChoice, got.State)
	assert.Equal(t, "https://cdn/x/a.bin", got.FileReference)

	require.NoError(t, store.Delete(context.Background(), 7))
	_, err = store.Get(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	t.Cleanup(func() { _ = store.Close() })

	s := NewSession(7, "https://cdn/x/a.bin")
	require.NoError(t, store.Put(context.Background(), s))

	got, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	got.State = StateAwaitingFileName

	again, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingShortenChoice, again.State,
		"mutating a returned session must not affect the store")
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	store := NewMemoryStore(10*time.Millisecond, 0)
	t.Cleanup(func() { _ = store.Close() })

	s := NewSession(7, "https://cdn/x/a.bin")
	s.LastActivityAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, store.Put(context.Background(), s))

	_, err := store.Get(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStoreJanitorSweep(t *testing.T) {
	store := NewMemoryStore(5*time.Millisecond, 5*time.Millisecond)
	t.Cleanup(func() { _ = store.Close() })

	s := NewSession(7, "https://cdn/x/a.bin")
	s.LastActivityAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, store.Put(context.Background(), s))

	assert.Eventually(t, func() bool { return store.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestSessionExpired(t *testing.T) {
	s := NewSession(1, "u")
	now := time.Now().UTC()

	assert.False(t, s.Expired(time.Minute, now))
	assert.False(t, s.Expired(0, now.Add(time.Hour)), "zero TTL disables expiry")

	s.LastActivityAt = now.Add(-2 * time.Minute)
	assert.True(t, s.Expired(time.Minute, now))
}
