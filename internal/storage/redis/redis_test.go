package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offmode/brickd/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := NewFromClient(client)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGrantStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

	grant := storage.UnlockGrant{Identifier: "maps.google.com", GrantedAt: now, DurationMinutes: 10}
	require.NoError(t, store.Grants().Upsert(ctx, grant))

	got, err := store.Grants().Get(ctx, "maps.google.com")
	require.NoError(t, err)
	assert.Equal(t, 10, got.DurationMinutes)
	assert.True(t, got.GrantedAt.Equal(now))

	all, err := store.Grants().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.Grants().Delete(ctx, "maps.google.com"))
	_, err = store.Grants().Get(ctx, "maps.google.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Grants().Delete(ctx, "maps.google.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGrantStoreUpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Grants().Upsert(ctx, storage.UnlockGrant{
		Identifier: "com.spotify", GrantedAt: now, DurationMinutes: 5,
	}))
	require.NoError(t, store.Grants().Upsert(ctx, storage.UnlockGrant{
		Identifier: "com.spotify", GrantedAt: now, DurationMinutes: 20,
	}))

	got, err := store.Grants().Get(ctx, "com.spotify")
	require.NoError(t, err)
	assert.Equal(t, 20, got.DurationMinutes)

	all, err := store.Grants().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCountdownStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 4, 23, 0, 0, 0, time.UTC)

	countdown := storage.Countdown{SessionID: "sleep", StartedAt: now, TotalMinutes: 15}
	require.NoError(t, store.Countdowns().Set(ctx, countdown))

	got, err := store.Countdowns().Get(ctx, "sleep")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, got.Remaining(now.Add(10*time.Minute)))

	all, err := store.Countdowns().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.Countdowns().Delete(ctx, "sleep"))
	_, err = store.Countdowns().Get(ctx, "sleep")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
