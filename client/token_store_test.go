package client_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-folio-auth/client"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	store := client.NewTokenStore(client.NewMemoryStorage())

	_, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "raw-token"))
	raw, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "raw-token", raw)

	require.NoError(t, store.SaveSnapshot(ctx, "raw-token", client.Identity{Authenticated: true, UserID: "u1"}))
	require.NoError(t, store.Remove(ctx))

	_, ok, err = store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Snapshot(ctx, "raw-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenStore_SetEmptyRemoves(t *testing.T) {
	ctx := context.Background()
	store := client.NewTokenStore(nil)

	require.NoError(t, store.Set(ctx, "raw-token"))
	require.NoError(t, store.Set(ctx, ""))

	_, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenStore_SnapshotBoundToToken(t *testing.T) {
	ctx := context.Background()
	storage := client.NewMemoryStorage()
	store := client.NewTokenStore(storage)

	id := client.Identity{Authenticated: true, UserID: "u1", UserName: "alice", Roles: []string{"User"}}
	require.NoError(t, store.SaveSnapshot(ctx, "token-a", id))

	got, ok, err := store.Snapshot(ctx, "token-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, id.Equal(got))

	_, ok, err = store.Snapshot(ctx, "token-b")
	require.NoError(t, err)
	assert.False(t, ok)

	_, present, _ := storage.Get(ctx, client.DefaultSnapshotKey)
	assert.False(t, present, "mismatched snapshot is deleted")
}

func TestTokenStore_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	storage := client.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, client.DefaultSnapshotKey, "not json"))

	_, ok, err := client.NewTokenStore(storage).Snapshot(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenStore_SnapshotWithoutUserIDRejected(t *testing.T) {
	ctx := context.Background()
	storage := client.NewMemoryStorage()
	store := client.NewTokenStore(storage)
	raw := aliceToken(t)

	require.NoError(t, store.Set(ctx, raw))
	slot := `{"fingerprint":"` + client.Fingerprint(raw) + `","identity":{"authenticated":true,"userName":"mallory"}}`
	require.NoError(t, storage.Set(ctx, client.DefaultSnapshotKey, slot))

	_, ok, err := store.Snapshot(ctx, raw)
	require.NoError(t, err)
	assert.False(t, ok)

	_, present, _ := storage.Get(ctx, client.DefaultSnapshotKey)
	assert.False(t, present, "the unusable snapshot is deleted")

	// the publisher falls back to the token itself
	require.NoError(t, storage.Set(ctx, client.DefaultSnapshotKey, slot))
	id := client.NewAuthState(store).CurrentIdentity(ctx)
	assert.Equal(t, "u-alice", id.UserID)
	assert.Equal(t, "alice", id.UserName)
}

func TestTokenStore_CustomKeys(t *testing.T) {
	ctx := context.Background()
	storage := client.NewMemoryStorage()
	store := client.NewTokenStore(storage, client.WithKeys("tok", ""))

	require.NoError(t, store.Set(ctx, "raw"))
	v, ok, _ := storage.Get(ctx, "tok")
	assert.True(t, ok)
	assert.Equal(t, "raw", v)

	require.NoError(t, store.SaveSnapshot(ctx, "raw", client.Identity{Authenticated: true, UserID: "u1"}))
	_, ok, _ = storage.Get(ctx, client.DefaultSnapshotKey)
	assert.True(t, ok)
}

func TestTokenStore_StorageUnavailable(t *testing.T) {
	ctx := context.Background()
	storage := newFlakyStorage()
	storage.down.Store(true)
	store := client.NewTokenStore(storage)

	_, _, err := store.Get(ctx)
	assert.Equal(t, token.KindStorageUnavailable, token.KindOf(err))

	assert.Equal(t, token.KindStorageUnavailable, token.KindOf(store.Set(ctx, "raw")))
	assert.Equal(t, token.KindStorageUnavailable, token.KindOf(store.Remove(ctx)))
}

func TestFingerprint(t *testing.T) {
	assert.Len(t, client.Fingerprint("abc"), 64)
	assert.Equal(t, client.Fingerprint("abc"), client.Fingerprint("abc"))
	assert.NotEqual(t, client.Fingerprint("abc"), client.Fingerprint("abd"))
}
