package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCredentialStore_SetGetClear(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewCredentialStores(client, "", time.Hour).For("client-a")
	ctx := context.Background()

	_, err := store.Get(ctx)
	require.ErrorIs(t, err, domainauth.ErrNoCredential)

	require.NoError(t, store.Set(ctx, "tok-1"))
	assert.True(t, mr.Exists(DefaultKeyPrefix+"client-a"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultKeyPrefix+"client-a"))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domainauth.Credential("tok-1"), got)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Get(ctx)
	require.ErrorIs(t, err, domainauth.ErrNoCredential)
	require.NoError(t, store.Clear(ctx))
}

func TestCredentialStore_ClientsAreIsolated(t *testing.T) {
	_, client := setupMiniredis(t)
	stores := NewCredentialStores(client, "test:", 0)
	ctx := context.Background()

	a := stores.For("a")
	b := stores.For("b")
	require.NoError(t, a.Set(ctx, "tok-a"))

	_, err := b.Get(ctx)
	require.ErrorIs(t, err, domainauth.ErrNoCredential)

	require.NoError(t, b.Set(ctx, "tok-b"))
	require.NoError(t, a.Clear(ctx))

	got, err := b.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domainauth.Credential("tok-b"), got)
}

func TestCredentialStore_Expires(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewCredentialStores(client, "", 10*time.Minute).For("client-a")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tok-1"))
	mr.FastForward(11 * time.Minute)

	_, err := store.Get(ctx)
	require.ErrorIs(t, err, domainauth.ErrNoCredential)
}

func TestCredentialStore_RejectsEmpty(t *testing.T) {
	_, client := setupMiniredis(t)
	store := NewCredentialStores(client, "", 0).For("client-a")
	assert.Error(t, store.Set(context.Background(), ""))
}

func TestCredentialStore_CorruptValue(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewCredentialStores(client, "", 0).For("client-a")
	require.NoError(t, mr.Set(DefaultKeyPrefix+"client-a", "not-json"))

	_, err := store.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainauth.ErrNoCredential)
}

func TestCredentialStore_ServerErrors(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewCredentialStores(client, "", 0).For("client-a")
	mr.SetError("ERR injected failure")

	_, err := store.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainauth.ErrNoCredential)
	assert.Error(t, store.Set(context.Background(), "tok"))
	assert.Error(t, store.Clear(context.Background()))
}
