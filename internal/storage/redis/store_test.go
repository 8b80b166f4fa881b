package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/storage/kv"
)

func newTestStore(t *testing.T, prefix string) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, prefix), mr
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, "storefront")

	_, err := s.Get(ctx, "cart")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set(ctx, "cart", `[]`))
	assert.True(t, mr.Exists("storefront:cart"))

	v, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.Delete(ctx, "cart"))
	_, err = s.Get(ctx, "cart")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStore_ClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, "storefront")

	require.NoError(t, s.Set(ctx, "username", "pepe"))
	require.NoError(t, s.Set(ctx, "dni", "123"))
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, s.Clear(ctx))

	assert.False(t, mr.Exists("storefront:username"))
	assert.False(t, mr.Exists("storefront:dni"))
	assert.True(t, mr.Exists("other:key"))
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, "storefront")
	mr.Close()

	_, err := s.Get(ctx, "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, kv.ErrNotFound)
	assert.Error(t, s.Ping(ctx))
}
