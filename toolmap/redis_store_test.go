package toolmap

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "toolmap:test:")
}

func TestRedisStorePutAndGet(t *testing.T) {
	store := newTestRedisStore(t)

	id := types.ToolCallIdentity{ClientID: NewClientID(), UpstreamID: "idx_0"}
	store.Put(id)

	got, ok := store.Get(id.ClientID)
	require.True(t, ok)
	assert.Equal(t, "idx_0", got.UpstreamID)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := newTestRedisStore(t)
	_, ok := store.Get("call_missing")
	assert.False(t, ok)
}

func TestRedisStoreDelete(t *testing.T) {
	store := newTestRedisStore(t)
	id := types.ToolCallIdentity{ClientID: NewClientID()}
	store.Put(id)
	store.Delete(id.ClientID)
	_, ok := store.Get(id.ClientID)
	assert.False(t, ok)
}

func TestRedisStoreLen(t *testing.T) {
	store := newTestRedisStore(t)
	store.Put(types.ToolCallIdentity{ClientID: NewClientID()})
	store.Put(types.ToolCallIdentity{ClientID: NewClientID()})
	assert.Equal(t, 2, store.Len())
}
