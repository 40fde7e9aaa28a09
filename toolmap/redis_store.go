package toolmap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// RedisStore is an optional IDStore backed by Redis, for operators who
// want the Tool-Call Identity Map to survive a process restart.
// Grounded on taipm-go-deep-agent's redis-backed cache usage. TTL
// eviction is delegated entirely to Redis key expiry (EX TTL on every
// write); the LRU cap of MaxEntries is not enforced here, since a
// shared Redis instance is expected to size its own eviction policy
// (maxmemory-policy) rather than have Toolify race other processes to
// trim it.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing Redis client. keyPrefix namespaces
// this store's keys from any other use of the same Redis instance.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(clientID string) string {
	return s.keyPrefix + clientID
}

// Put stores the identity with a TTL key expiry, touching it to live
// for another full TTL window, matching Map's refresh-on-touch
// semantics.
func (s *RedisStore) Put(identity types.ToolCallIdentity) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	identity.LastTouched = time.Now()

	data, err := json.Marshal(identity)
	if err != nil {
		return
	}
	s.client.Set(ctx, s.key(identity.ClientID), data, TTL)
}

// Get fetches and refreshes the identity's TTL on hit.
func (s *RedisStore) Get(clientID string) (types.ToolCallIdentity, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(clientID)).Bytes()
	if err != nil {
		return types.ToolCallIdentity{}, false
	}

	var identity types.ToolCallIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		return types.ToolCallIdentity{}, false
	}

	identity.LastTouched = time.Now()
	if refreshed, err := json.Marshal(identity); err == nil {
		s.client.Set(ctx, s.key(clientID), refreshed, TTL)
	}
	return identity, true
}

// Delete removes the identity immediately.
func (s *RedisStore) Delete(clientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.client.Del(ctx, s.key(clientID))
}

// Len reports the number of keys under this store's prefix. Intended
// for diagnostics only; it scans the keyspace and should not be called
// on the request hot path.
func (s *RedisStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

var _ IDStore = (*RedisStore)(nil)
