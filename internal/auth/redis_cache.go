package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultTokenCachePrefix namespaces verification cache keys in Redis.
const DefaultTokenCachePrefix = "veritas:tokens:"

// RedisTokenCache stores verified identities in Redis so multiple instances
// share one verification cache. Expiry is enforced server-side through key
// TTLs, so PurgeExpired is a no-op for this implementation.
type RedisTokenCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTokenCache wraps the provided client as a TokenCache. The cache
// takes ownership of the client and closes it on Close.
func NewRedisTokenCache(client redis.UniversalClient, prefix string) (*RedisTokenCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultTokenCachePrefix
	}
	return &RedisTokenCache{client: client, prefix: prefix}, nil
}

// Get retrieves the identity cached under the digest.
func (c *RedisTokenCache) Get(ctx context.Context, digest string) (Identity, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+digest).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, false, nil
		}
		return Identity{}, false, fmt.Errorf("token cache get: %w", err)
	}
	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return Identity{}, false, fmt.Errorf("token cache decode: %w", err)
	}
	return identity, true, nil
}

// Save records the identity under the digest with the provided TTL. A zero
// or negative TTL removes any existing entry instead.
func (c *RedisTokenCache) Save(ctx context.Context, digest string, identity Identity, ttl time.Duration) error {
	if digest == "" {
		return errors.New("token digest is required")
	}
	if ttl <= 0 {
		return c.Delete(ctx, digest)
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("token cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+digest, data, ttl).Err(); err != nil {
		return fmt.Errorf("token cache set: %w", err)
	}
	return nil
}

// Delete removes the digest from the cache.
func (c *RedisTokenCache) Delete(ctx context.Context, digest string) error {
	if err := c.client.Del(ctx, c.prefix+digest).Err(); err != nil {
		return fmt.Errorf("token cache delete: %w", err)
	}
	return nil
}

// PurgeExpired reports zero removals because Redis expires keys itself.
func (c *RedisTokenCache) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Ping checks that the Redis connection is healthy.
func (c *RedisTokenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}
