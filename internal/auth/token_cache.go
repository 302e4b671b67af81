package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenCache stores verified identities keyed by token digest so repeated
// requests skip the identity provider round trip.
type TokenCache interface {
	Get(ctx context.Context, digest string) (Identity, bool, error)
	Save(ctx context.Context, digest string, identity Identity, ttl time.Duration) error
	Delete(ctx context.Context, digest string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Ping(ctx context.Context) error
}

// MemoryTokenCache keeps verified identities in-memory. It is safe for
// concurrent use and primarily intended for development or single-instance
// deployments.
type MemoryTokenCache struct {
	mu      sync.RWMutex
	entries map[string]cachedIdentity
	now     func() time.Time
}

type cachedIdentity struct {
	identity  Identity
	expiresAt time.Time
}

// NewMemoryTokenCache constructs an in-memory cache implementation.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{entries: make(map[string]cachedIdentity), now: time.Now}
}

// Get retrieves the identity cached under the digest when its entry has not
// expired.
func (c *MemoryTokenCache) Get(ctx context.Context, digest string) (Identity, bool, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, false, err
	}
	c.mu.RLock()
	entry, ok := c.entries[digest]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return Identity{}, false, nil
	}
	return entry.identity, true, nil
}

// Save records the identity under the digest for the provided TTL. A zero or
// negative TTL removes any existing entry instead.
func (c *MemoryTokenCache) Save(ctx context.Context, digest string, identity Identity, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if digest == "" {
		return errors.New("token digest is required")
	}
	if ttl <= 0 {
		return c.Delete(ctx, digest)
	}
	expiresAt := c.now().Add(ttl)
	c.mu.Lock()
	c.entries[digest] = cachedIdentity{identity: identity, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Delete removes the digest from the cache.
func (c *MemoryTokenCache) Delete(ctx context.Context, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.entries, digest)
	c.mu.Unlock()
	return nil
}

// PurgeExpired removes entries whose TTL has elapsed and reports how many
// were dropped.
func (c *MemoryTokenCache) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed := 0
	c.mu.Lock()
	for digest, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, digest)
			removed++
		}
	}
	c.mu.Unlock()
	return removed, nil
}

// Ping always reports success for the in-memory cache.
func (c *MemoryTokenCache) Ping(context.Context) error {
	return nil
}
