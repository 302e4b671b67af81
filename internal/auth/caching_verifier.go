package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how long a verified identity is reused before the
// identity provider is consulted again.
const DefaultCacheTTL = 5 * time.Minute

// CachingOption configures a CachingVerifier.
type CachingOption func(*CachingVerifier)

// WithCache injects a custom TokenCache implementation.
func WithCache(cache TokenCache) CachingOption {
	return func(v *CachingVerifier) {
		if cache != nil {
			v.cache = cache
		}
	}
}

// WithCacheTTL overrides the verification cache TTL.
func WithCacheTTL(ttl time.Duration) CachingOption {
	return func(v *CachingVerifier) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithLogger overrides the logger used for cache failures.
func WithLogger(logger *slog.Logger) CachingOption {
	return func(v *CachingVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithClock overrides the clock, primarily for tests.
func WithClock(now func() time.Time) CachingOption {
	return func(v *CachingVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// CachingVerifier wraps a TokenVerifier with a verification cache. Cache
// reads and writes are best effort: a cache outage degrades to direct
// verification instead of failing requests. Concurrent misses for the same
// token collapse into a single provider round trip.
type CachingVerifier struct {
	verifier TokenVerifier
	cache    TokenCache
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	group    singleflight.Group
}

// NewCachingVerifier wraps the verifier with an in-memory cache unless
// another cache is supplied.
func NewCachingVerifier(verifier TokenVerifier, opts ...CachingOption) *CachingVerifier {
	wrapped := &CachingVerifier{
		verifier: verifier,
		ttl:      DefaultCacheTTL,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(wrapped)
		}
	}
	if wrapped.cache == nil {
		wrapped.cache = NewMemoryTokenCache()
	}
	return wrapped
}

// Verify resolves the token through the cache, falling back to the wrapped
// verifier on a miss. Only successful verifications are cached.
func (v *CachingVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrTokenRejected
	}
	digest := hashToken(token)
	identity, ok, err := v.cache.Get(ctx, digest)
	if err != nil {
		v.logger.Warn("token cache read failed", "error", err)
	} else if ok {
		if identity.ExpiresAt.IsZero() || v.now().Before(identity.ExpiresAt) {
			return identity, nil
		}
	}
	value, err, _ := v.group.Do(digest, func() (interface{}, error) {
		resolved, err := v.verifier.Verify(ctx, token)
		if err != nil {
			return Identity{}, err
		}
		v.store(ctx, digest, resolved)
		return resolved, nil
	})
	if err != nil {
		return Identity{}, err
	}
	resolved, ok := value.(Identity)
	if !ok {
		return Identity{}, ErrTokenRejected
	}
	return resolved, nil
}

func (v *CachingVerifier) store(ctx context.Context, digest string, identity Identity) {
	ttl := v.ttl
	if !identity.ExpiresAt.IsZero() {
		remaining := identity.ExpiresAt.Sub(v.now())
		if remaining <= 0 {
			return
		}
		if remaining < ttl {
			ttl = remaining
		}
	}
	if err := v.cache.Save(ctx, digest, identity, ttl); err != nil {
		v.logger.Warn("token cache write failed", "error", err)
	}
}

// PurgeExpired removes expired cache entries and reports how many were
// dropped.
func (v *CachingVerifier) PurgeExpired(ctx context.Context) (int, error) {
	return v.cache.PurgeExpired(ctx, v.now())
}

// Ping verifies the backing cache is reachable.
func (v *CachingVerifier) Ping(ctx context.Context) error {
	return v.cache.Ping(ctx)
}

// Close releases resources held by the backing cache when it exposes a close
// method.
func (v *CachingVerifier) Close() error {
	if closer, ok := v.cache.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
