package auth

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
)

// AuthCache is a TTL-based in-memory cache with stale-while-revalidate.
// Entries are keyed by the BLAKE2b digest of the API key, never the key.
type AuthCache struct {
	store sync.Map // map[[32]byte]*cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	principal  *Principal
	expiresAt  time.Time
	refreshing atomic.Bool
}

// AuthCacheGetResult holds the result of a cache lookup.
type AuthCacheGetResult struct {
	Principal    *Principal
	Hit          bool
	NeedsRefresh bool
}

// NewAuthCache creates a cache with the given TTL.
func NewAuthCache(ttl time.Duration) *AuthCache {
	return &AuthCache{ttl: ttl, now: time.Now}
}

// Get performs a non-blocking cache lookup. A stale hit asks exactly one
// caller to refresh.
func (c *AuthCache) Get(apiKey string) AuthCacheGetResult {
	val, ok := c.store.Load(blake2b.Sum256([]byte(apiKey)))
	if !ok {
		return AuthCacheGetResult{}
	}

	entry := val.(*cacheEntry)
	if c.now().Before(entry.expiresAt) {
		return AuthCacheGetResult{Principal: entry.principal, Hit: true}
	}

	return AuthCacheGetResult{
		Principal:    entry.principal,
		Hit:          true,
		NeedsRefresh: entry.refreshing.CompareAndSwap(false, true),
	}
}

// Set stores a principal with a fresh TTL.
func (c *AuthCache) Set(apiKey string, p *Principal) {
	c.store.Store(blake2b.Sum256([]byte(apiKey)), &cacheEntry{
		principal: p,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *AuthCache) Delete(apiKey string) {
	c.store.Delete(blake2b.Sum256([]byte(apiKey)))
}
