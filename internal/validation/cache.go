package validation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaCache is a TTL-based in-memory cache of compiled parameter schemas.
// Uses sync.Map for lock-free reads on the hot path.
type SchemaCache struct {
	store sync.Map // map[string]*schemaCacheEntry
	ttl   time.Duration
}

type schemaCacheEntry struct {
	schema     *jsonschema.Schema
	digest     string
	expiresAt  time.Time
	refreshing atomic.Bool
}

// CacheGetResult holds the result of a cache lookup.
type CacheGetResult struct {
	Schema       *jsonschema.Schema
	Digest       string // digest of the schema document Schema was compiled from
	Hit          bool   // a value was found (fresh or stale)
	NeedsRefresh bool   // expired and this caller won the right to recompile
}

// NewSchemaCache creates a cache with the given TTL.
func NewSchemaCache(ttl time.Duration) *SchemaCache {
	return &SchemaCache{ttl: ttl}
}

// Get performs a non-blocking cache lookup.
// Returns stale entries with NeedsRefresh=true when expired.
func (c *SchemaCache) Get(key string) CacheGetResult {
	val, ok := c.store.Load(key)
	if !ok {
		return CacheGetResult{}
	}

	entry := val.(*schemaCacheEntry)
	if time.Now().Before(entry.expiresAt) {
		return CacheGetResult{Schema: entry.schema, Digest: entry.digest, Hit: true}
	}

	// only one goroutine wins the CAS
	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return CacheGetResult{
		Schema:       entry.schema,
		Digest:       entry.digest,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a compiled schema and the digest of its source with a fresh TTL.
func (c *SchemaCache) Set(key, digest string, schema *jsonschema.Schema) {
	c.store.Store(key, &schemaCacheEntry{
		schema:    schema,
		digest:    digest,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *SchemaCache) Delete(key string) {
	c.store.Delete(key)
}
