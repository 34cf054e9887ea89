// Package cache provides the in-memory resolution cache and the
// distributed/local locking primitives the resolution pipeline uses to
// serialize writes to the same logical entity.
package cache

import (
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/entitygraph/resolver/internal/models"
)

// ResolutionCache memoizes the resolved canonical entity id for a
// (normalizedName, type) pair, short-circuiting repeated lookups of
// recently-resolved names within a batch or across nearby requests.
//
// Grounded on the teacher's cache.Manager go-cache wrapping: an in-memory
// TTL map, with an optional bbolt-backed second tier attached via
// WithDisk. The graph store remains the source of truth either way.
type ResolutionCache struct {
	mem    *gocache.Cache
	disk   *PersistentStore
	ttl    time.Duration
	logger *slog.Logger
}

// DefaultTTL is how long a resolved id is trusted before a fresh lookup is
// required.
const DefaultTTL = 5 * time.Minute

// NewResolutionCache builds a cache with the given TTL; a ttl of 0 or less
// uses DefaultTTL. Expired entries are swept every ttl*2.
func NewResolutionCache(ttl time.Duration, logger *slog.Logger) *ResolutionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolutionCache{
		mem:    gocache.New(ttl, ttl*2),
		ttl:    ttl,
		logger: logger.With("component", "resolution_cache"),
	}
}

// WithDisk attaches an optional persistent second tier, so resolutions
// survive a process restart instead of requiring a cold graph lookup.
// Single-process deployments opt into this; clustered deployments rely on
// DistributedLock-serialized writes and leave disk nil.
func (c *ResolutionCache) WithDisk(store *PersistentStore) *ResolutionCache {
	c.disk = store
	return c
}

// Key builds the cache key for a normalized name + entity type pair.
func Key(normalizedName string, t models.EntityType) string {
	return string(t) + "\x1f" + normalizedName
}

// Get returns the cached canonical entity id, if present and unexpired. On
// an in-memory miss with a disk tier attached, it falls back to the disk
// entry and repopulates memory so the next lookup is fast again.
func (c *ResolutionCache) Get(normalizedName string, t models.EntityType) (string, bool) {
	key := Key(normalizedName, t)
	if v, found := c.mem.Get(key); found {
		id, ok := v.(string)
		return id, ok
	}

	if c.disk == nil {
		return "", false
	}
	id, found := c.disk.get(key, c.ttl)
	if !found {
		return "", false
	}
	c.mem.SetDefault(key, id)
	return id, true
}

// Set stores the canonical entity id resolved for a normalized name, using
// the cache's default TTL. Failures writing through to disk are logged and
// otherwise ignored — the in-memory entry still serves this process.
func (c *ResolutionCache) Set(normalizedName string, t models.EntityType, entityID string) {
	key := Key(normalizedName, t)
	c.mem.SetDefault(key, entityID)
	if c.disk == nil {
		return
	}
	if err := c.disk.set(key, entityID); err != nil {
		c.logger.Warn("failed to persist resolution to disk cache", "key", key, "error", err)
	}
}

// Invalidate removes a cached resolution, used after a merge changes what
// a normalized name resolves to.
func (c *ResolutionCache) Invalidate(normalizedName string, t models.EntityType) {
	key := Key(normalizedName, t)
	c.mem.Delete(key)
	if c.disk == nil {
		return
	}
	if err := c.disk.delete(key); err != nil {
		c.logger.Warn("failed to delete resolution from disk cache", "key", key, "error", err)
	}
}

// Flush clears every in-memory entry. An attached disk tier is not
// cleared, so Get can still return entries read back from it.
func (c *ResolutionCache) Flush() {
	c.mem.Flush()
}

// ItemCount reports the number of live cache entries, used by health/debug
// endpoints.
func (c *ResolutionCache) ItemCount() int {
	return c.mem.ItemCount()
}
