// Package cache implements the Cache Layer: a base key/value store with a
// decorator chain (eviction -> optional blocking -> optional transactional
// overlay), plus the composite CacheKey used by the executor.
//
// Grounded on the teacher's cache/cache.go: PerpetualCache, LruCache,
// FifoCache, and BlockingCache were real there and are reused with minor
// cleanup (the teacher kept two parallel storage maps for a legacy and a
// new interface; this package keeps a single map). TransactionalCache was a
// pure pass-through stub in the teacher (Put/Get/Remove delegated straight
// to the inner cache, no Commit/Rollback methods existed at all) and is
// rebuilt here with real buffered commit/rollback semantics per spec §4.3
// and the second-level-cache-visibility scenario in spec §8.
package cache

import (
	"sync"

	"github.com/zsy619/gomybatis/internal/logging"
)

var log = logging.Get("cache")

// Cache is a namespace-scoped keyed store.
type Cache interface {
	ID() string
	Put(key string, value any)
	Get(key string) (any, bool)
	Remove(key string)
	Clear()
	Size() int
}

// PerpetualCache is the base, unbounded store every decorator wraps.
type PerpetualCache struct {
	id    string
	mu    sync.Mutex
	store map[string]any
}

// NewPerpetualCache builds an empty base cache identified by id (typically
// the mapper namespace).
func NewPerpetualCache(id string) *PerpetualCache {
	return &PerpetualCache{id: id, store: make(map[string]any)}
}

func (c *PerpetualCache) ID() string { return c.id }

func (c *PerpetualCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = value
}

func (c *PerpetualCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	return v, ok
}

func (c *PerpetualCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

func (c *PerpetualCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]any)
}

func (c *PerpetualCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// LoggingCache decorates delegate with Debug-level hit/miss/put logging,
// wired to the ambient logrus stack (spec's Cache Layer calls for
// observable behavior; the teacher's LoggingCache was a thin unimplemented
// pass-through, made real here).
type LoggingCache struct {
	delegate     Cache
	hits, misses int64
	mu           sync.Mutex
}

// NewLoggingCache wraps delegate with hit/miss logging and counters.
func NewLoggingCache(delegate Cache) *LoggingCache {
	return &LoggingCache{delegate: delegate}
}

func (c *LoggingCache) ID() string { return c.delegate.ID() }

func (c *LoggingCache) Put(key string, value any) {
	log.WithField("cache", c.ID()).WithField("key", key).Debug("cache put")
	c.delegate.Put(key, value)
}

func (c *LoggingCache) Get(key string) (any, bool) {
	v, ok := c.delegate.Get(key)
	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	hits, misses := c.hits, c.misses
	c.mu.Unlock()
	log.WithField("cache", c.ID()).WithField("key", key).WithField("hit", ok).
		WithField("hits", hits).WithField("misses", misses).Debug("cache get")
	return v, ok
}

func (c *LoggingCache) Remove(key string) { c.delegate.Remove(key) }
func (c *LoggingCache) Clear()            { c.delegate.Clear() }
func (c *LoggingCache) Size() int         { return c.delegate.Size() }

// Stats returns (hits, misses) observed so far.
func (c *LoggingCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
