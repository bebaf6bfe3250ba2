package cache

import "time"

// Eviction selects the base eviction policy a CacheBuilder stacks onto the
// PerpetualCache.
type Eviction int

const (
	EvictionLRU Eviction = iota
	EvictionFIFO
)

// CacheBuilder assembles the decorator chain described in spec §4.3:
// base perpetual store -> eviction (LRU/FIFO) -> optional blocking ->
// optional transactional overlay. Grounded on the teacher's CacheBuilder
// fluent API.
type CacheBuilder struct {
	id              string
	eviction        Eviction
	size            int
	blocking        bool
	blockingTimeout time.Duration
	transactional   bool
	logging         bool
}

// NewCacheBuilder starts building a cache identified by id (the owning
// mapper namespace).
func NewCacheBuilder(id string) *CacheBuilder {
	return &CacheBuilder{id: id, eviction: EvictionLRU, size: defaultLruCapacity}
}

func (b *CacheBuilder) Eviction(e Eviction) *CacheBuilder { b.eviction = e; return b }
func (b *CacheBuilder) Size(n int) *CacheBuilder          { b.size = n; return b }
func (b *CacheBuilder) Blocking(timeout time.Duration) *CacheBuilder {
	b.blocking = true
	b.blockingTimeout = timeout
	return b
}
func (b *CacheBuilder) Transactional() *CacheBuilder { b.transactional = true; return b }
func (b *CacheBuilder) Logging() *CacheBuilder        { b.logging = true; return b }

// Build assembles the final decorator chain. The returned Cache is the
// namespace-shared second-level cache; executors wrap it per-session in a
// TransactionalCache regardless of whether Transactional() was called here,
// so Build typically returns the base+eviction(+blocking) chain and the
// executor layer adds the per-session overlay (see executor.CachingExecutor).
func (b *CacheBuilder) Build() Cache {
	var c Cache = NewPerpetualCache(b.id)
	switch b.eviction {
	case EvictionFIFO:
		c = NewFifoCache(c, b.size)
	default:
		c = NewLruCache(c, b.size)
	}
	if b.blocking {
		c = NewBlockingCache(c, b.blockingTimeout)
	}
	if b.logging {
		c = NewLoggingCache(c)
	}
	if b.transactional {
		c = NewTransactionalCache(c)
	}
	return c
}
