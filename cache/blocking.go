package cache

import (
	"sync"
	"time"

	"github.com/zsy619/gomybatis/errs"
)

// BlockingCache gives single-filler semantics on cold misses: a reader that
// misses acquires a per-key lock and blocks until the first filler writes
// the value (Put) or removes the key (Remove), per spec §4.3/§9. Grounded
// on the teacher's acquireLock/releaseLock map-of-mutexes pattern.
type BlockingCache struct {
	delegate Cache
	timeout  time.Duration // 0 means no timeout

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBlockingCache wraps delegate with per-key blocking. timeout <= 0 means
// wait indefinitely.
func NewBlockingCache(delegate Cache, timeout time.Duration) *BlockingCache {
	return &BlockingCache{delegate: delegate, timeout: timeout, locks: make(map[string]*sync.Mutex)}
}

func (c *BlockingCache) ID() string { return c.delegate.ID() }

func (c *BlockingCache) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// Get acquires the per-key lock on a miss so only the first caller performs
// the database round-trip; concurrent callers block until Put/Remove
// releases them, then re-read the delegate.
func (c *BlockingCache) Get(key string) (any, bool) {
	if v, ok := c.delegate.Get(key); ok {
		return v, true
	}
	l := c.lockFor(key)
	if !c.acquire(l) {
		return nil, false
	}
	if v, ok := c.delegate.Get(key); ok {
		// A filler wrote the value while we waited: release and return it.
		l.Unlock()
		return v, true
	}
	// Lock held: we are the filler. Return a miss so the caller computes
	// the value and calls Put (which releases the lock).
	return nil, false
}

func (c *BlockingCache) acquire(l *sync.Mutex) bool {
	if c.timeout <= 0 {
		l.Lock()
		return true
	}
	done := make(chan struct{})
	go func() { l.Lock(); close(done) }()
	select {
	case <-done:
		return true
	case <-time.After(c.timeout):
		return false
	}
}

func (c *BlockingCache) release(key string) {
	c.mu.Lock()
	l, ok := c.locks[key]
	c.mu.Unlock()
	if ok {
		l.Unlock()
	}
}

func (c *BlockingCache) Put(key string, value any) {
	c.delegate.Put(key, value)
	c.release(key)
}

func (c *BlockingCache) Remove(key string) {
	c.delegate.Remove(key)
	c.release(key)
}

func (c *BlockingCache) Clear() {
	c.mu.Lock()
	for _, l := range c.locks {
		l.TryLock()
		l.Unlock()
	}
	c.locks = make(map[string]*sync.Mutex)
	c.mu.Unlock()
	c.delegate.Clear()
}

func (c *BlockingCache) Size() int { return c.delegate.Size() }

// GetBlocking is Get but surfaces a CacheError on timeout instead of a
// silent miss, for callers that want to fail fast rather than recompute.
func (c *BlockingCache) GetBlocking(key string) (any, bool, error) {
	if v, ok := c.delegate.Get(key); ok {
		return v, true, nil
	}
	l := c.lockFor(key)
	if !c.acquire(l) {
		return nil, false, errs.NewCacheError(key, "timed out waiting for filler")
	}
	if v, ok := c.delegate.Get(key); ok {
		l.Unlock()
		return v, true, nil
	}
	return nil, false, nil
}
