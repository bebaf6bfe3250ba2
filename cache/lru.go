package cache

import (
	"container/list"
	"sync"
)

// LruCache evicts the least-recently-touched key once the configured
// capacity is exceeded. Grounded on the teacher's doubly-linked-list
// LruCache; rebuilt over container/list (stdlib — the teacher itself hand
// rolled the linked list; no pack example reaches for a third-party LRU
// library for this concern, so this keeps the corpus's own idiom while
// using the stdlib container instead of reimplementing the list).
type LruCache struct {
	delegate Cache
	capacity int

	mu      sync.Mutex
	ll      *list.List
	entries map[string]*list.Element
}

type lruEntry struct {
	key string
}

const defaultLruCapacity = 1024

// NewLruCache wraps delegate with LRU eviction at capacity (0 means the
// spec default of 1024).
func NewLruCache(delegate Cache, capacity int) *LruCache {
	if capacity <= 0 {
		capacity = defaultLruCapacity
	}
	return &LruCache{
		delegate: delegate,
		capacity: capacity,
		ll:       list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *LruCache) ID() string { return c.delegate.ID() }

func (c *LruCache) Put(key string, value any) {
	c.delegate.Put(key, value)
	c.mu.Lock()
	c.touch(key)
	for len(c.entries) > c.capacity {
		c.evictOldest()
	}
	c.mu.Unlock()
}

func (c *LruCache) Get(key string) (any, bool) {
	v, ok := c.delegate.Get(key)
	if ok {
		c.mu.Lock()
		c.touch(key)
		c.mu.Unlock()
	}
	return v, ok
}

func (c *LruCache) touch(key string) {
	if el, ok := c.entries[key]; ok {
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry{key: key})
	c.entries[key] = el
}

func (c *LruCache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	key := el.Value.(*lruEntry).key
	delete(c.entries, key)
	c.delegate.Remove(key)
	log.WithField("cache", c.ID()).WithField("key", key).Debug("lru evict")
}

func (c *LruCache) Remove(key string) {
	c.delegate.Remove(key)
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.ll.Remove(el)
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

func (c *LruCache) Clear() {
	c.delegate.Clear()
	c.mu.Lock()
	c.ll.Init()
	c.entries = make(map[string]*list.Element)
	c.mu.Unlock()
}

func (c *LruCache) Size() int { return c.delegate.Size() }
