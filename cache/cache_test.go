package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerpetualCacheBasics(t *testing.T) {
	c := NewPerpetualCache("ns")
	c.Put("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Remove("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestLruCacheEvictsOldest(t *testing.T) {
	c := NewLruCache(NewPerpetualCache("ns"), 2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // touch a, making b the LRU victim
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestFifoCacheEvictsByInsertionOrder(t *testing.T) {
	c := NewFifoCache(NewPerpetualCache("ns"), 2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // touching does not save 'a' from FIFO eviction
	c.Put("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "a should have been evicted regardless of reads")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestBlockingCacheSingleFiller(t *testing.T) {
	c := NewBlockingCache(NewPerpetualCache("ns"), time.Second)
	_, ok := c.Get("k")
	require.False(t, ok)

	done := make(chan struct{})
	go func() {
		_, ok := c.Get("k")
		assert.True(t, ok)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	c.Put("k", "value")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiting reader was never unblocked")
	}
}

func TestTransactionalCacheCommitVisibility(t *testing.T) {
	shared := NewPerpetualCache("ns")
	sessionA := NewTransactionalCache(shared)
	sessionB := NewTransactionalCache(shared)

	sessionA.Put("k", "X")

	// Not yet visible to another session's overlay before commit.
	_, ok := sessionB.Get("k")
	assert.False(t, ok)

	sessionA.Commit()

	v, ok := sessionB.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "X", v)
}

func TestTransactionalCacheRollbackDiscardsWrites(t *testing.T) {
	shared := NewPerpetualCache("ns")
	session := NewTransactionalCache(shared)

	session.Put("k", "X")
	session.Rollback()

	_, ok := shared.Get("k")
	assert.False(t, ok, "rolled-back write must never reach the shared cache")
}

func TestCacheKeyEqualityAndOrderSensitivity(t *testing.T) {
	k1 := NewCacheKey()
	k1.UpdateAll("stmt.select", 0, 10, "select * from t where id=?", 7, "env1")

	k2 := NewCacheKey()
	k2.UpdateAll("stmt.select", 0, 10, "select * from t where id=?", 7, "env1")

	assert.True(t, k1.Equal(k2))

	k3 := NewCacheKey()
	k3.UpdateAll("stmt.select", 0, 10, "select * from t where id=?", 8, "env1")
	assert.False(t, k1.Equal(k3))
}
