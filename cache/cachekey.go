package cache

import (
	"fmt"
	"strings"
)

// CacheKey is the composite ordered hash described in spec §3: identity of
// two keys requires an identical update sequence and per-step hashes.
// Update order is fixed by the executor: statement id, row-bounds offset,
// row-bounds limit, SQL text, every parameter value in binding order,
// environment id.
type CacheKey struct {
	hashcode int32
	checksum int64
	count    int
	updates  []any
}

const (
	cacheKeyMultiplier = 37
	cacheKeySeed       = 17
)

// NewCacheKey starts an empty key; call Update for each component in order.
func NewCacheKey() *CacheKey {
	return &CacheKey{hashcode: cacheKeySeed}
}

// Update folds one more component into the key, in the caller's chosen
// order. Values are hashed via their fmt.Sprintf("%#v") form rather
// than Go's native hash/maphash so the key is stable across runs (usable
// for any future on-disk cache) and independent of pointer identity.
func (k *CacheKey) Update(value any) {
	h := valueHash(value)
	k.count++
	k.checksum += int64(h)
	h *= int32(k.count)
	k.hashcode = cacheKeyMultiplier*k.hashcode + h
	k.updates = append(k.updates, value)
}

// UpdateAll folds multiple components in order.
func (k *CacheKey) UpdateAll(values ...any) {
	for _, v := range values {
		k.Update(v)
	}
}

// String renders a stable, map-key-usable identity for this CacheKey.
// Equal CacheKeys (same update sequence and values) always render equal
// strings, satisfying the invariant in spec §8.
func (k *CacheKey) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d:%d", k.hashcode, k.checksum, k.count)
	for _, v := range k.updates {
		b.WriteByte(':')
		fmt.Fprintf(&b, "%#v", v)
	}
	return b.String()
}

// Equal reports whether two keys were built from an identical update
// sequence.
func (k *CacheKey) Equal(other *CacheKey) bool {
	if other == nil {
		return false
	}
	return k.String() == other.String()
}

func valueHash(value any) int32 {
	s := fmt.Sprintf("%#v", value)
	var h int32 = cacheKeySeed
	for i := 0; i < len(s); i++ {
		h = cacheKeyMultiplier*h + int32(s[i])
	}
	return h
}
