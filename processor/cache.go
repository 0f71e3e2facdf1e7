package processor

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes per-declaration outcomes keyed by node identity and content
// fingerprint. At most one computation is in flight per key, no matter how
// many goroutines ask for it; all of them observe the same result.
//
// Entries remember the snapshot version that produced them. A computation for
// an older snapshot never overwrites an entry written for a newer one, and a
// sweep never evicts entries that a newer snapshot has touched. This keeps the
// cache consistent when a host abandons a snapshot and starts the next one
// while work for the old one is still running.
//
// The zero value is ready to use. A Cache must not be copied after first use.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[NodeID]*cacheEntry[V]
	flights singleflight.Group
}

type cacheEntry[V any] struct {
	fp      Fingerprint
	version uint64
	value   V
}

// GetOrCompute returns the cached value for the given node if its fingerprint
// matches. Otherwise it calls compute, stores the result, and returns it. The
// second return value is true if the value came from the cache.
//
// compute must not panic.
func (c *Cache[V]) GetOrCompute(id NodeID, fp Fingerprint, version uint64, compute func() V) (V, bool) {
	if v, ok := c.lookup(id, fp, version); ok {
		return v, true
	}
	key := string(id) + "\x00" + strconv.FormatUint(uint64(fp), 16)
	res, _, _ := c.flights.Do(key, func() (interface{}, error) {
		// a flight that just finished may already have stored it
		if v, ok := c.lookup(id, fp, version); ok {
			return v, nil
		}
		v := compute()
		c.store(id, fp, version, v)
		return v, nil
	})
	return res.(V), false
}

func (c *Cache[V]) lookup(id NodeID, fp Fingerprint, version uint64) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	older := ok && e.version < version
	c.mu.RUnlock()
	if !ok || e.fp != fp {
		var zero V
		return zero, false
	}
	if older {
		c.mu.Lock()
		// still the same entry? then record that this version relies on it
		if c.entries[id] == e && e.version < version {
			e.version = version
		}
		c.mu.Unlock()
	}
	return e.value, true
}

func (c *Cache[V]) store(id NodeID, fp Fingerprint, version uint64, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[NodeID]*cacheEntry[V]{}
	}
	if e, ok := c.entries[id]; ok && e.version > version {
		// a newer snapshot got here first
		return
	}
	c.entries[id] = &cacheEntry[V]{fp: fp, version: version, value: v}
}

// Sweep evicts the entries of all nodes that are not in live, except entries
// that a snapshot newer than version has used. It returns the number of
// evicted entries.
func (c *Cache[V]) Sweep(live map[NodeID]struct{}, version uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for id, e := range c.entries {
		if _, ok := live[id]; ok || e.version > version {
			continue
		}
		delete(c.entries, id)
		evicted++
	}
	return evicted
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
