// Package cache provides the fixed-capacity least-recently-used cache used
// in front of the team and guild lookups.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLimit is the capacity used when a non-positive limit is requested.
const DefaultLimit = 128

// Bounded is a least-recently-used key/value store holding at most Limit
// entries. Both Put and Get mark the touched key as most recently used.
// Values are stored by reference; mutating a fetched pointer mutates the
// cached value.
type Bounded[K comparable, V any] struct {
	entries *lru.Cache[K, V]
	limit   int
}

// New creates a cache that holds at most limit entries. A limit of zero or
// less selects DefaultLimit.
func New[K comparable, V any](limit int) *Bounded[K, V] {
	if limit <= 0 {
		limit = DefaultLimit
	}

	entries, err := lru.New[K, V](limit)
	if err != nil {
		// lru.New only errs when size is <= 0
		panic(err)
	}

	return &Bounded[K, V]{
		entries: entries,
		limit:   limit,
	}
}

// Put inserts or overwrites key, marks it most recently used and evicts the
// least recently used entry when the cache is over capacity.
func (c *Bounded[K, V]) Put(key K, value V) {
	c.entries.Add(key, value)
}

// Get returns the value stored for key and marks it most recently used.
// The second return value is false when the key is absent.
func (c *Bounded[K, V]) Get(key K) (V, bool) {
	return c.entries.Get(key)
}

// Remove deletes key and reports whether it was present.
func (c *Bounded[K, V]) Remove(key K) bool {
	return c.entries.Remove(key)
}

// Len returns the number of stored entries.
func (c *Bounded[K, V]) Len() int {
	return c.entries.Len()
}

// Limit returns the capacity of the cache.
func (c *Bounded[K, V]) Limit() int {
	return c.limit
}

// Purge removes every entry.
func (c *Bounded[K, V]) Purge() {
	c.entries.Purge()
}
