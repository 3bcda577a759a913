// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lru

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is the per-cache bound when the caller has no
// opinion.
const DefaultCapacity = 3000

// Cache is the bounded LRU. Create with New.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries *simplelru.LRU[K, V]
	evicted uint64
}

// New returns an empty cache holding at most capacity entries. A
// non-positive capacity uses DefaultCapacity.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache[K, V]{}
	entries, err := simplelru.NewLRU[K, V](capacity, func(K, V) { c.evicted++ })
	if err != nil {
		// Only reachable with a non-positive size, excluded above.
		panic(fmt.Sprintf("lru: %v", err))
	}
	c.entries = entries
	return c
}

// Get returns the value for key and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// Peek returns the value for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Peek(key)
}

// Set stores value under key, evicting the least recently used entry
// when full. It reports whether an existing value was replaced.
func (c *Cache[K, V]) Set(key K, value V) (replaced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	replaced = c.entries.Contains(key)
	c.entries.Add(key, value)
	return replaced
}

// Delete removes key and reports whether it was present. Deletions do
// not count as evictions.
func (c *Cache[K, V]) Delete(key K) (existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := c.evicted
	existed = c.entries.Remove(key)
	c.evicted = evicted
	return existed
}

// Keys returns a snapshot of the keys, oldest first.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Purge drops every entry. simplelru reports removals through the
// eviction callback, so the counter is restored afterwards.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := c.evicted
	c.entries.Purge()
	c.evicted = evicted
}

// Evicted returns how many entries were pushed out by the capacity
// bound.
func (c *Cache[K, V]) Evicted() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evicted
}
