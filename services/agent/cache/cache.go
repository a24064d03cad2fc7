// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the fixed-capacity TTL cache placed in front of the
// record fetch.
//
// # Description
//
// Entries are kept in insertion order. A read older than the TTL is treated
// as a miss and removes the entry. Inserting a new key at capacity evicts the
// entry with the oldest insertion time. Updating an existing key refreshes
// its insertion time and moves it to the back, without evicting anything.
//
// # Thread Safety
//
// Cache is safe for concurrent use. One mutex guards each instance.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Default sizing.
const (
	DefaultTTL        = 60 * time.Second
	DefaultMaxEntries = 200
)

// Cache is a TTL- and capacity-bounded key/value cache.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest insertion
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	name    string

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now  func() time.Time
	name string
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithName sets the "cache" attribute on exported eviction metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New creates a cache.
//
// # Inputs
//
//   - ttl: Maximum entry age. Non-positive uses DefaultTTL.
//   - maxEntries: Capacity. Non-positive uses DefaultMaxEntries.
//   - opts: Clock and name overrides.
func New[V any](ttl time.Duration, maxEntries int, opts ...Option) *Cache[V] {
	o := options{now: time.Now, name: "records"}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache[V]{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxEntries,
		now:     o.now,
		name:    o.name,
	}
}

// Get returns the value for key if present and younger than the TTL. An entry
// whose age equals the TTL is expired.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.removeElement(elem)
		c.misses.Add(1)
		recordEviction(ctx, c.name, evictExpired)
		return zero, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key.
func (c *Cache[V]) Set(ctx context.Context, key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.insertedAt = now
		c.order.MoveToBack(elem)
		return
	}

	for c.order.Len() >= c.maxSize {
		c.removeElement(c.order.Front())
		recordEviction(ctx, c.name, evictCapacity)
	}

	c.entries[key] = c.order.PushBack(&entry[V]{key: key, value: value, insertedAt: now})
}

// Len returns the number of stored entries, including expired ones not yet
// observed by a read.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns lifetime hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (c *Cache[V]) HitRate() float64 {
	hits, misses := c.Stats()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (c *Cache[V]) removeElement(elem *list.Element) {
	e := elem.Value.(*entry[V])
	delete(c.entries, e.key)
	c.order.Remove(elem)
}
