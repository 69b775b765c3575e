// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-memory Backend whose entries expire a fixed duration after
// they were written. Reads do not extend an entry's lifetime.
type Memory[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewMemory returns a Memory backend holding at most size entries, each
// expiring ttl after it was stored. A size of zero means no entry bound.
// A ttl of zero means entries only leave the cache through eviction.
func NewMemory[V any](size int, ttl time.Duration) *Memory[V] {
	return &Memory[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

func (m *Memory[V]) Get(key string) (V, bool) {
	return m.lru.Get(key)
}

func (m *Memory[V]) Set(key string, value V) {
	m.lru.Add(key, value)
}

// Len returns the number of entries, including expired entries that have not
// yet been purged.
func (m *Memory[V]) Len() int {
	return m.lru.Len()
}
