// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"time"

	"github.com/die-net/lrucache"
	"github.com/gregjones/httpcache"
)

// Bytes adapts an httpcache.Cache into a Backend for raw byte slices.
// Expiry is left to the wrapped cache.
type Bytes struct {
	httpcache.Cache
}

func (b Bytes) Get(key string) ([]byte, bool) {
	return b.Cache.Get(key)
}

func (b Bytes) Set(key string, value []byte) {
	b.Cache.Set(key, value)
}

// NewLRU returns a byte backend bounded to maxBytes in total whose entries
// expire ttl after they were written.
func NewLRU(maxBytes int64, ttl time.Duration) Bytes {
	return Bytes{lrucache.New(maxBytes, int64(ttl.Seconds()))}
}
