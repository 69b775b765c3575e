// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

// Package cache implements the in-memory caches used by imagerelay.
//
// A Backend stores values with write-time expiry. A Tier wraps a Backend and
// coalesces concurrent loads of the same key so that at most one load per key
// is in flight at any time.
package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Backend stores cached values.
//
// Implementations must be safe for concurrent use. Get must report expired
// entries as missing. Stored values are never mutated after Set.
type Backend[V any] interface {
	// Get retrieves the cached value for key.
	Get(key string) (value V, ok bool)

	// Set stores value under key.
	Set(key string, value V)
}

// Outcome describes how a value returned by Tier.GetOrLoad was obtained.
type Outcome int

const (
	// Hit means the value was found in the backend.
	Hit Outcome = iota
	// Loaded means the value was produced by a load serving only this caller.
	Loaded
	// Shared means the value was produced by a load whose result was
	// delivered to more than one caller.
	Shared
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Loaded:
		return "loaded"
	case Shared:
		return "shared"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// LoadFunc computes the value for a cache miss.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// Tier is a coalescing cache layer.
type Tier[V any] struct {
	// Name identifies the tier in logs and metrics.
	Name string

	// Backend holds the cached values. If nil, nothing is cached but loads
	// are still coalesced.
	Backend Backend[V]

	group singleflight.Group
}

// NewTier returns a Tier named name that caches values in b.
func NewTier[V any](name string, b Backend[V]) *Tier[V] {
	return &Tier[V]{Name: name, Backend: b}
}

// flight is the value shared between all callers of one load.
type flight[V any] struct {
	value  V
	cached bool
}

// GetOrLoad returns the live value for key, or loads it with load.
//
// Concurrent callers for the same key share a single call to load. Only
// successful loads are stored; a failed load is reported to every waiting
// caller and the next call for the key starts a fresh load.
//
// The load runs on a context detached from ctx, so it completes even if every
// waiting caller goes away. Callers stop waiting when their own ctx is done.
func (t *Tier[V]) GetOrLoad(ctx context.Context, key string, load LoadFunc[V]) (V, Outcome, error) {
	if v, ok := t.get(key); ok {
		return v, Hit, nil
	}

	ch := t.group.DoChan(key, func() (interface{}, error) {
		// A previous load for this key may have stored its value between
		// our lookup and joining the group.
		if v, ok := t.get(key); ok {
			return flight[V]{value: v, cached: true}, nil
		}

		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if t.Backend != nil {
			t.Backend.Set(key, v)
		}
		return flight[V]{value: v}, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, Loaded, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, Loaded, res.Err
		}
		f := res.Val.(flight[V])
		switch {
		case f.cached:
			return f.value, Hit, nil
		case res.Shared:
			return f.value, Shared, nil
		}
		return f.value, Loaded, nil
	}
}

func (t *Tier[V]) get(key string) (V, bool) {
	if t.Backend == nil {
		var zero V
		return zero, false
	}
	return t.Backend.Get(key)
}
