// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package cache

// Nop is a Backend that doesn't actually cache anything. A Tier using it
// still coalesces concurrent loads.
type Nop[V any] struct{}

func (Nop[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (Nop[V]) Set(string, V) {}
