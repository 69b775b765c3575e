// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"
	"time"

	"github.com/imagerelay/imagerelay"
	"github.com/imagerelay/imagerelay/cache"
)

func TestOriginBackend(t *testing.T) {
	defer func(size int64, ttl time.Duration) {
		*originCacheSize, *originTTL = size, ttl
	}(*originCacheSize, *originTTL)

	*originTTL = time.Hour
	*originCacheSize = 0
	if b := originBackend(); !isType[*cache.Memory[[]byte]](b) {
		t.Errorf("originBackend returned %T, want *cache.Memory", b)
	}

	*originCacheSize = 10
	if b := originBackend(); !isType[cache.Bytes](b) {
		t.Errorf("originBackend returned %T, want cache.Bytes", b)
	}

	*originTTL = 0
	if b := originBackend(); !isType[cache.Nop[[]byte]](b) {
		t.Errorf("originBackend returned %T, want cache.Nop", b)
	}
}

func TestResultBackend(t *testing.T) {
	defer func(ttl time.Duration) { *resultTTL = ttl }(*resultTTL)

	*resultTTL = time.Hour
	if b := resultBackend(); !isType[*cache.Memory[*imagerelay.Result]](b) {
		t.Errorf("resultBackend returned %T, want *cache.Memory", b)
	}

	*resultTTL = 0
	if b := resultBackend(); !isType[cache.Nop[*imagerelay.Result]](b) {
		t.Errorf("resultBackend returned %T, want cache.Nop", b)
	}
}

func isType[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

func TestNewLogger(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		logger, err := newLogger(verbose)
		if err != nil {
			t.Fatalf("newLogger(%v) returned error: %v", verbose, err)
		}
		if got := logger.Core().Enabled(-1); got != verbose {
			t.Errorf("newLogger(%v) debug enabled = %v", verbose, got)
		}
	}
}
