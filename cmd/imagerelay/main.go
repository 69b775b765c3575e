// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

// imagerelay starts an HTTP server that transforms remote images.
package main

import (
	"flag"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/imagerelay/imagerelay"
	"github.com/imagerelay/imagerelay/cache"
	"github.com/imagerelay/imagerelay/third_party/envy"
)

var addr = flag.String("addr", "localhost:8080", "TCP address to listen on")
var originTTL = flag.Duration("originTTL", imagerelay.DefaultTTL, "how long fetched remote images are cached (0 disables the cache)")
var resultTTL = flag.Duration("resultTTL", imagerelay.DefaultTTL, "how long transformed images are cached (0 disables the cache)")
var originCacheEntries = flag.Int("originCacheEntries", 0, "maximum number of cached remote images (0 for no limit)")
var resultCacheEntries = flag.Int("resultCacheEntries", 0, "maximum number of cached transformed images (0 for no limit)")
var originCacheSize = flag.Int64("originCacheSize", 0, "maximum size in megabytes of cached remote images; overrides originCacheEntries")
var maxSize = flag.Int64("maxSize", imagerelay.DefaultMaxSize, "maximum size in bytes of a remote image")
var timeout = flag.Duration("timeout", imagerelay.DefaultTimeout, "time limit for fetching a remote image")
var fetchRate = flag.Float64("fetchRate", 0, "maximum remote fetches per second (0 for no limit)")
var fetchBurst = flag.Int("fetchBurst", 10, "burst size for fetchRate")
var contentTypes = flag.String("contentTypes", "image/*", "comma separated list of allowed content types")
var userAgent = flag.String("userAgent", "imagerelay", "specify the user-agent used by imagerelay when fetching images from origin website")
var verbose = flag.Bool("verbose", false, "print verbose logging messages")

func main() {
	envy.Parse("IMAGERELAY")
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	p := imagerelay.NewProxy(nil, originBackend(), resultBackend())
	if *contentTypes != "" {
		p.ContentTypes = strings.Split(*contentTypes, ",")
	}
	if *fetchRate > 0 {
		p.Limiter = rate.NewLimiter(rate.Limit(*fetchRate), *fetchBurst)
	}
	p.MaxSize = *maxSize
	p.Timeout = *timeout
	p.UserAgent = *userAgent
	p.Verbose = *verbose
	p.Logger = zap.NewStdLog(logger)

	server := &http.Server{
		Addr:    *addr,
		Handler: p.Handler(),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: *timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("imagerelay listening", zap.String("addr", server.Addr))
	logger.Fatal("server exited", zap.Error(server.ListenAndServe()))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// originBackend returns the cache for remote images selected by flags. A
// size in megabytes selects a byte-bounded LRU; otherwise entries are
// counted.
func originBackend() cache.Backend[[]byte] {
	switch {
	case *originTTL <= 0:
		return cache.Nop[[]byte]{}
	case *originCacheSize > 0:
		return cache.NewLRU(*originCacheSize*1e6, *originTTL)
	}
	return cache.NewMemory[[]byte](*originCacheEntries, *originTTL)
}

func resultBackend() cache.Backend[*imagerelay.Result] {
	if *resultTTL <= 0 {
		return cache.Nop[*imagerelay.Result]{}
	}
	return cache.NewMemory[*imagerelay.Result](*resultCacheEntries, *resultTTL)
}
