// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestServedFromCacheCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "requests_served_from_cache",
			Help: "Number of requests served from cache.",
		})
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by tier and outcome.",
	}, []string{"tier", "outcome"})
	imageTransformationSummary = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "image_transformation_seconds",
		Help: "Time taken for image transformations in seconds.",
	})
	compressionSummary = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "image_compression_seconds",
		Help: "Time taken for image compression in seconds.",
	})
	remoteImageFetches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "remote_image_fetches",
		Help: "Total remote image fetches",
	})
	remoteImageFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "remote_image_fetch_errors",
		Help: "Total image fetch failures",
	})
	httpRequestsResponseTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "http",
		Name:      "response_time_seconds",
		Help:      "Request response times",
	})
)

func init() {
	prometheus.MustRegister(compressionSummary)
	prometheus.MustRegister(imageTransformationSummary)
	prometheus.MustRegister(requestServedFromCacheCount)
	prometheus.MustRegister(cacheLookups)
	prometheus.MustRegister(remoteImageFetches)
	prometheus.MustRegister(remoteImageFetchErrors)
	prometheus.MustRegister(httpRequestsResponseTime)
}
