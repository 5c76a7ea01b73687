package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by upstream
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"upstream"},
	)

	// CacheMisses tracks cache misses by upstream
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"upstream"},
	)

	// StoredBytes tracks bytes written to the cache
	StoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_stored_bytes_total",
			Help: "Total bytes written to the response cache",
		},
		[]string{"upstream"},
	)

	// ConditionalRequestsSent tracks requests revalidated with If-None-Match / If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_conditional_requests_total",
			Help: "Total number of conditional requests sent upstream",
		},
		[]string{"upstream"},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
		[]string{"upstream"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
