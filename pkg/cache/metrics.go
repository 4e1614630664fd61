package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks label cache hits by layer (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_label_cache_hits_total",
			Help: "Total number of reference label cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks lookups that reached the remote source
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapi_label_cache_misses_total",
			Help: "Total number of reference label cache misses",
		},
	)

	// SharedFetches tracks lookups served by another caller's in-flight fetch
	SharedFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapi_label_cache_shared_total",
			Help: "Total number of label lookups collapsed into an in-flight fetch",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_label_cache_errors_total",
			Help: "Total number of label cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
