// Package cache memoizes reference labels so that a URL shared by many
// records (a film, a planet) is fetched once per run instead of once per record.
//
// Lookups go through up to three layers:
//
//   - an in-process LRU (hashicorp/golang-lru)
//   - an optional Redis layer shared across runs, with TTL
//   - the wrapped fetcher, with concurrent lookups of the same URL collapsed
//     into one request (singleflight)
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	labels, err := cache.NewLabels(remote, cache.Config{
//		MemorySize: 1024,
//		Redis:      cache.NewManager(redisClient, 24*time.Hour),
//	})
//
//	label, err := labels.FetchReference(ctx, "https://swapi.dev/api/planets/1/")
//
// Failures are never cached: an error from the wrapped fetcher is returned to
// every caller waiting on that URL and the next lookup tries again. Redis
// errors are logged and treated as misses.
//
// # Metrics
//
//   - swapi_label_cache_hits_total{layer="memory"|"redis"}
//   - swapi_label_cache_misses_total
//   - swapi_label_cache_shared_total - lookups served by an in-flight fetch
//   - swapi_label_cache_errors_total{operation}
package cache
