// Package cache provides the gateway's upstream response cache with a Redis
// backend.
//
// GET responses from an upstream are stored under a deterministic key that
// includes the upstream name, so two adapters never share entries. Stored
// entries are revalidated with conditional requests; a 304 Not Modified
// answer is served from the cache and, on GitHub, does not consume quota.
//
// Freshness comes from Cache-Control max-age, then Expires, then DefaultTTL.
// Responses marked no-store are never cached.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Upstream:    "github",
//		Endpoint:    "/repos/acme/widgets/deployments",
//		QueryParams: url.Values{"per_page": []string{"100"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from upstream
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - gateway_cache_hits_total{upstream}
//   - gateway_cache_misses_total{upstream}
//   - gateway_cache_stored_bytes_total{upstream}
//   - gateway_conditional_requests_total{upstream}
//   - gateway_304_responses_total{upstream}
//   - gateway_cache_errors_total{operation}
package cache
