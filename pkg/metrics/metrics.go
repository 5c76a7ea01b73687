// Package metrics exposes the Prometheus registry used by the gateway.
// All metrics are defined in their respective packages (throttle, client,
// cache, pagination) and registered there via promauto.
//
// This package provides documentation and the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every gateway metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the gathered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Throttle Metrics (pkg/throttle):
//   - gateway_throttle_delay_seconds{upstream} (Gauge): Current adaptive inter-request delay
//   - gateway_throttle_remaining{upstream} (Gauge): Last remaining quota reported upstream
//   - gateway_throttle_wait_seconds{upstream} (Histogram): Wait before dispatch
//   - gateway_throttle_retry_after_total{upstream} (Counter): Retry-After directives received
//   - gateway_throttle_exchanges_total{upstream, outcome} (Counter): Exchanges by outcome
//
// Request Metrics (pkg/client):
//   - gateway_requests_total{upstream, status} (Counter): Requests by HTTP status
//   - gateway_request_duration_seconds{upstream} (Histogram): Duration including throttle waits
//   - gateway_upstream_errors_total{upstream, class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - gateway_retries_total{upstream, error_class} (Counter): Retry attempts
//   - gateway_retry_backoff_seconds{upstream, error_class} (Histogram): Backoff durations
//   - gateway_retry_exhausted_total{upstream, error_class} (Counter): Requests that exhausted retries
//
// Cache Metrics (pkg/cache):
//   - gateway_cache_hits_total{upstream} (Counter): Cache hits
//   - gateway_cache_misses_total{upstream} (Counter): Cache misses
//   - gateway_cache_stored_bytes_total{upstream} (Counter): Bytes written to the cache
//   - gateway_conditional_requests_total{upstream} (Counter): Requests sent with If-None-Match
//   - gateway_304_responses_total{upstream} (Counter): 304 Not Modified responses
//   - gateway_cache_errors_total{operation} (Counter): Cache operation errors
//
// Traversal Metrics (pkg/pagination):
//   - gateway_scan_windows_total (Counter): Range scan windows queried
//   - gateway_scan_window_failures_total (Counter): Range scan windows skipped
//
// Example Prometheus Queries:
//
//   # Current delay per upstream
//   gateway_throttle_delay_seconds
//
//   # Cache Hit Rate
//   sum(rate(gateway_cache_hits_total[5m])) /
//   (sum(rate(gateway_cache_hits_total[5m])) + sum(rate(gateway_cache_misses_total[5m])))
//
//   # Rate limited responses
//   rate(gateway_upstream_errors_total{class="rate_limit"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(gateway_request_duration_seconds_bucket[5m]))
//
//   # Incomplete work item scans
//   increase(gateway_scan_window_failures_total[1h]) > 0
