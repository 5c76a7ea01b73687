package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached upstream response.
type Key struct {
	// Upstream is the adapter name the response came from (e.g. "github").
	Upstream string

	// Endpoint is the request path relative to the upstream base URL.
	Endpoint string

	// QueryParams are the request query parameters.
	QueryParams url.Values

	// Variant distinguishes representations of the same resource,
	// typically the Accept media type.
	Variant string
}

// String generates a deterministic cache key string.
// Format: scm:upstream:endpoint:query1=val1:query2=val2:variant=...
//
// Example:
//
//	scm:github:repos/acme/widgets/deployments:page=2:per_page=100
func (k Key) String() string {
	parts := []string{"scm"}

	upstream := k.Upstream
	if upstream == "" {
		upstream = "default"
	}
	parts = append(parts, upstream)

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism; repeated values are kept in order.
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			for _, v := range k.QueryParams[key] {
				parts = append(parts, fmt.Sprintf("%s=%s", key, v))
			}
		}
	}

	if k.Variant != "" {
		parts = append(parts, "variant="+k.Variant)
	}

	return strings.Join(parts, ":")
}
