// Package testutil provides a configurable mock SCM upstream for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// GraphQLResolver answers one GraphQL operation. The returned value is sent
// as the data member; a non-nil error is sent as the errors array.
type GraphQLResolver func(vars map[string]any) (any, error)

type graphQLRoute struct {
	operation string
	resolve   GraphQLResolver
}

// MockUpstream is a configurable mock of a GitHub or Azure DevOps API.
// REST handlers are keyed by method and decoded path; GraphQL operations
// posted to /graphql are dispatched by operation name.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	graphql  []graphQLRoute
	counts   map[string]int

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
}

// NewMockUpstream starts a mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockUpstream) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.ConditionalCount++
	}
	key := routeKey(r.Method, r.URL.Path)
	m.counts[key]++
	handler, exists := m.handlers[key]
	hasGraphQL := len(m.graphql) > 0
	m.mu.Unlock()

	if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/graphql") && hasGraphQL {
		m.serveGraphQL(w, r)
		return
	}

	if exists {
		handler(w, r)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (m *MockUpstream) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	m.mu.Lock()
	var route *graphQLRoute
	for i := range m.graphql {
		if strings.Contains(req.Query, "query "+m.graphql[i].operation+"(") {
			route = &m.graphql[i]
			m.counts["graphql "+route.operation]++
			break
		}
	}
	m.mu.Unlock()

	if route == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"errors": []map[string]string{{"message": "unknown operation"}},
		})
		return
	}

	data, err := route.resolve(req.Variables)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":   data,
			"errors": []map[string]string{{"message": err.Error()}},
		})
		return
	}

	w.Header().Set("X-RateLimit-Remaining", "4999")
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func routeKey(method, path string) string {
	return method + " " + path
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.counts = make(map[string]int)
}

// SetHandler sets a custom handler for a method and decoded path.
func (m *MockUpstream) SetHandler(method, path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[routeKey(method, path)] = handler
}

// SetResponse configures a fixed response for a method and path.
func (m *MockUpstream) SetResponse(method, path string, resp MockResponse) {
	m.SetHandler(method, path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON serves v as a 200 JSON response.
func (m *MockUpstream) SetJSON(method, path string, v any) {
	m.SetHandler(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4999")
		writeJSON(w, http.StatusOK, v)
	})
}

// HandleGraphQL registers a resolver for the named GraphQL operation.
func (m *MockUpstream) HandleGraphQL(operation string, resolve GraphQLResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphql = append(m.graphql, graphQLRoute{operation: operation, resolve: resolve})
}

// Requests returns how often a REST route was hit.
func (m *MockUpstream) Requests(method, path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[routeKey(method, path)]
}

// GraphQLRequests returns how often a GraphQL operation was executed.
func (m *MockUpstream) GraphQLRequests(operation string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts["graphql "+operation]
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockUpstream) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// Page builds a GraphQL connection page for resolvers.
func Page(nodes any, hasNext bool, endCursor string) map[string]any {
	var cursor any
	if endCursor != "" {
		cursor = endCursor
	}
	return map[string]any{
		"nodes":    nodes,
		"pageInfo": map[string]any{"hasNextPage": hasNext, "endCursor": cursor},
	}
}

// StringVar reads a string variable, returning "" for null or missing.
func StringVar(vars map[string]any, name string) string {
	if s, ok := vars[name].(string); ok {
		return s
	}
	return ""
}

// IntVar reads a numeric variable.
func IntVar(vars map[string]any, name string) int {
	if f, ok := vars[name].(float64); ok {
		return int(f)
	}
	return 0
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "4999",
			"ETag":                  `"test-etag-123"`,
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "API rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"Retry-After":           fmt.Sprintf("%d", int(retryAfter.Seconds())),
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewConditionalHandler creates a handler that responds with 304 for conditional requests.
func NewConditionalHandler(etag string, data string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("Cache-Control", "private, max-age=60")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
