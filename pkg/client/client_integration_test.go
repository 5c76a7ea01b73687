//go:build integration

package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(context.Background())
	})
	return client
}

func TestIntegration_ConditionalRequestFlow(t *testing.T) {
	redisClient := setupRedisContainer(t)

	var requests, conditional int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("X-RateLimit-Remaining", "4999")

		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&conditional, 1)
			w.Header().Set("Cache-Control", "max-age=60")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.Write([]byte(`[{"name":"production"}]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) { cfg.Redis = redisClient })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := c.Get(ctx, "/repos/acme/widgets/environments")
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK || string(body) != `[{"name":"production"}]` {
			t.Errorf("request %d: status=%d body=%q", i+1, resp.StatusCode, body)
		}
	}

	if atomic.LoadInt32(&requests) != 2 || atomic.LoadInt32(&conditional) != 1 {
		t.Errorf("requests=%d conditional=%d, want 2 and 1", requests, conditional)
	}
}

func TestIntegration_PostIsNeverCached(t *testing.T) {
	redisClient := setupRedisContainer(t)

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("If-None-Match") != "" {
			t.Error("POST carried conditional header")
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) { cfg.Redis = redisClient })

	for i := 0; i < 2; i++ {
		if err := c.GraphQL(context.Background(), "{ viewer { login } }", nil, nil); err != nil {
			t.Fatalf("GraphQL() error = %v", err)
		}
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}
