package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/scm-gateway/pkg/throttle"
	"github.com/rs/zerolog"
)

type stubBackend struct {
	pingErr error
}

func (b stubBackend) Ping(ctx context.Context) error { return b.pingErr }

func (b stubBackend) Throttles() map[string]throttle.State {
	return map[string]throttle.State{"gh": {DelayMs: 500}}
}

func serve(t *testing.T, backend Backend, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New("127.0.0.1:0", backend, zerolog.Nop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		backend  Backend
		path     string
		wantCode int
		wantBody string
	}{
		{"health", stubBackend{}, "/health", http.StatusOK, `"status":"ok"`},
		{"ready", stubBackend{}, "/ready", http.StatusOK, `"status":"ready"`},
		{"not ready", stubBackend{pingErr: errors.New("redis down")}, "/ready", http.StatusServiceUnavailable, "redis down"},
		{"metrics", stubBackend{}, "/metrics", http.StatusOK, "go_goroutines"},
		{"unknown", stubBackend{}, "/repos", http.StatusNotFound, `"error":"not found"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.backend, tt.path)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want containing %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestThrottleEndpoint(t *testing.T) {
	rec := serve(t, stubBackend{}, "/throttle")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got map[string]throttle.State
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["gh"].DelayMs != 500 {
		t.Errorf("throttle = %+v, want gh delay 500ms", got)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := New("127.0.0.1:0", stubBackend{}, zerolog.Nop())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
