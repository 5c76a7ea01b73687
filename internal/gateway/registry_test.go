package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/scm-gateway/internal/config"
	"github.com/Sternrassler/scm-gateway/internal/testutil"
	"github.com/rs/zerolog"
)

func testConfig(adapters ...config.AdapterConfig) *config.Config {
	return &config.Config{
		Adapters:  adapters,
		Client:    config.ClientConfig{UserAgent: "gateway-test", InitialBackoff: time.Millisecond},
		Throttle:  config.ThrottleConfig{MinDelay: time.Millisecond},
		Traversal: config.TraversalConfig{MaxConcurrency: 2},
	}
}

func TestNewRegistry(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.HandleGraphQL("Repository", func(vars map[string]any) (any, error) {
		return map[string]any{"repository": map[string]any{
			"owner": map[string]any{"login": testutil.StringVar(vars, "owner")},
			"name":  testutil.StringVar(vars, "name"),
		}}, nil
	})
	mock.SetJSON(http.MethodGet, "/p1/_apis/git/repositories/r1", map[string]any{
		"id":      "r1",
		"name":    "api",
		"project": map[string]any{"id": "p1", "name": "P1"},
	})

	cfg := testConfig(
		config.AdapterConfig{Name: "gh", Type: config.TypeGitHub, BaseURL: mock.URL(), Token: "ghp_x"},
		config.AdapterConfig{Name: "ado", Type: config.TypeAzureDevOps, BaseURL: mock.URL(), Token: "pat"},
	)

	reg, err := NewRegistry(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	defer reg.Close()

	if len(reg.Adapters()) != 2 {
		t.Fatalf("Adapters() = %d, want 2", len(reg.Adapters()))
	}
	if reg.CacheEnabled() {
		t.Error("cache should be disabled without redis.addr")
	}
	if err := reg.Ping(context.Background()); err != nil {
		t.Errorf("Ping() without redis error = %v", err)
	}

	gh, err := reg.Adapter("gh")
	if err != nil {
		t.Fatalf("Adapter(gh) error = %v", err)
	}
	if gh.Client.Name() != "gh" || gh.Provider.Name() != "github" {
		t.Errorf("gh adapter = client %q provider %q", gh.Client.Name(), gh.Provider.Name())
	}

	repo, err := gh.Provider.GetRepository(context.Background(), "octo/one")
	if err != nil {
		t.Fatalf("GetRepository() error = %v", err)
	}
	if repo.ID != "octo%2Fone" {
		t.Errorf("repo.ID = %q", repo.ID)
	}
	if got := mock.LastRequestHeader.Get("User-Agent"); got != "gateway-test" {
		t.Errorf("User-Agent = %q, want gateway-test", got)
	}
	if got := mock.LastRequestHeader.Get("Authorization"); got != "Bearer ghp_x" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}

	ado, _ := reg.Adapter("ado")
	if _, err := ado.Provider.GetRepository(context.Background(), "p1/r1"); err != nil {
		t.Fatalf("azure GetRepository() error = %v", err)
	}
	wantBasic := "Basic " + base64.StdEncoding.EncodeToString([]byte(":pat"))
	if got := mock.LastRequestHeader.Get("Authorization"); got != wantBasic {
		t.Errorf("Authorization = %q, want %q", got, wantBasic)
	}

	throttles := reg.Throttles()
	if _, ok := throttles["gh"]; !ok {
		t.Errorf("Throttles() missing gh: %v", throttles)
	}
	if _, ok := throttles["ado"]; !ok {
		t.Errorf("Throttles() missing ado: %v", throttles)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	cfg := testConfig(config.AdapterConfig{Name: "gh", Type: config.TypeGitHub, Token: "t"})

	reg, err := NewRegistry(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	defer reg.Close()

	if a, err := reg.Default(); err != nil || a.Name != "gh" {
		t.Errorf("Default() = %v, %v", a, err)
	}
	if _, err := reg.Adapter("nope"); err == nil || !strings.Contains(err.Error(), `unknown adapter "nope"`) {
		t.Errorf("Adapter(nope) error = %v", err)
	}
}

func TestNewRegistry_InvalidAdapter(t *testing.T) {
	cfg := testConfig(config.AdapterConfig{Name: "bad", Type: config.TypeAzureDevOps, BaseURL: "://nope", Token: "t"})

	if _, err := NewRegistry(cfg, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), `adapter "bad"`) {
		t.Errorf("NewRegistry() error = %v, want adapter error", err)
	}
}
