package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/throttle"
)

const sampleConfig = `
adapters:
  - name: gh
    type: github
    token: ${TEST_GH_TOKEN}
  - name: ado
    type: azuredevops
    baseurl: https://dev.azure.com/acme
    token: pat-123
repositories:
  - id: octo/one
    adapter: gh
  - id: Platform/api
    adapter: ado
scan:
  window_width: 5000
throttle:
  min_delay: 750ms
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_GH_TOKEN", "ghp_secret")
	t.Setenv("GATEWAY_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Adapters) != 2 {
		t.Fatalf("adapters = %d, want 2", len(cfg.Adapters))
	}
	gh, ok := cfg.Adapter("gh")
	if !ok || gh.Token != "ghp_secret" {
		t.Errorf("gh adapter = %+v, want expanded token", gh)
	}
	ado, _ := cfg.Adapter("ado")
	if ado.BaseURL != "https://dev.azure.com/acme" {
		t.Errorf("ado baseurl = %q", ado.BaseURL)
	}
	if len(cfg.Repositories) != 2 || cfg.Repositories[1].Adapter != "ado" {
		t.Errorf("repositories = %+v", cfg.Repositories)
	}

	if cfg.Scan.WindowWidth != 5000 {
		t.Errorf("scan.window_width = %d, want 5000", cfg.Scan.WindowWidth)
	}
	if cfg.Scan.BatchSize != 200 {
		t.Errorf("scan.batch_size = %d, want default 200", cfg.Scan.BatchSize)
	}
	if cfg.Throttle.MinDelay != 750*time.Millisecond {
		t.Errorf("throttle.min_delay = %v, want 750ms", cfg.Throttle.MinDelay)
	}
	if !cfg.Redis.Enabled() || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis = %+v, want env override", cfg.Redis)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Client.MaxRetries != 2 {
		t.Errorf("client.max_retries = %d, want 2", cfg.Client.MaxRetries)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Adapters: []AdapterConfig{{Name: "gh", Type: TypeGitHub, Token: "t"}},
			Log:      LogConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no adapters", func(c *Config) { c.Adapters = nil }, "at least one adapter"},
		{"missing name", func(c *Config) { c.Adapters[0].Name = "" }, "name is required"},
		{"duplicate", func(c *Config) { c.Adapters = append(c.Adapters, c.Adapters[0]) }, "duplicate name"},
		{"unknown type", func(c *Config) { c.Adapters[0].Type = "gitlab" }, `unknown type "gitlab"`},
		{"azure without url", func(c *Config) { c.Adapters[0].Type = TypeAzureDevOps }, "baseurl is required"},
		{"bad url", func(c *Config) { c.Adapters[0].BaseURL = "ftp://example.com" }, "http(s) URL"},
		{"missing token", func(c *Config) { c.Adapters[0].Token = "" }, "token is required"},
		{"azure colon token", func(c *Config) {
			c.Adapters[0] = AdapterConfig{Name: "ado", Type: TypeAzureDevOps, BaseURL: "https://dev.azure.com/org", Token: ":pat"}
		}, "bare PAT"},
		{"unknown repo adapter", func(c *Config) {
			c.Repositories = []RepositoryConfig{{ID: "a/b", Adapter: "nope"}}
		}, `unknown adapter "nope"`},
		{"repo without id", func(c *Config) {
			c.Repositories = []RepositoryConfig{{Adapter: "gh"}}
		}, "id is required"},
		{"negative retries", func(c *Config) { c.Client.MaxRetries = -1 }, "max_retries"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "unknown log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := &Config{
		Throttle:  ThrottleConfig{MaxRate: 5},
		Traversal: TraversalConfig{MaxConcurrency: 4, PageTimeout: time.Minute},
		Scan:      ScanConfig{WindowWidth: 100, BatchSize: 10, MaxConsecutiveFailures: 2},
	}

	tc := cfg.ThrottleConfig("gh")
	if tc.Name != "gh" || tc.MinDelay != throttle.DefaultMinDelay || tc.MaxRate != 5 {
		t.Errorf("ThrottleConfig() = %+v", tc)
	}

	if tr := cfg.TraversalConfig(); tr.MaxConcurrency != 4 || tr.Timeout != time.Minute {
		t.Errorf("TraversalConfig() = %+v", tr)
	}
	if sc := cfg.ScanConfig(); sc.WindowWidth != 100 || sc.BatchSize != 10 || sc.MaxConsecutiveFailures != 2 {
		t.Errorf("ScanConfig() = %+v", sc)
	}
}
