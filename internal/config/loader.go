package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/logging"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/throttle"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GATEWAY_REDIS_ADDR.
const EnvPrefix = "GATEWAY"

// Load reads the YAML file at path (optional), applies GATEWAY_* environment
// overrides and defaults, expands ${VAR} references in adapter tokens, and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	for i := range cfg.Adapters {
		cfg.Adapters[i].Token = os.ExpandEnv(cfg.Adapters[i].Token)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	scan := pagination.DefaultScanConfig()
	traversal := pagination.DefaultConfig()

	v.SetDefault("client.user_agent", "scm-gateway/1.0")
	v.SetDefault("client.timeout", 30*time.Second)
	v.SetDefault("client.max_retries", 2)
	v.SetDefault("client.initial_backoff", time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("throttle.min_delay", throttle.DefaultMinDelay)
	v.SetDefault("throttle.roll_off_factor", throttle.DefaultRollOffFactor)
	v.SetDefault("throttle.max_rate", 0.0)

	v.SetDefault("traversal.max_concurrency", traversal.MaxConcurrency)
	v.SetDefault("traversal.page_timeout", traversal.Timeout)

	v.SetDefault("scan.window_width", scan.WindowWidth)
	v.SetDefault("scan.batch_size", scan.BatchSize)
	v.SetDefault("scan.max_consecutive_failures", scan.MaxConsecutiveFailures)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if len(c.Adapters) == 0 {
		return errors.New("at least one adapter is required")
	}

	seen := make(map[string]bool, len(c.Adapters))
	for i, a := range c.Adapters {
		if a.Name == "" {
			return fmt.Errorf("adapters[%d]: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("adapter %q: duplicate name", a.Name)
		}
		seen[a.Name] = true

		switch a.Type {
		case TypeGitHub:
		case TypeAzureDevOps:
			if a.BaseURL == "" {
				return fmt.Errorf("adapter %q: baseurl is required for %s", a.Name, TypeAzureDevOps)
			}
		default:
			return fmt.Errorf("adapter %q: unknown type %q (want %s or %s)", a.Name, a.Type, TypeGitHub, TypeAzureDevOps)
		}

		if a.BaseURL != "" {
			u, err := url.Parse(a.BaseURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("adapter %q: baseurl must be an http(s) URL (got %q)", a.Name, a.BaseURL)
			}
		}
		if a.Token == "" {
			return fmt.Errorf("adapter %q: token is required", a.Name)
		}
		if a.Type == TypeAzureDevOps && strings.HasPrefix(a.Token, ":") {
			return fmt.Errorf("adapter %q: token must be the bare PAT without a leading colon", a.Name)
		}
	}

	for i, r := range c.Repositories {
		if r.ID == "" {
			return fmt.Errorf("repositories[%d]: id is required", i)
		}
		if !seen[r.Adapter] {
			return fmt.Errorf("repository %q: unknown adapter %q", r.ID, r.Adapter)
		}
	}

	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("client.max_retries must be >= 0 (got %d)", c.Client.MaxRetries)
	}
	if c.Throttle.RollOffFactor < 0 {
		return fmt.Errorf("throttle.roll_off_factor must be >= 0 (got %g)", c.Throttle.RollOffFactor)
	}

	return c.Logging().Validate()
}

// Logging converts the log section for pkg/logging.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Log.Level),
		Format: logging.Format(c.Log.Format),
	}
}

// ThrottleConfig returns the throttle tuning for the named adapter.
func (c *Config) ThrottleConfig(name string) throttle.Config {
	cfg := throttle.DefaultConfig(name)
	if c.Throttle.MinDelay > 0 {
		cfg.MinDelay = c.Throttle.MinDelay
	}
	if c.Throttle.RollOffFactor > 0 {
		cfg.RollOffFactor = c.Throttle.RollOffFactor
	}
	cfg.MaxRate = c.Throttle.MaxRate
	return cfg
}

// TraversalConfig converts the traversal section for pkg/pagination.
func (c *Config) TraversalConfig() pagination.Config {
	return pagination.Config{
		MaxConcurrency: c.Traversal.MaxConcurrency,
		Timeout:        c.Traversal.PageTimeout,
	}
}

// ScanConfig converts the scan section for pkg/pagination.
func (c *Config) ScanConfig() pagination.ScanConfig {
	return pagination.ScanConfig{
		WindowWidth:            c.Scan.WindowWidth,
		BatchSize:              c.Scan.BatchSize,
		MaxConsecutiveFailures: c.Scan.MaxConsecutiveFailures,
	}
}
