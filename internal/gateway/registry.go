// Package gateway wires configured adapters into providers.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/scm-gateway/internal/config"
	"github.com/Sternrassler/scm-gateway/pkg/cache"
	"github.com/Sternrassler/scm-gateway/pkg/client"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
	"github.com/Sternrassler/scm-gateway/pkg/provider/azuredevops"
	"github.com/Sternrassler/scm-gateway/pkg/provider/github"
	"github.com/Sternrassler/scm-gateway/pkg/throttle"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Adapter is one configured upstream with its client and provider.
type Adapter struct {
	Name     string
	Type     string
	Client   *client.Client
	Provider provider.Provider
}

// Registry owns the adapters built from a configuration. Each adapter has
// its own client and therefore its own throttle.
type Registry struct {
	adapters []*Adapter
	byName   map[string]*Adapter
	redis    *redis.Client
	logger   zerolog.Logger
}

// NewRegistry builds a client and provider for every configured adapter.
func NewRegistry(cfg *config.Config, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Adapter, len(cfg.Adapters)),
		logger: logger.With().Str("component", "registry").Logger(),
	}

	if cfg.Redis.Enabled() {
		r.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	for _, ac := range cfg.Adapters {
		adapter, err := r.build(cfg, ac, logger)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("adapter %q: %w", ac.Name, err)
		}
		r.adapters = append(r.adapters, adapter)
		r.byName[ac.Name] = adapter

		r.logger.Debug().
			Str("adapter", ac.Name).
			Str("type", ac.Type).
			Bool("cache", r.redis != nil).
			Msg("Adapter ready")
	}

	return r, nil
}

func (r *Registry) build(cfg *config.Config, ac config.AdapterConfig, logger zerolog.Logger) (*Adapter, error) {
	var cc client.Config
	switch ac.Type {
	case config.TypeGitHub:
		cc = github.ClientConfig(ac.BaseURL, ac.Token)
	case config.TypeAzureDevOps:
		cc = azuredevops.ClientConfig(ac.BaseURL, ac.Token)
	default:
		return nil, fmt.Errorf("unknown type %q", ac.Type)
	}

	cc.Name = ac.Name
	cc.Throttle = cfg.ThrottleConfig(ac.Name)
	cc.Redis = r.redis
	if ac.GraphQLPath != "" {
		cc.GraphQLPath = ac.GraphQLPath
	}
	if cfg.Client.UserAgent != "" {
		cc.UserAgent = cfg.Client.UserAgent
	}
	if cfg.Client.Timeout > 0 {
		cc.Timeout = cfg.Client.Timeout
	}
	if cfg.Client.InitialBackoff > 0 {
		cc.InitialBackoff = cfg.Client.InitialBackoff
	}
	cc.MaxRetries = cfg.Client.MaxRetries

	c, err := client.New(cc)
	if err != nil {
		return nil, err
	}

	var p provider.Provider
	switch ac.Type {
	case config.TypeGitHub:
		p = github.New(c, cfg.TraversalConfig(), logger)
	case config.TypeAzureDevOps:
		p = azuredevops.New(c, cfg.TraversalConfig(), cfg.ScanConfig(), logger)
	}

	return &Adapter{Name: ac.Name, Type: ac.Type, Client: c, Provider: p}, nil
}

// Adapter returns the named adapter.
func (r *Registry) Adapter(name string) (*Adapter, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
	return a, nil
}

// Adapters returns all adapters in configuration order.
func (r *Registry) Adapters() []*Adapter {
	return r.adapters
}

// Default returns the only adapter when exactly one is configured.
func (r *Registry) Default() (*Adapter, error) {
	if len(r.adapters) != 1 {
		return nil, fmt.Errorf("%d adapters configured, select one with --adapter", len(r.adapters))
	}
	return r.adapters[0], nil
}

// Throttles returns a snapshot of every adapter's throttle state.
func (r *Registry) Throttles() map[string]throttle.State {
	out := make(map[string]throttle.State, len(r.adapters))
	for _, a := range r.adapters {
		out[a.Name] = a.Client.Throttle().Snapshot()
	}
	return out
}

// CacheEnabled reports whether responses are cached in Redis.
func (r *Registry) CacheEnabled() bool {
	return r.redis != nil
}

// Ping checks the Redis connection. It succeeds when no cache is configured.
func (r *Registry) Ping(ctx context.Context) error {
	if r.redis == nil {
		return nil
	}
	return cache.NewManager(r.redis).Ping(ctx)
}

// Close releases all clients and the Redis connection.
func (r *Registry) Close() error {
	var errs []error
	for _, a := range r.adapters {
		if err := a.Client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
