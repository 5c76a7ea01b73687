package config

import "time"

// Adapter types.
const (
	TypeGitHub      = "github"
	TypeAzureDevOps = "azuredevops"
)

// Config represents the complete gateway configuration.
type Config struct {
	Adapters     []AdapterConfig    `mapstructure:"adapters" yaml:"adapters"`
	Repositories []RepositoryConfig `mapstructure:"repositories" yaml:"repositories"`
	Client       ClientConfig       `mapstructure:"client" yaml:"client"`
	Redis        RedisConfig        `mapstructure:"redis" yaml:"redis"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	Throttle     ThrottleConfig     `mapstructure:"throttle" yaml:"throttle"`
	Traversal    TraversalConfig    `mapstructure:"traversal" yaml:"traversal"`
	Scan         ScanConfig         `mapstructure:"scan" yaml:"scan"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
}

// AdapterConfig describes one upstream: a base URL and the credential used
// against it. Each adapter gets its own throttle.
type AdapterConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	// Type is github or azuredevops.
	Type string `mapstructure:"type" yaml:"type"`

	// BaseURL is the API root (GitHub) or organization URL (Azure DevOps).
	BaseURL string `mapstructure:"baseurl" yaml:"baseurl"`

	// Token may reference environment variables, e.g. ${GITHUB_TOKEN}.
	// For Azure DevOps it is the bare PAT; the client adds the empty Basic
	// auth user itself, so a ":PAT" value is rejected.
	Token string `mapstructure:"token" yaml:"token"`

	// GraphQLPath overrides the GraphQL endpoint path (GitHub Enterprise).
	GraphQLPath string `mapstructure:"graphql_path" yaml:"graphql_path,omitempty"`
}

// RepositoryConfig selects a repository by id on an adapter.
type RepositoryConfig struct {
	ID      string `mapstructure:"id" yaml:"id"`
	Adapter string `mapstructure:"adapter" yaml:"adapter"`
}

// ClientConfig contains upstream HTTP client settings.
type ClientConfig struct {
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
}

// RedisConfig enables the response cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`

	// Format: json or console
	Format string `mapstructure:"format" yaml:"format"`
}

// ThrottleConfig tunes the adaptive throttle of every adapter.
type ThrottleConfig struct {
	MinDelay      time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	RollOffFactor float64       `mapstructure:"roll_off_factor" yaml:"roll_off_factor"`

	// MaxRate is a hard ceiling in requests per second; 0 disables it.
	MaxRate float64 `mapstructure:"max_rate" yaml:"max_rate"`
}

// TraversalConfig bounds fan-out traversals.
type TraversalConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	PageTimeout    time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`
}

// ScanConfig tunes the Azure DevOps work item range scan.
type ScanConfig struct {
	WindowWidth            int `mapstructure:"window_width" yaml:"window_width"`
	BatchSize              int `mapstructure:"batch_size" yaml:"batch_size"`
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
}

// ServerConfig contains the ops server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Adapter returns the adapter with the given name.
func (c *Config) Adapter(name string) (AdapterConfig, bool) {
	for _, a := range c.Adapters {
		if a.Name == name {
			return a, true
		}
	}
	return AdapterConfig{}, false
}
