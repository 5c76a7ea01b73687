// Package client provides the upstream HTTP client shared by all providers:
// adaptive throttling, response caching, retries and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/cache"
	"github.com/Sternrassler/scm-gateway/pkg/throttle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total upstream requests by upstream and status",
	}, []string{"upstream", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Upstream request duration in seconds, including throttle waits",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"upstream"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"upstream", "class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"upstream", "error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"upstream", "error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"upstream", "error_class"})
)

// maxErrorBody bounds how much of an error response is kept on APIError.
const maxErrorBody = 64 << 10

// AuthScheme selects how the token is presented upstream.
type AuthScheme string

const (
	// AuthBearer sends "Authorization: Bearer <token>" (GitHub).
	AuthBearer AuthScheme = "bearer"

	// AuthBasic sends the token as the basic-auth password (Azure DevOps PAT).
	AuthBasic AuthScheme = "basic"
)

// Client talks to one upstream. All requests share a single throttle.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	throttle   *throttle.Throttle
	baseURL    *url.URL
	retry      RetryConfig
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Name labels logs and metrics (e.g. "github", "azure").
	Name string

	// BaseURL is the upstream API root, e.g. https://api.github.com
	// or https://dev.azure.com/{organization}.
	BaseURL string

	Token      string
	AuthScheme AuthScheme

	// GraphQLPath is resolved against BaseURL (default "graphql").
	GraphQLPath string

	UserAgent string

	// Redis enables the response cache when set.
	Redis *redis.Client

	Throttle throttle.Config

	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration

	// Retry
	MaxRetries     int // retries after the initial attempt
	InitialBackoff time.Duration

	// ExtraHeaders are added to every request.
	ExtraHeaders http.Header
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(name, baseURL, token string) Config {
	return Config{
		Name:           name,
		BaseURL:        baseURL,
		Token:          token,
		AuthScheme:     AuthBearer,
		GraphQLPath:    "graphql",
		UserAgent:      "scm-gateway/1.0",
		Throttle:       throttle.DefaultConfig(name),
		Timeout:        30 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
	}
}

// New creates a client for one upstream.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	switch cfg.AuthScheme {
	case "":
		cfg.AuthScheme = AuthBearer
	case AuthBearer, AuthBasic:
	default:
		return nil, fmt.Errorf("unknown auth scheme %q", cfg.AuthScheme)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.Name == "" {
		cfg.Name = base.Hostname()
	}
	if cfg.GraphQLPath == "" {
		cfg.GraphQLPath = "graphql"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Throttle.Name == "" {
		cfg.Throttle.Name = cfg.Name
	}

	logger := log.With().Str("component", "client").Str("upstream", cfg.Name).Logger()

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		throttle: throttle.New(cfg.Throttle, logger),
		baseURL:  base,
		retry:    retry,
		config:   cfg,
		logger:   logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}
	return c, nil
}

// Do performs an HTTP request through the cache, the throttle and the
// retry loop. Server, rate-limit and network failures are retried; every
// retry waits on the throttle again. Client errors (4xx) are returned as
// responses for the caller to handle.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(c.config.Name).Observe(time.Since(startTime).Seconds())
	}()

	c.decorate(req)

	// Cache lookup and conditional headers (GET only)
	var cacheKey cache.Key
	var cachedEntry *cache.Entry
	useCache := c.cache != nil && req.Method == http.MethodGet
	if useCache {
		cacheKey = cache.Key{
			Upstream:    c.config.Name,
			Endpoint:    endpoint,
			QueryParams: req.URL.Query(),
			Variant:     req.Header.Get("Accept"),
		}

		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil && cache.ShouldMakeConditionalRequest(entry) {
			cache.AddConditionalHeaders(req, entry)
			cache.ConditionalRequestsSent.WithLabelValues(c.config.Name).Inc()
			cachedEntry = entry
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", entry.ETag).
				Msg("Making conditional request")
		}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing upstream request")

	var resp *http.Response
	err := retryWithBackoff(ctx, c.config.Name, c.retry, c.logger, func(attempt int) error {
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		r, err := c.throttle.Execute(ctx, func(ctx context.Context) (*http.Response, error) {
			return c.httpClient.Do(req)
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(c.config.Name, string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(c.config.Name, "network_error").Inc()
			return err
		}

		requestsTotal.WithLabelValues(c.config.Name, strconv.Itoa(r.StatusCode)).Inc()

		if r.StatusCode >= 400 {
			errClass := classifyResponse(r)
			errorsTotal.WithLabelValues(c.config.Name, string(errClass)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", r.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Upstream request error")

			if shouldRetry(errClass) {
				body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
				r.Body.Close()
				return &APIError{
					StatusCode: r.StatusCode,
					Class:      errClass,
					Message:    r.Status,
					Body:       body,
				}
			}
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.WithLabelValues(c.config.Name).Inc()

		if err := c.cache.UpdateTTL(ctx, cacheKey, cache.Expiry(resp.Header)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry), nil
	}

	if useCache && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.TTL() > 0 && (entry.ETag != "" || !entry.LastModified.IsZero()) {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", endpoint).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// decorate sets identity, auth and content negotiation headers.
func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	switch c.config.AuthScheme {
	case AuthBasic:
		req.SetBasicAuth("", c.config.Token)
	default:
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	for name, values := range c.config.ExtraHeaders {
		req.Header.Del(name)
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
}

// resolve turns a path relative to the base URL (or an absolute URL
// returned by the upstream) into a request URL.
func (c *Client) resolve(path string) (*url.URL, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return url.Parse(path)
	}
	return c.baseURL.Parse(strings.TrimPrefix(path, "/"))
}

// Get performs a GET request against the upstream.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	u, err := c.resolve(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// PostJSON sends body as JSON and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	u, err := c.resolve(path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", path, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// decodeJSON closes the body. Non-2xx responses become *APIError.
func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		errClass := classifyResponse(resp)
		if errClass == "" {
			errClass = ErrorClassClient
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      errClass,
			Message:    resp.Status,
			Body:       body,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.config.Name
}

// Throttle returns the upstream's throttle.
func (c *Client) Throttle() *throttle.Throttle {
	return c.throttle
}

// Cache returns the response cache, or nil when Redis is not configured.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
