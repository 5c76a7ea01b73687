// Package github implements the GitHub provider on top of the GraphQL API,
// with REST calls for deployments and environments.
package github

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/client"
	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
	"github.com/rs/zerolog"
)

// Name is the provider name used in configuration, logs and metrics.
const Name = "github"

// DefaultBaseURL is the public GitHub API root.
const DefaultBaseURL = "https://api.github.com"

// restAPIVersion pins the REST API version.
const restAPIVersion = "2022-11-28"

// API is the subset of *client.Client the provider needs.
type API interface {
	GraphQL(ctx context.Context, query string, vars map[string]any, out any) error
	GetJSON(ctx context.Context, path string, out any) error
}

// Provider serves the shared model from GitHub.
type Provider struct {
	api       API
	traversal pagination.Config
	logger    zerolog.Logger
}

var _ provider.Provider = (*Provider)(nil)

// ClientConfig returns a client configuration with the headers GitHub
// expects on every request.
func ClientConfig(baseURL, token string) client.Config {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg := client.DefaultConfig(Name, baseURL, token)
	cfg.AuthScheme = client.AuthBearer
	cfg.ExtraHeaders = http.Header{
		"Accept":               []string{"application/vnd.github+json"},
		"X-Github-Api-Version": []string{restAPIVersion},
	}
	return cfg
}

// New creates a GitHub provider.
func New(api API, traversal pagination.Config, logger zerolog.Logger) *Provider {
	return &Provider{
		api:       api,
		traversal: traversal,
		logger:    logger.With().Str("component", "provider").Str("provider", Name).Logger(),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return Name
}

type repositoryNode struct {
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
	Name             string `json:"name"`
	DefaultBranchRef *struct {
		Name string `json:"name"`
	} `json:"defaultBranchRef"`
	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func (r *repositoryNode) normalize() *model.Repository {
	repo := &model.Repository{
		ID:        provider.EncodeID(r.Owner.Login, r.Name),
		FullName:  r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.DefaultBranchRef != nil {
		repo.DefaultBranch = r.DefaultBranchRef.Name
	}
	return repo
}

// repoVars decodes a repository id into the owner/name query variables.
func repoVars(id string) (map[string]any, error) {
	owner, name, err := provider.DecodeID(id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"owner": owner, "name": name}, nil
}

// with returns a copy of vars extended by extra.
func with(vars, extra map[string]any) map[string]any {
	out := maps.Clone(vars)
	maps.Copy(out, extra)
	return out
}

// restPath builds a repos/{owner}/{name}/... REST path.
func restPath(id, resource string, page int) (string, error) {
	owner, name, err := provider.DecodeID(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("repos/%s/%s/%s?per_page=%d&page=%d",
		url.PathEscape(owner), url.PathEscape(name), resource, restPageSize, page), nil
}

// pageContext applies the per-page timeout to one request.
func (p *Provider) pageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.traversal.Timeout > 0 {
		return context.WithTimeout(ctx, p.traversal.Timeout)
	}
	return context.WithCancel(ctx)
}

// notFound maps GitHub's NOT_FOUND GraphQL error to provider.ErrNotFound.
func notFound(id string, err error) error {
	var gqlErr *client.GraphQLError
	if errors.As(err, &gqlErr) && gqlErr.HasType("NOT_FOUND") {
		return fmt.Errorf("%w: %s", provider.ErrNotFound, id)
	}
	return err
}
