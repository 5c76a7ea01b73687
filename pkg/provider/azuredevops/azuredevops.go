// Package azuredevops implements the Azure DevOps provider on top of the
// Azure DevOps REST API.
package azuredevops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/scm-gateway/pkg/client"
	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
	"github.com/rs/zerolog"
)

// Name is the provider name used in configuration, logs and metrics.
const Name = "azuredevops"

const (
	apiVersion      = "7.1"
	teamsAPIVersion = "7.1-preview.3"

	// pageSize is the $top used for $top/$skip paginated listings.
	pageSize = 100
)

// API is the subset of *client.Client the provider needs.
type API interface {
	GetJSON(ctx context.Context, path string, out any) error
	PostJSON(ctx context.Context, path string, body, out any) error
}

// Provider serves the shared model from Azure DevOps.
type Provider struct {
	api       API
	traversal pagination.Config
	scan      pagination.ScanConfig
	logger    zerolog.Logger
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.IssuesReporter = (*Provider)(nil)
)

// ClientConfig returns a client configuration for an organization URL such
// as https://dev.azure.com/{organization}. The token is a personal access
// token sent as the basic-auth password.
func ClientConfig(organizationURL, token string) client.Config {
	cfg := client.DefaultConfig(Name, organizationURL, token)
	cfg.AuthScheme = client.AuthBasic
	return cfg
}

// New creates an Azure DevOps provider.
func New(api API, traversal pagination.Config, scan pagination.ScanConfig, logger zerolog.Logger) *Provider {
	return &Provider{
		api:       api,
		traversal: traversal,
		scan:      scan,
		logger:    logger.With().Str("component", "provider").Str("provider", Name).Logger(),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return Name
}

// valueList is the envelope of every Azure DevOps collection response.
type valueList[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

type projectItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type repositoryItem struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	DefaultBranch string      `json:"defaultBranch"`
	Project       projectItem `json:"project"`
}

// normalize maps a repository. Azure DevOps does not report repository
// timestamps.
func (r *repositoryItem) normalize() *model.Repository {
	return &model.Repository{
		ID:            provider.EncodeID(r.Project.ID, r.ID),
		FullName:      r.Name,
		DefaultBranch: r.DefaultBranch,
	}
}

// repoRef is a decoded repository id.
type repoRef struct {
	id      string
	project string
	repo    string
}

func parseID(id string) (repoRef, error) {
	project, repo, err := provider.DecodeID(id)
	if err != nil {
		return repoRef{}, err
	}
	return repoRef{id: id, project: project, repo: repo}, nil
}

// path builds {project}/_apis/git/repositories/{repo}{suffix}.
func (r repoRef) path(suffix string) string {
	return url.PathEscape(r.project) + "/_apis/git/repositories/" + url.PathEscape(r.repo) + suffix
}

// withQuery appends api-version and extra parameters to path.
func withQuery(path, version string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api-version", version)
	return path + "?" + q.Encode()
}

// page returns the $top/$skip parameters of a numbered page.
func page(n int, prefix string) url.Values {
	return url.Values{
		prefix + "$top":  []string{fmt.Sprint(pageSize)},
		prefix + "$skip": []string{fmt.Sprint((n - 1) * pageSize)},
	}
}

// ListRepositories returns the repositories of every project.
func (p *Provider) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	run := provider.StartRun(p.logger, "repositories", "")

	projects, err := pagination.CollectNumbered(ctx, pageSize, func(ctx context.Context, n int) ([]projectItem, error) {
		var out valueList[projectItem]
		if err := p.api.GetJSON(ctx, withQuery("_apis/projects", apiVersion, page(n, "")), &out); err != nil {
			return nil, err
		}
		return out.Value, nil
	})
	if err != nil {
		err = fmt.Errorf("list projects: %w", err)
		run.Done(0, err)
		return nil, err
	}

	perProject, err := pagination.FanOut(ctx, p.traversal, projects, func(ctx context.Context, project projectItem) ([]repositoryItem, error) {
		var out valueList[repositoryItem]
		path := withQuery(url.PathEscape(project.ID)+"/_apis/git/repositories", apiVersion, nil)
		if err := p.api.GetJSON(ctx, path, &out); err != nil {
			return nil, fmt.Errorf("project %s: %w", project.Name, err)
		}
		return out.Value, nil
	})
	if err != nil {
		err = fmt.Errorf("list repositories: %w", err)
		run.Done(0, err)
		return nil, err
	}

	repos := []model.Repository{}
	for _, items := range perProject {
		for i := range items {
			repos = append(repos, *items[i].normalize())
		}
	}

	run.Logger.Debug().Int("projects", len(projects)).Msg("Repositories collected")
	run.Done(len(repos), nil)
	return repos, nil
}

// GetRepository returns a single repository.
func (p *Provider) GetRepository(ctx context.Context, id string) (*model.Repository, error) {
	ref, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var item repositoryItem
	if err := p.api.GetJSON(ctx, withQuery(ref.path(""), apiVersion, nil), &item); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", provider.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return item.normalize(), nil
}

// RepositoryEnvironments is not available: Azure DevOps environments are
// not tied to a repository.
func (p *Provider) RepositoryEnvironments(ctx context.Context, id string) ([]model.Environment, error) {
	return nil, fmt.Errorf("%s environments: %w", Name, provider.ErrUnsupported)
}
