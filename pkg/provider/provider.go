// Package provider defines the interface every SCM adapter implements and
// the helpers they share.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/scm-gateway/pkg/model"
)

var (
	// ErrUnsupported is returned for operations a provider cannot serve.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrInvalidID is returned when a repository id cannot be decoded.
	ErrInvalidID = errors.New("invalid repository id")

	// ErrNotFound is returned when the upstream does not know the repository.
	ErrNotFound = errors.New("repository not found")
)

// Provider normalizes one upstream into the shared model.
type Provider interface {
	Name() string
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	GetRepository(ctx context.Context, id string) (*model.Repository, error)
	RepositoryIssues(ctx context.Context, id string) ([]model.Issue, error)
	RepositoryPullRequests(ctx context.Context, id string) ([]model.PullRequest, error)
	RepositoryCommits(ctx context.Context, id string) ([]model.Commit, error)
	RepositoryDeployments(ctx context.Context, id string) ([]model.Deployment, error)
	RepositoryEnvironments(ctx context.Context, id string) ([]model.Environment, error)
}

// IssuesReport is an issue listing that may be incomplete.
type IssuesReport struct {
	Issues   []model.Issue `json:"data" yaml:"data"`
	Warnings []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Complete reports whether every part of the listing was read.
func (r *IssuesReport) Complete() bool {
	return len(r.Warnings) == 0
}

// IssuesReporter is implemented by providers whose issue listing is
// best-effort and can report what was skipped.
type IssuesReporter interface {
	RepositoryIssuesReport(ctx context.Context, id string) (*IssuesReport, error)
}

// EncodeID builds an opaque repository id from its two path parts
// (owner/name on GitHub, project/repository on Azure DevOps).
func EncodeID(scope, name string) string {
	return url.PathEscape(scope + "/" + name)
}

// DecodeID splits a repository id produced by EncodeID. Unescaped
// "scope/name" input is accepted as well.
func DecodeID(id string) (scope, name string, err error) {
	decoded, err := url.PathUnescape(id)
	if err != nil {
		return "", "", fmt.Errorf("%w %q: %v", ErrInvalidID, id, err)
	}

	scope, name, found := strings.Cut(decoded, "/")
	if !found || scope == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w %q: want <scope>/<name>", ErrInvalidID, id)
	}
	return scope, name, nil
}
