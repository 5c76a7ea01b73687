package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
	"github.com/rs/zerolog"
)

// Snapshot is everything the gateway reads for one repository.
type Snapshot struct {
	Adapter      string              `json:"adapter" yaml:"adapter"`
	Repository   *model.Repository   `json:"repository" yaml:"repository"`
	Issues       []model.Issue       `json:"issues" yaml:"issues"`
	PullRequests []model.PullRequest `json:"pull_requests" yaml:"pull_requests"`
	Commits      []model.Commit      `json:"commits" yaml:"commits"`
	Deployments  []model.Deployment  `json:"deployments" yaml:"deployments"`
	Environments []model.Environment `json:"environments" yaml:"environments"`

	// DeploymentsPerDay counts deployments by creation date (YYYY-MM-DD).
	DeploymentsPerDay map[string]int `json:"deployments_per_day" yaml:"deployments_per_day"`

	// Warnings lists the parts that were skipped or read incompletely.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Scrape reads one repository through the adapter's provider. The listings
// run one after another so all traffic for the repository shares the
// throttle in order. Operations the provider does not support are recorded
// as warnings; any other failure aborts the snapshot.
func Scrape(ctx context.Context, a *Adapter, id string, logger zerolog.Logger) (*Snapshot, error) {
	p := a.Provider
	logger = logger.With().Str("adapter", a.Name).Str("repository", id).Logger()

	repo, err := p.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Adapter:           a.Name,
		Repository:        repo,
		Issues:            []model.Issue{},
		PullRequests:      []model.PullRequest{},
		Commits:           []model.Commit{},
		Deployments:       []model.Deployment{},
		Environments:      []model.Environment{},
		DeploymentsPerDay: map[string]int{},
	}

	if reporter, ok := p.(provider.IssuesReporter); ok {
		report, err := reporter.RepositoryIssuesReport(ctx, id)
		if err := snap.keep("issues", err); err != nil {
			return nil, err
		}
		if report != nil {
			snap.Issues = orEmpty(report.Issues)
			snap.Warnings = append(snap.Warnings, report.Warnings...)
		}
	} else {
		issues, err := p.RepositoryIssues(ctx, id)
		if err := snap.keep("issues", err); err != nil {
			return nil, err
		}
		snap.Issues = orEmpty(issues)
	}

	pulls, err := p.RepositoryPullRequests(ctx, id)
	if err := snap.keep("pull requests", err); err != nil {
		return nil, err
	}
	snap.PullRequests = orEmpty(pulls)

	commits, err := p.RepositoryCommits(ctx, id)
	if err := snap.keep("commits", err); err != nil {
		return nil, err
	}
	snap.Commits = orEmpty(commits)

	deployments, err := p.RepositoryDeployments(ctx, id)
	if err := snap.keep("deployments", err); err != nil {
		return nil, err
	}
	snap.Deployments = orEmpty(deployments)
	snap.DeploymentsPerDay = DeploymentsPerDay(snap.Deployments)

	environments, err := p.RepositoryEnvironments(ctx, id)
	if err := snap.keep("environments", err); err != nil {
		return nil, err
	}
	snap.Environments = orEmpty(environments)

	logger.Info().
		Int("issues", len(snap.Issues)).
		Int("pull_requests", len(snap.PullRequests)).
		Int("commits", len(snap.Commits)).
		Int("deployments", len(snap.Deployments)).
		Int("warnings", len(snap.Warnings)).
		Msg("Repository scraped")

	return snap, nil
}

// keep turns ErrUnsupported into a warning and returns any other error.
func (s *Snapshot) keep(part string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrUnsupported):
		s.Warnings = append(s.Warnings, fmt.Sprintf("%s: %v", part, err))
		return nil
	default:
		return fmt.Errorf("%s: %w", part, err)
	}
}

// DeploymentsPerDay counts deployments per UTC creation date. Deployments
// without a creation time are not counted.
func DeploymentsPerDay(deployments []model.Deployment) map[string]int {
	counts := make(map[string]int)
	for _, d := range deployments {
		if d.CreatedAt == nil {
			continue
		}
		counts[d.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	return counts
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
