package github

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
)

type pullRequestNode struct {
	Number      int        `json:"number"`
	CreatedAt   *time.Time `json:"createdAt"`
	ClosedAt    *time.Time `json:"closedAt"`
	MergedAt    *time.Time `json:"mergedAt"`
	HeadRefName string     `json:"headRefName"`
	HeadRefOid  string     `json:"headRefOid"`
	BaseRefName string     `json:"baseRefName"`
	BaseRefOid  string     `json:"baseRefOid"`
}

type pullRequestsResponse struct {
	Repository *struct {
		repositoryNode
		PullRequests *pagination.Connection[pullRequestNode] `json:"pullRequests"`
	} `json:"repository"`
}

type closingIssueNode struct {
	Number     int             `json:"number"`
	CreatedAt  *time.Time      `json:"createdAt"`
	ClosedAt   *time.Time      `json:"closedAt"`
	Repository *repositoryNode `json:"repository"`
}

type commitNode struct {
	Oid           string     `json:"oid"`
	AuthoredDate  *time.Time `json:"authoredDate"`
	CommittedDate *time.Time `json:"committedDate"`
}

func (c commitNode) normalize(repo *model.Repository) model.Commit {
	created := c.AuthoredDate
	if created == nil {
		created = c.CommittedDate
	}
	return model.Commit{SHA: c.Oid, Repo: repo, CreatedAt: created}
}

type pullRequestCommitNode struct {
	Commit commitNode `json:"commit"`
}

type pullRequestLinksResponse struct {
	Repository *struct {
		PullRequest *struct {
			ClosingIssuesReferences *pagination.Connection[closingIssueNode]      `json:"closingIssuesReferences"`
			Commits                 *pagination.Connection[pullRequestCommitNode] `json:"commits"`
		} `json:"pullRequest"`
	} `json:"repository"`
}

// RepositoryPullRequests returns every pull request of a repository with
// the issues it closes and its commits.
func (p *Provider) RepositoryPullRequests(ctx context.Context, id string) ([]model.PullRequest, error) {
	vars, err := repoVars(id)
	if err != nil {
		return nil, err
	}
	run := provider.StartRun(p.logger, "pull_requests", id)

	var repo *model.Repository
	nodes, err := pagination.Traverse(ctx, pagination.WithTimeout(p.traversal.Timeout, func(ctx context.Context, after *string) (*pagination.Connection[pullRequestNode], error) {
		var resp pullRequestsResponse
		if err := p.api.GraphQL(ctx, repositoryPullRequestsQuery, with(vars, map[string]any{"after": after}), &resp); err != nil {
			return nil, err
		}
		if resp.Repository == nil {
			return nil, nil
		}
		if repo == nil {
			repo = resp.Repository.normalize()
		}
		return resp.Repository.PullRequests, nil
	}))
	if err != nil {
		err = notFound(id, fmt.Errorf("list pull requests: %w", err))
		run.Done(0, err)
		return nil, err
	}
	if repo == nil {
		err := fmt.Errorf("%w: %s", provider.ErrNotFound, id)
		run.Done(0, err)
		return nil, err
	}

	pulls, err := pagination.FanOut(ctx, p.traversal, nodes, func(ctx context.Context, node pullRequestNode) (model.PullRequest, error) {
		pr := model.PullRequest{
			WorkItem: model.WorkItem{
				ID:        strconv.Itoa(node.Number),
				CreatedAt: node.CreatedAt,
				ClosedAt:  node.ClosedAt,
				Repo:      repo,
			},
			Head:     model.Head{Ref: node.HeadRefName, SHA: node.HeadRefOid},
			Base:     model.Head{Ref: node.BaseRefName, SHA: node.BaseRefOid},
			MergedAt: node.MergedAt,
			Issues:   []model.Issue{},
			Commits:  []model.Commit{},
		}
		if err := p.pullRequestLinks(ctx, vars, repo, &pr, node.Number); err != nil {
			return model.PullRequest{}, fmt.Errorf("pull request #%d: %w", node.Number, err)
		}
		return pr, nil
	})
	if err != nil {
		run.Done(0, err)
		return nil, err
	}

	run.Done(len(pulls), nil)
	return pulls, nil
}

// pullRequestLinks pages closing issues and commits of one pull request in
// a single request stream, each connection with its own cursor.
func (p *Provider) pullRequestLinks(ctx context.Context, vars map[string]any, repo *model.Repository, pr *model.PullRequest, number int) error {
	issues := pagination.NewEdge("closingIssuesReferences", func(r pullRequestLinksResponse) *pagination.Connection[closingIssueNode] {
		if r.Repository == nil || r.Repository.PullRequest == nil {
			return nil
		}
		return r.Repository.PullRequest.ClosingIssuesReferences
	})
	commits := pagination.NewEdge("commits", func(r pullRequestLinksResponse) *pagination.Connection[pullRequestCommitNode] {
		if r.Repository == nil || r.Repository.PullRequest == nil {
			return nil
		}
		return r.Repository.PullRequest.Commits
	})

	_, err := pagination.TraverseComposite[pullRequestLinksResponse](ctx, func(ctx context.Context, f pagination.Frontier) (pullRequestLinksResponse, error) {
		ctx, cancel := p.pageContext(ctx)
		defer cancel()

		var resp pullRequestLinksResponse
		err := p.api.GraphQL(ctx, pullRequestLinksQuery, with(vars, map[string]any{
			"number":      number,
			"iCursor":     f.After(issues.Name()),
			"cCursor":     f.After(commits.Name()),
			"withIssues":  f.Active(issues.Name()),
			"withCommits": f.Active(commits.Name()),
		}), &resp)
		return resp, err
	}, issues, commits)
	if err != nil {
		return err
	}

	for _, node := range issues.Nodes() {
		issue := model.Issue{
			WorkItem: model.WorkItem{
				ID:        strconv.Itoa(node.Number),
				CreatedAt: node.CreatedAt,
				ClosedAt:  node.ClosedAt,
			},
			PullRequests: []string{pr.ID},
		}
		if node.Repository != nil {
			issue.Repo = node.Repository.normalize()
		}
		pr.Issues = append(pr.Issues, issue)
	}
	for _, node := range commits.Nodes() {
		pr.Commits = append(pr.Commits, node.Commit.normalize(repo))
	}
	return nil
}
