package azuredevops

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
)

type commitRef struct {
	CommitID string `json:"commitId"`
}

type pullRequestItem struct {
	PullRequestID         int        `json:"pullRequestId"`
	Status                string     `json:"status"`
	CreationDate          *time.Time `json:"creationDate"`
	ClosedDate            *time.Time `json:"closedDate"`
	SourceRefName         string     `json:"sourceRefName"`
	TargetRefName         string     `json:"targetRefName"`
	LastMergeSourceCommit *commitRef `json:"lastMergeSourceCommit"`
	LastMergeTargetCommit *commitRef `json:"lastMergeTargetCommit"`
}

func (pr *pullRequestItem) normalize(repo *model.Repository) model.PullRequest {
	out := model.PullRequest{
		WorkItem: model.WorkItem{
			ID:        strconv.Itoa(pr.PullRequestID),
			CreatedAt: pr.CreationDate,
			ClosedAt:  pr.ClosedDate,
			Repo:      repo,
		},
		Head:    model.Head{Ref: pr.SourceRefName},
		Base:    model.Head{Ref: pr.TargetRefName},
		Issues:  []model.Issue{},
		Commits: []model.Commit{},
	}
	if pr.LastMergeSourceCommit != nil {
		out.Head.SHA = pr.LastMergeSourceCommit.CommitID
	}
	if pr.LastMergeTargetCommit != nil {
		out.Base.SHA = pr.LastMergeTargetCommit.CommitID
	}
	// Completed is the merged state.
	if pr.Status == "completed" {
		out.MergedAt = pr.ClosedDate
	}
	return out
}

type gitUserDate struct {
	Date *time.Time `json:"date"`
}

type commitItem struct {
	CommitID  string       `json:"commitId"`
	Author    *gitUserDate `json:"author"`
	Committer *gitUserDate `json:"committer"`
}

func (c *commitItem) normalize(repo *model.Repository) model.Commit {
	commit := model.Commit{SHA: c.CommitID, Repo: repo}
	switch {
	case c.Author != nil && c.Author.Date != nil:
		commit.CreatedAt = c.Author.Date
	case c.Committer != nil:
		commit.CreatedAt = c.Committer.Date
	}
	return commit
}

type resourceRef struct {
	ID string `json:"id"`
}

// RepositoryPullRequests returns every pull request of a repository with
// its linked work items and commits.
func (p *Provider) RepositoryPullRequests(ctx context.Context, id string) ([]model.PullRequest, error) {
	ref, err := parseID(id)
	if err != nil {
		return nil, err
	}
	repo, err := p.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	run := provider.StartRun(p.logger, "pull_requests", id)

	items, err := pagination.CollectNumbered(ctx, pageSize, func(ctx context.Context, n int) ([]pullRequestItem, error) {
		params := page(n, "")
		params.Set("searchCriteria.status", "all")

		var out valueList[pullRequestItem]
		if err := p.api.GetJSON(ctx, withQuery(ref.path("/pullrequests"), apiVersion, params), &out); err != nil {
			return nil, err
		}
		return out.Value, nil
	})
	if err != nil {
		err = fmt.Errorf("list pull requests: %w", err)
		run.Done(0, err)
		return nil, err
	}

	pulls, err := pagination.FanOut(ctx, p.traversal, items, func(ctx context.Context, item pullRequestItem) (model.PullRequest, error) {
		pr := item.normalize(repo)
		prPath := ref.path("/pullrequests/" + pr.ID)

		var workItems valueList[resourceRef]
		if err := p.api.GetJSON(ctx, withQuery(prPath+"/workitems", apiVersion, nil), &workItems); err != nil {
			return model.PullRequest{}, fmt.Errorf("pull request %s work items: %w", pr.ID, err)
		}
		for _, w := range workItems.Value {
			pr.Issues = append(pr.Issues, model.Issue{
				WorkItem:     model.WorkItem{ID: w.ID},
				PullRequests: []string{pr.ID},
			})
		}

		var commits valueList[commitItem]
		if err := p.api.GetJSON(ctx, withQuery(prPath+"/commits", apiVersion, nil), &commits); err != nil {
			return model.PullRequest{}, fmt.Errorf("pull request %s commits: %w", pr.ID, err)
		}
		for i := range commits.Value {
			pr.Commits = append(pr.Commits, commits.Value[i].normalize(repo))
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

// RepositoryCommits returns the commits of a repository.
func (p *Provider) RepositoryCommits(ctx context.Context, id string) ([]model.Commit, error) {
	ref, err := parseID(id)
	if err != nil {
		return nil, err
	}
	repo, err := p.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	run := provider.StartRun(p.logger, "commits", id)

	items, err := pagination.CollectNumbered(ctx, pageSize, func(ctx context.Context, n int) ([]commitItem, error) {
		var out valueList[commitItem]
		if err := p.api.GetJSON(ctx, withQuery(ref.path("/commits"), apiVersion, page(n, "searchCriteria.")), &out); err != nil {
			return nil, err
		}
		return out.Value, nil
	})
	if err != nil {
		err = fmt.Errorf("list commits: %w", err)
		run.Done(0, err)
		return nil, err
	}

	commits := make([]model.Commit, 0, len(items))
	for i := range items {
		commits = append(commits, items[i].normalize(repo))
	}

	run.Done(len(commits), nil)
	return commits, nil
}
