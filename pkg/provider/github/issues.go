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

type issueNode struct {
	Number    int        `json:"number"`
	CreatedAt *time.Time `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt"`
}

type issuesResponse struct {
	Repository *struct {
		repositoryNode
		Issues *pagination.Connection[issueNode] `json:"issues"`
	} `json:"repository"`
}

type pullRequestRef struct {
	Number int `json:"number"`
}

type timelineItem struct {
	Typename string          `json:"__typename"`
	Subject  *pullRequestRef `json:"subject"`
	Source   *pullRequestRef `json:"source"`
}

// event turns a timeline item into a link event. The subject wins over the
// source when both name a pull request.
func (t timelineItem) event() pagination.LinkEvent {
	number := 0
	switch {
	case t.Subject != nil && t.Subject.Number != 0:
		number = t.Subject.Number
	case t.Source != nil && t.Source.Number != 0:
		number = t.Source.Number
	}
	if number == 0 {
		return pagination.LinkEvent{Kind: pagination.Unlinked}
	}

	ev := pagination.LinkEvent{Ref: strconv.Itoa(number)}
	switch t.Typename {
	case "ConnectedEvent":
		ev.Kind = pagination.Connected
	case "DisconnectedEvent":
		ev.Kind = pagination.Disconnected
	}
	return ev
}

type timelineResponse struct {
	Repository *struct {
		Issue *struct {
			TimelineItems *pagination.Connection[timelineItem] `json:"timelineItems"`
		} `json:"issue"`
	} `json:"repository"`
}

// RepositoryIssues returns every issue of a repository with the pull
// requests currently linked to it.
func (p *Provider) RepositoryIssues(ctx context.Context, id string) ([]model.Issue, error) {
	vars, err := repoVars(id)
	if err != nil {
		return nil, err
	}
	run := provider.StartRun(p.logger, "issues", id)

	var repo *model.Repository
	nodes, err := pagination.Traverse(ctx, pagination.WithTimeout(p.traversal.Timeout, func(ctx context.Context, after *string) (*pagination.Connection[issueNode], error) {
		var resp issuesResponse
		if err := p.api.GraphQL(ctx, repositoryIssuesQuery, with(vars, map[string]any{"after": after}), &resp); err != nil {
			return nil, err
		}
		if resp.Repository == nil {
			return nil, nil
		}
		if repo == nil {
			repo = resp.Repository.normalize()
		}
		return resp.Repository.Issues, nil
	}))
	if err != nil {
		err = notFound(id, fmt.Errorf("list issues: %w", err))
		run.Done(0, err)
		return nil, err
	}
	if repo == nil {
		err := fmt.Errorf("%w: %s", provider.ErrNotFound, id)
		run.Done(0, err)
		return nil, err
	}

	issues, err := pagination.FanOut(ctx, p.traversal, nodes, func(ctx context.Context, node issueNode) (model.Issue, error) {
		items, err := p.timeline(ctx, vars, node.Number)
		if err != nil {
			return model.Issue{}, fmt.Errorf("issue #%d timeline: %w", node.Number, err)
		}

		events := make([]pagination.LinkEvent, len(items))
		for i, item := range items {
			events[i] = item.event()
		}

		return model.Issue{
			WorkItem: model.WorkItem{
				ID:        strconv.Itoa(node.Number),
				CreatedAt: node.CreatedAt,
				ClosedAt:  node.ClosedAt,
				Repo:      repo,
			},
			PullRequests: pagination.Replay(events).Members(),
		}, nil
	})
	if err != nil {
		run.Done(0, err)
		return nil, err
	}

	run.Done(len(issues), nil)
	return issues, nil
}

func (p *Provider) timeline(ctx context.Context, vars map[string]any, number int) ([]timelineItem, error) {
	return pagination.Traverse(ctx, pagination.WithTimeout(p.traversal.Timeout, func(ctx context.Context, after *string) (*pagination.Connection[timelineItem], error) {
		var resp timelineResponse
		err := p.api.GraphQL(ctx, issueTimelineQuery, with(vars, map[string]any{
			"number": number,
			"after":  after,
		}), &resp)
		if err != nil {
			return nil, err
		}
		if resp.Repository == nil || resp.Repository.Issue == nil {
			return nil, nil
		}
		return resp.Repository.Issue.TimelineItems, nil
	}))
}
