package github

import (
	"context"
	"fmt"

	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
)

type refNode struct {
	Name string `json:"name"`
}

type refsResponse struct {
	Repository *struct {
		repositoryNode
		Refs *pagination.Connection[refNode] `json:"refs"`
	} `json:"repository"`
}

type refHistoryResponse struct {
	Repository *struct {
		Ref *struct {
			Target *struct {
				History *pagination.Connection[commitNode] `json:"history"`
			} `json:"target"`
		} `json:"ref"`
	} `json:"repository"`
}

// RepositoryCommits returns the commits reachable from any branch, each
// commit once, in branch order.
func (p *Provider) RepositoryCommits(ctx context.Context, id string) ([]model.Commit, error) {
	vars, err := repoVars(id)
	if err != nil {
		return nil, err
	}
	run := provider.StartRun(p.logger, "commits", id)

	var repo *model.Repository
	refs, err := pagination.Traverse(ctx, pagination.WithTimeout(p.traversal.Timeout, func(ctx context.Context, after *string) (*pagination.Connection[refNode], error) {
		var resp refsResponse
		if err := p.api.GraphQL(ctx, repositoryRefsQuery, with(vars, map[string]any{"after": after}), &resp); err != nil {
			return nil, err
		}
		if resp.Repository == nil {
			return nil, nil
		}
		if repo == nil {
			repo = resp.Repository.normalize()
		}
		return resp.Repository.Refs, nil
	}))
	if err != nil {
		err = notFound(id, fmt.Errorf("list branches: %w", err))
		run.Done(0, err)
		return nil, err
	}
	if repo == nil {
		err := fmt.Errorf("%w: %s", provider.ErrNotFound, id)
		run.Done(0, err)
		return nil, err
	}

	histories, err := pagination.FanOut(ctx, p.traversal, refs, func(ctx context.Context, ref refNode) ([]commitNode, error) {
		nodes, err := pagination.Traverse(ctx, pagination.WithTimeout(p.traversal.Timeout, func(ctx context.Context, after *string) (*pagination.Connection[commitNode], error) {
			var resp refHistoryResponse
			err := p.api.GraphQL(ctx, refHistoryQuery, with(vars, map[string]any{
				"ref":   "refs/heads/" + ref.Name,
				"after": after,
			}), &resp)
			if err != nil {
				return nil, err
			}
			if resp.Repository == nil || resp.Repository.Ref == nil || resp.Repository.Ref.Target == nil {
				return nil, nil
			}
			return resp.Repository.Ref.Target.History, nil
		}))
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", ref.Name, err)
		}
		return nodes, nil
	})
	if err != nil {
		run.Done(0, err)
		return nil, err
	}

	seen := make(map[string]struct{})
	commits := []model.Commit{}
	for _, history := range histories {
		for _, node := range history {
			if _, dup := seen[node.Oid]; dup {
				continue
			}
			seen[node.Oid] = struct{}{}
			commits = append(commits, node.normalize(repo))
		}
	}

	run.Logger.Debug().Int("branches", len(refs)).Msg("Branch histories merged")
	run.Done(len(commits), nil)
	return commits, nil
}
