package github

import (
	"context"
	"fmt"

	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
)

type organizationNode struct {
	Login string `json:"login"`
}

type viewerResponse struct {
	Viewer struct {
		Repositories  *pagination.Connection[repositoryNode]   `json:"repositories"`
		Organizations *pagination.Connection[organizationNode] `json:"organizations"`
	} `json:"viewer"`
}

type organizationResponse struct {
	Organization *struct {
		Repositories *pagination.Connection[repositoryNode] `json:"repositories"`
	} `json:"organization"`
}

type repositoryResponse struct {
	Repository *repositoryNode `json:"repository"`
}

// ListRepositories returns the viewer's repositories followed by the
// repositories of every organization the viewer belongs to.
func (p *Provider) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	run := provider.StartRun(p.logger, "repositories", "")

	repos := pagination.NewEdge("repositories", func(r viewerResponse) *pagination.Connection[repositoryNode] {
		return r.Viewer.Repositories
	})
	orgs := pagination.NewEdge("organizations", func(r viewerResponse) *pagination.Connection[organizationNode] {
		return r.Viewer.Organizations
	})

	_, err := pagination.TraverseComposite[viewerResponse](ctx, func(ctx context.Context, f pagination.Frontier) (viewerResponse, error) {
		ctx, cancel := p.pageContext(ctx)
		defer cancel()

		var resp viewerResponse
		err := p.api.GraphQL(ctx, viewerRepositoriesQuery, map[string]any{
			"rCursor":   f.After(repos.Name()),
			"oCursor":   f.After(orgs.Name()),
			"withRepos": f.Active(repos.Name()),
			"withOrgs":  f.Active(orgs.Name()),
		}, &resp)
		return resp, err
	}, repos, orgs)
	if err != nil {
		run.Done(0, err)
		return nil, fmt.Errorf("list viewer repositories: %w", err)
	}

	perOrg, err := pagination.FanOut(ctx, p.traversal, orgs.Nodes(), func(ctx context.Context, org organizationNode) ([]repositoryNode, error) {
		return pagination.Traverse(ctx, pagination.WithTimeout(p.traversal.Timeout, func(ctx context.Context, after *string) (*pagination.Connection[repositoryNode], error) {
			var resp organizationResponse
			err := p.api.GraphQL(ctx, organizationRepositoriesQuery, map[string]any{
				"login": org.Login,
				"after": after,
			}, &resp)
			if err != nil {
				return nil, fmt.Errorf("organization %s: %w", org.Login, err)
			}
			if resp.Organization == nil {
				return nil, nil
			}
			return resp.Organization.Repositories, nil
		}))
	})
	if err != nil {
		run.Done(0, err)
		return nil, fmt.Errorf("list organization repositories: %w", err)
	}

	// Viewer repositories may also be organization repositories.
	seen := make(map[string]struct{})
	result := []model.Repository{}
	add := func(nodes []repositoryNode) {
		for i := range nodes {
			repo := nodes[i].normalize()
			if _, dup := seen[repo.ID]; dup {
				continue
			}
			seen[repo.ID] = struct{}{}
			result = append(result, *repo)
		}
	}
	add(repos.Nodes())
	for _, nodes := range perOrg {
		add(nodes)
	}

	run.Logger.Debug().
		Int("organizations", len(orgs.Nodes())).
		Msg("Repositories collected")
	run.Done(len(result), nil)
	return result, nil
}

// GetRepository returns a single repository.
func (p *Provider) GetRepository(ctx context.Context, id string) (*model.Repository, error) {
	vars, err := repoVars(id)
	if err != nil {
		return nil, err
	}

	var resp repositoryResponse
	if err := p.api.GraphQL(ctx, repositoryQuery, vars, &resp); err != nil {
		return nil, notFound(id, fmt.Errorf("get repository: %w", err))
	}
	if resp.Repository == nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrNotFound, id)
	}
	return resp.Repository.normalize(), nil
}
