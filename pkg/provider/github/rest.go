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

// restPageSize is the largest per_page the REST API accepts.
const restPageSize = 100

type deploymentItem struct {
	ID          int64      `json:"id"`
	SHA         string     `json:"sha"`
	Ref         string     `json:"ref"`
	Task        string     `json:"task"`
	Environment string     `json:"environment"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type environmentItem struct {
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type environmentsPage struct {
	TotalCount   int               `json:"total_count"`
	Environments []environmentItem `json:"environments"`
}

// RepositoryDeployments returns every deployment of a repository.
func (p *Provider) RepositoryDeployments(ctx context.Context, id string) ([]model.Deployment, error) {
	repo, err := p.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	run := provider.StartRun(p.logger, "deployments", id)

	items, err := pagination.CollectNumbered(ctx, restPageSize, func(ctx context.Context, page int) ([]deploymentItem, error) {
		path, err := restPath(id, "deployments", page)
		if err != nil {
			return nil, err
		}
		var out []deploymentItem
		if err := p.api.GetJSON(ctx, path, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		err = fmt.Errorf("list deployments: %w", err)
		run.Done(0, err)
		return nil, err
	}

	deployments := make([]model.Deployment, 0, len(items))
	for _, item := range items {
		d := model.Deployment{
			ID:        strconv.FormatInt(item.ID, 10),
			SHA:       item.SHA,
			Commit:    model.Commit{SHA: item.SHA, Repo: repo},
			Ref:       item.Ref,
			Task:      item.Task,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		}
		// The REST API reports the environment by name only.
		if item.Environment != "" {
			d.Environment = &model.Environment{ID: item.Environment, Name: item.Environment}
		}
		deployments = append(deployments, d)
	}

	run.Done(len(deployments), nil)
	return deployments, nil
}

// RepositoryEnvironments returns the deployment environments of a repository.
func (p *Provider) RepositoryEnvironments(ctx context.Context, id string) ([]model.Environment, error) {
	run := provider.StartRun(p.logger, "environments", id)

	items, err := pagination.CollectNumbered(ctx, restPageSize, func(ctx context.Context, page int) ([]environmentItem, error) {
		path, err := restPath(id, "environments", page)
		if err != nil {
			return nil, err
		}
		var out environmentsPage
		if err := p.api.GetJSON(ctx, path, &out); err != nil {
			return nil, err
		}
		return out.Environments, nil
	})
	if err != nil {
		err = fmt.Errorf("list environments: %w", err)
		run.Done(0, err)
		return nil, err
	}

	environments := make([]model.Environment, 0, len(items))
	for _, item := range items {
		environments = append(environments, model.Environment{
			ID:        item.Name,
			Name:      item.Name,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}

	run.Done(len(environments), nil)
	return environments, nil
}
