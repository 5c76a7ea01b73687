package azuredevops

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
)

type pipelineItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type runItem struct {
	ID int `json:"id"`
}

type runDetail struct {
	ID           int          `json:"id"`
	CreatedDate  *time.Time   `json:"createdDate"`
	FinishedDate *time.Time   `json:"finishedDate"`
	Pipeline     pipelineItem `json:"pipeline"`
	Resources    struct {
		Repositories map[string]struct {
			Repository *resourceRef `json:"repository"`
			RefName    string       `json:"refName"`
			Version    string       `json:"version"`
		} `json:"repositories"`
	} `json:"resources"`
}

// RepositoryDeployments returns the pipeline runs that built the repository.
// Runs whose checked-out repository is a different one are skipped.
func (p *Provider) RepositoryDeployments(ctx context.Context, id string) ([]model.Deployment, error) {
	ref, err := parseID(id)
	if err != nil {
		return nil, err
	}
	repo, err := p.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	run := provider.StartRun(p.logger, "deployments", id)

	// The id may name the repository; runs reference it by GUID.
	_, repoID, err := provider.DecodeID(repo.ID)
	if err != nil {
		return nil, err
	}

	pipelinesPath := url.PathEscape(ref.project) + "/_apis/pipelines"

	var pipelines valueList[pipelineItem]
	if err := p.api.GetJSON(ctx, withQuery(pipelinesPath, apiVersion, nil), &pipelines); err != nil {
		err = fmt.Errorf("list pipelines: %w", err)
		run.Done(0, err)
		return nil, err
	}

	// Runs of one pipeline are read one after another.
	perPipeline, err := pagination.FanOut(ctx, p.traversal, pipelines.Value, func(ctx context.Context, pipeline pipelineItem) ([]model.Deployment, error) {
		base := pipelinesPath + "/" + strconv.Itoa(pipeline.ID) + "/runs"

		var runs valueList[runItem]
		if err := p.api.GetJSON(ctx, withQuery(base, apiVersion, nil), &runs); err != nil {
			return nil, fmt.Errorf("pipeline %s runs: %w", pipeline.Name, err)
		}

		var deployments []model.Deployment
		for _, r := range runs.Value {
			var detail runDetail
			path := withQuery(base+"/"+strconv.Itoa(r.ID), apiVersion, nil)
			if err := p.api.GetJSON(ctx, path, &detail); err != nil {
				return nil, fmt.Errorf("pipeline %s run %d: %w", pipeline.Name, r.ID, err)
			}

			self := detail.Resources.Repositories["self"]
			if self.Repository != nil && self.Repository.ID != "" && self.Repository.ID != repoID {
				continue
			}

			deployments = append(deployments, model.Deployment{
				ID:        strconv.Itoa(detail.ID),
				SHA:       self.Version,
				Commit:    model.Commit{SHA: self.Version, Repo: repo},
				Ref:       self.RefName,
				Task:      detail.Pipeline.Name,
				CreatedAt: detail.CreatedDate,
				UpdatedAt: detail.FinishedDate,
			})
		}
		return deployments, nil
	})
	if err != nil {
		run.Done(0, err)
		return nil, err
	}

	deployments := []model.Deployment{}
	for _, d := range perPipeline {
		deployments = append(deployments, d...)
	}

	run.Logger.Debug().Int("pipelines", len(pipelines.Value)).Msg("Pipeline runs collected")
	run.Done(len(deployments), nil)
	return deployments, nil
}
