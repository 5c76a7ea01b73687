package azuredevops

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/pagination"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
)

type teamItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type workItemsBatchRequest struct {
	IDs    []int  `json:"ids"`
	Expand string `json:"$expand"`
}

type workItemRelation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes"`
}

type workItem struct {
	ID     int `json:"id"`
	Fields struct {
		WorkItemType string     `json:"System.WorkItemType"`
		CreatedDate  *time.Time `json:"System.CreatedDate"`
		ClosedDate   *time.Time `json:"Microsoft.VSTS.Common.ClosedDate"`
	} `json:"fields"`
	Relations []workItemRelation `json:"relations"`
}

// issueType maps a work item type. Planning items (Feature, Epic) are not
// issues and map to "".
func issueType(workItemType string) string {
	switch workItemType {
	case "User Story", "Task":
		return model.IssueTypeIssue
	case "Bug", "Issue":
		return model.IssueTypeBug
	case "Feature", "Epic":
		return ""
	default:
		return model.IssueTypeIssue
	}
}

// pullRequestID extracts the pull request id of an artifact link. Links look
// like vstfs:///Git/PullRequestId/{project}%2F{repository}%2F{id}.
func pullRequestID(rel workItemRelation) (string, bool) {
	if rel.Rel != "ArtifactLink" || !strings.Contains(rel.URL, "PullRequestId") {
		return "", false
	}

	if i := strings.LastIndex(strings.ToUpper(rel.URL), "%2F"); i >= 0 {
		if id := rel.URL[i+3:]; id != "" {
			if _, err := strconv.Atoi(id); err == nil {
				return id, true
			}
		}
	}

	if id, ok := rel.Attributes["id"]; ok && id != nil {
		switch v := id.(type) {
		case float64:
			return strconv.FormatInt(int64(v), 10), true
		case string:
			return v, v != ""
		}
	}
	return "", false
}

func (w *workItem) normalize(repo *model.Repository) (model.Issue, bool) {
	typ := issueType(w.Fields.WorkItemType)
	if typ == "" {
		return model.Issue{}, false
	}

	pulls := []string{}
	for _, rel := range w.Relations {
		if id, ok := pullRequestID(rel); ok {
			pulls = append(pulls, id)
		}
	}

	return model.Issue{
		WorkItem: model.WorkItem{
			ID:        strconv.Itoa(w.ID),
			CreatedAt: w.Fields.CreatedDate,
			ClosedAt:  w.Fields.ClosedDate,
			Repo:      repo,
		},
		Type:         typ,
		PullRequests: pulls,
	}, true
}

// teamScan is the scan outcome of one team.
type teamScan struct {
	team   teamItem
	result pagination.ScanResult[[]workItem]
}

// RepositoryIssues returns the work items of every team in the repository's
// project. Windows that could not be read are logged and left out; use
// RepositoryIssuesReport to see them.
func (p *Provider) RepositoryIssues(ctx context.Context, id string) ([]model.Issue, error) {
	report, err := p.RepositoryIssuesReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.Issues, nil
}

// RepositoryIssuesReport scans the work items of every team in the
// repository's project by id range and reports the windows it skipped.
func (p *Provider) RepositoryIssuesReport(ctx context.Context, id string) (*provider.IssuesReport, error) {
	ref, err := parseID(id)
	if err != nil {
		return nil, err
	}
	repo, err := p.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	run := provider.StartRun(p.logger, "issues", id)

	teams, err := pagination.CollectNumbered(ctx, pageSize, func(ctx context.Context, n int) ([]teamItem, error) {
		var out valueList[teamItem]
		path := withQuery("_apis/projects/"+url.PathEscape(ref.project)+"/teams", teamsAPIVersion, page(n, ""))
		if err := p.api.GetJSON(ctx, path, &out); err != nil {
			return nil, err
		}
		return out.Value, nil
	})
	if err != nil {
		err = fmt.Errorf("list teams: %w", err)
		run.Done(0, err)
		return nil, err
	}

	scans, err := pagination.FanOut(ctx, p.traversal, teams, func(ctx context.Context, team teamItem) (teamScan, error) {
		result, err := pagination.RangeScan(ctx, p.scan,
			func(ctx context.Context, lower, upper int) ([]int, error) {
				return p.workItemIDs(ctx, ref.project, team.ID, lower, upper)
			},
			func(ctx context.Context, ids []int) ([]workItem, error) {
				return p.workItems(ctx, ref.project, ids)
			})
		if err != nil {
			return teamScan{}, fmt.Errorf("team %s: %w", team.Name, err)
		}
		return teamScan{team: team, result: result}, nil
	})
	if err != nil {
		run.Done(0, err)
		return nil, err
	}

	report := &provider.IssuesReport{Issues: []model.Issue{}}
	seen := make(map[int]struct{})
	for _, scan := range scans {
		for _, w := range scan.result.Warnings {
			msg := fmt.Sprintf("team %s: %v", scan.team.Name, w)
			report.Warnings = append(report.Warnings, msg)
			run.Logger.Warn().
				Str("team", scan.team.Name).
				Int("lower", w.Lower).
				Int("upper", w.Upper).
				Err(w.Err).
				Msg("Work item window skipped")
		}

		// Teams of one project share work items.
		for _, batch := range scan.result.Details {
			for i := range batch {
				if _, dup := seen[batch[i].ID]; dup {
					continue
				}
				seen[batch[i].ID] = struct{}{}
				if issue, ok := batch[i].normalize(repo); ok {
					report.Issues = append(report.Issues, issue)
				}
			}
		}
	}

	if !report.Complete() {
		run.Logger.Warn().
			Int("skipped_windows", len(report.Warnings)).
			Msg("Issue listing incomplete")
	}
	run.Done(len(report.Issues), nil)
	return report, nil
}

// workItemIDs runs a team-scoped WIQL query for ids in [lower, upper).
func (p *Provider) workItemIDs(ctx context.Context, project, team string, lower, upper int) ([]int, error) {
	query := fmt.Sprintf(
		"SELECT [System.Id] FROM workitems WHERE [System.Id] >= %d AND [System.Id] < %d ORDER BY [System.Id]",
		lower, upper)
	path := withQuery(url.PathEscape(project)+"/"+url.PathEscape(team)+"/_apis/wit/wiql", apiVersion, nil)

	var out wiqlResponse
	if err := p.api.PostJSON(ctx, path, wiqlRequest{Query: query}, &out); err != nil {
		return nil, err
	}

	ids := make([]int, len(out.WorkItems))
	for i, w := range out.WorkItems {
		ids[i] = w.ID
	}
	return ids, nil
}

// workItems fetches one batch of work items with their relations.
func (p *Provider) workItems(ctx context.Context, project string, ids []int) ([]workItem, error) {
	path := withQuery(url.PathEscape(project)+"/_apis/wit/workitemsbatch", apiVersion, nil)

	var out valueList[workItem]
	if err := p.api.PostJSON(ctx, path, workItemsBatchRequest{IDs: ids, Expand: "all"}, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}
