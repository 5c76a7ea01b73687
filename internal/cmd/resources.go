package cmd

import (
	"context"
	"fmt"

	"github.com/Sternrassler/scm-gateway/internal/gateway"
	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
	"github.com/spf13/cobra"
)

// adapterRepositories groups a repository listing by adapter.
type adapterRepositories struct {
	Adapter      string             `json:"adapter" yaml:"adapter"`
	Repositories []model.Repository `json:"repositories" yaml:"repositories"`
}

func (a *app) reposCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List the repositories visible to each adapter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}

			adapters := a.reg.Adapters()
			if a.adapter != "" {
				ad, err := a.reg.Adapter(a.adapter)
				if err != nil {
					return err
				}
				adapters = []*gateway.Adapter{ad}
			}

			result := make([]adapterRepositories, 0, len(adapters))
			for _, ad := range adapters {
				repos, err := ad.Provider.ListRepositories(cmd.Context())
				if err != nil {
					return fmt.Errorf("%s: %w", ad.Name, err)
				}
				result = append(result, adapterRepositories{Adapter: ad.Name, Repositories: repos})
			}
			return render(cmd.OutOrStdout(), a.output, result)
		},
	}
}

// repositoryCmd builds a command taking one repository id.
func (a *app) repositoryCmd(use, short string, run func(ctx context.Context, ad *gateway.Adapter, id string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <repository-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			ad, err := a.adapterFor(args[0])
			if err != nil {
				return err
			}

			v, err := run(cmd.Context(), ad, args[0])
			if err != nil {
				return fmt.Errorf("%s %s: %w", use, args[0], err)
			}
			return render(cmd.OutOrStdout(), a.output, v)
		},
	}
}

func (a *app) repoCmd() *cobra.Command {
	return a.repositoryCmd("repo", "Show one repository", func(ctx context.Context, ad *gateway.Adapter, id string) (any, error) {
		return ad.Provider.GetRepository(ctx, id)
	})
}

func (a *app) issuesCmd() *cobra.Command {
	return a.repositoryCmd("issues", "List a repository's issues with their linked pull requests", func(ctx context.Context, ad *gateway.Adapter, id string) (any, error) {
		reporter, ok := ad.Provider.(provider.IssuesReporter)
		if !ok {
			issues, err := ad.Provider.RepositoryIssues(ctx, id)
			if err != nil {
				return nil, err
			}
			return &provider.IssuesReport{Issues: issues}, nil
		}

		report, err := reporter.RepositoryIssuesReport(ctx, id)
		if err != nil {
			return nil, err
		}
		if !report.Complete() {
			a.logger.Warn().
				Str("adapter", ad.Name).
				Str("repository", id).
				Strs("warnings", report.Warnings).
				Msg("Issue listing is incomplete")
		}
		return report, nil
	})
}

func (a *app) pullsCmd() *cobra.Command {
	return a.repositoryCmd("pulls", "List a repository's pull requests with issues and commits", func(ctx context.Context, ad *gateway.Adapter, id string) (any, error) {
		return ad.Provider.RepositoryPullRequests(ctx, id)
	})
}

func (a *app) commitsCmd() *cobra.Command {
	return a.repositoryCmd("commits", "List the commits of every branch", func(ctx context.Context, ad *gateway.Adapter, id string) (any, error) {
		return ad.Provider.RepositoryCommits(ctx, id)
	})
}

func (a *app) deploymentsCmd() *cobra.Command {
	return a.repositoryCmd("deployments", "List a repository's deployments", func(ctx context.Context, ad *gateway.Adapter, id string) (any, error) {
		return ad.Provider.RepositoryDeployments(ctx, id)
	})
}

func (a *app) environmentsCmd() *cobra.Command {
	return a.repositoryCmd("environments", "List a repository's deployment environments", func(ctx context.Context, ad *gateway.Adapter, id string) (any, error) {
		return ad.Provider.RepositoryEnvironments(ctx, id)
	})
}

func (a *app) scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [repository-id...]",
		Short: "Read everything for the given or configured repositories",
		Long: `Read the repository, issues, pull requests, commits, deployments and
environments of each repository, plus the deployments per day.

Without arguments every entry of the repositories config section is read.
A repository that fails is logged and skipped; the command then exits
with an error after printing the snapshots it could read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}

			ids := args
			if len(ids) == 0 {
				for _, r := range a.cfg.Repositories {
					ids = append(ids, r.ID)
				}
			}
			if len(ids) == 0 {
				return fmt.Errorf("no repositories given and none configured")
			}

			snapshots := make([]*gateway.Snapshot, 0, len(ids))
			failed := 0
			for _, id := range ids {
				ad, err := a.adapterFor(id)
				if err == nil {
					var snap *gateway.Snapshot
					snap, err = gateway.Scrape(cmd.Context(), ad, id, a.logger)
					if err == nil {
						snapshots = append(snapshots, snap)
						continue
					}
				}
				failed++
				a.logger.Error().Err(err).Str("repository", id).Msg("Scrape failed")
			}

			if err := render(cmd.OutOrStdout(), a.output, snapshots); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d repositories failed", failed, len(ids))
			}
			return nil
		},
	}
}
