// Package model defines the normalized schema every provider returns.
package model

import "time"

// Issue types reported by providers that distinguish them.
const (
	IssueTypeIssue = "Issue"
	IssueTypeBug   = "Bug"
)

// Repository is a source repository.
type Repository struct {
	ID            string     `json:"id" yaml:"id"`
	FullName      string     `json:"full_name" yaml:"full_name"`
	DefaultBranch string     `json:"default_branch,omitempty" yaml:"default_branch,omitempty"`
	CreatedAt     *time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at" yaml:"updated_at"`
}

// WorkItem holds the fields shared by issues and pull requests.
type WorkItem struct {
	ID        string      `json:"id" yaml:"id"`
	CreatedAt *time.Time  `json:"created_at" yaml:"created_at"`
	ClosedAt  *time.Time  `json:"closed_at" yaml:"closed_at"`
	Repo      *Repository `json:"repo,omitempty" yaml:"repo,omitempty"`
}

// Issue is a tracked work item with the pull requests linked to it.
type Issue struct {
	WorkItem `yaml:",inline"`

	// Type is set by providers with typed work items (Issue or Bug).
	Type         string   `json:"type,omitempty" yaml:"type,omitempty"`
	PullRequests []string `json:"pull_requests" yaml:"pull_requests"`
}

// Head is one side of a pull request.
type Head struct {
	Ref string `json:"ref" yaml:"ref"`
	SHA string `json:"sha,omitempty" yaml:"sha,omitempty"`
}

// PullRequest is a change request with its linked issues and commits.
type PullRequest struct {
	WorkItem `yaml:",inline"`

	Head     Head       `json:"head" yaml:"head"`
	Base     Head       `json:"base" yaml:"base"`
	MergedAt *time.Time `json:"merged_at" yaml:"merged_at"`
	Issues   []Issue    `json:"issues" yaml:"issues"`
	Commits  []Commit   `json:"commits" yaml:"commits"`
}

// Commit is a single commit.
type Commit struct {
	SHA       string      `json:"sha" yaml:"sha"`
	Repo      *Repository `json:"repo,omitempty" yaml:"repo,omitempty"`
	CreatedAt *time.Time  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Deployment is a deployment (GitHub) or pipeline run (Azure DevOps).
type Deployment struct {
	ID          string       `json:"id" yaml:"id"`
	SHA         string       `json:"sha" yaml:"sha"`
	Commit      Commit       `json:"commit" yaml:"commit"`
	Ref         string       `json:"ref" yaml:"ref"`
	Task        string       `json:"task" yaml:"task"`
	Environment *Environment `json:"environment" yaml:"environment"`
	CreatedAt   *time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at" yaml:"updated_at"`
}

// Environment is a deployment target.
type Environment struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	CreatedAt *time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" yaml:"updated_at"`
}
