package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/scm-gateway/internal/testutil"
	"github.com/Sternrassler/scm-gateway/pkg/model"
	"github.com/Sternrassler/scm-gateway/pkg/provider"
)

func writeConfig(t *testing.T, baseURL string, repositories string) string {
	t.Helper()
	content := fmt.Sprintf(`
adapters:
  - name: gh
    type: github
    baseurl: %[1]s
    token: ghp_test
  - name: ado
    type: azuredevops
    baseurl: %[1]s
    token: pat
throttle:
  min_delay: 1ms
client:
  initial_backoff: 1ms
log:
  level: error
%[2]s`, baseURL, repositories)

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func newGitHubMock(t *testing.T) *testutil.MockUpstream {
	t.Helper()
	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)

	repo := func(owner, name string) map[string]any {
		return map[string]any{"owner": map[string]any{"login": owner}, "name": name}
	}
	mock.HandleGraphQL("Repository", func(vars map[string]any) (any, error) {
		return map[string]any{"repository": repo(testutil.StringVar(vars, "owner"), testutil.StringVar(vars, "name"))}, nil
	})
	mock.HandleGraphQL("ViewerRepositories", func(vars map[string]any) (any, error) {
		return map[string]any{"viewer": map[string]any{
			"repositories":  testutil.Page([]any{repo("octo", "one")}, false, ""),
			"organizations": testutil.Page([]any{}, false, ""),
		}}, nil
	})
	return mock
}

func TestRepoCommand_JSON(t *testing.T) {
	mock := newGitHubMock(t)
	cfg := writeConfig(t, mock.URL(), "")

	out, err := run(t, "--config", cfg, "--adapter", "gh", "repo", "octo/one")
	if err != nil {
		t.Fatalf("repo error = %v", err)
	}

	var repo model.Repository
	if err := json.Unmarshal([]byte(out), &repo); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if repo.ID != "octo%2Fone" || repo.FullName != "one" {
		t.Errorf("repo = %+v", repo)
	}
}

func TestReposCommand_YAML(t *testing.T) {
	mock := newGitHubMock(t)
	cfg := writeConfig(t, mock.URL(), "")

	out, err := run(t, "--config", cfg, "-a", "gh", "-o", "yaml", "repos")
	if err != nil {
		t.Fatalf("repos error = %v", err)
	}
	for _, want := range []string{"adapter: gh", "full_name: one", "id: octo%2Fone"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAdapterFromRepositoriesConfig(t *testing.T) {
	mock := newGitHubMock(t)
	cfg := writeConfig(t, mock.URL(), `
repositories:
  - id: p1/r1
    adapter: ado
`)

	// Azure DevOps has no repository environments.
	_, err := run(t, "--config", cfg, "environments", "p1/r1")
	if !errors.Is(err, provider.ErrUnsupported) {
		t.Errorf("environments error = %v, want ErrUnsupported", err)
	}

	// Two adapters and no mapping: the adapter must be chosen explicitly.
	_, err = run(t, "--config", cfg, "repo", "octo/one")
	if err == nil || !strings.Contains(err.Error(), "--adapter") {
		t.Errorf("repo without adapter error = %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	mock := newGitHubMock(t)
	cfg := writeConfig(t, mock.URL(), "")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad output", []string{"--config", cfg, "-o", "xml", "repos"}, `unknown output format "xml"`},
		{"missing config", []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "repos"}, "read config"},
		{"missing arg", []string{"--config", cfg, "issues"}, "accepts 1 arg"},
		{"unknown adapter", []string{"--config", cfg, "-a", "gitlab", "repos"}, `unknown adapter "gitlab"`},
		{"bad log level", []string{"--config", cfg, "--log-level", "loud", "repos"}, `unknown log level "loud"`},
		{"nothing to scrape", []string{"--config", cfg, "scrape"}, "no repositories given"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "2024-01-01")

	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "scm-gateway 1.2.3 (commit abc") {
		t.Errorf("version output = %q", out)
	}
}
