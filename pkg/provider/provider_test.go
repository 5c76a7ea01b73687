package provider

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestEncodeDecodeID(t *testing.T) {
	tests := []struct {
		name    string
		scope   string
		repo    string
		encoded string
	}{
		{"github owner and name", "acme", "widgets", "acme%2Fwidgets"},
		{"azure project with space", "My Project", "b4f3-repo", "My%20Project%2Fb4f3-repo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := EncodeID(tt.scope, tt.repo)
			if id != tt.encoded {
				t.Errorf("EncodeID() = %q, want %q", id, tt.encoded)
			}

			scope, name, err := DecodeID(id)
			if err != nil {
				t.Fatalf("DecodeID() error = %v", err)
			}
			if scope != tt.scope || name != tt.repo {
				t.Errorf("DecodeID() = (%q, %q), want (%q, %q)", scope, name, tt.scope, tt.repo)
			}
		})
	}
}

func TestDecodeID_Invalid(t *testing.T) {
	for _, id := range []string{"", "widgets", "acme%2F", "%2Fwidgets", "a/b/c", "%zz"} {
		t.Run(id, func(t *testing.T) {
			if _, _, err := DecodeID(id); !errors.Is(err, ErrInvalidID) {
				t.Errorf("DecodeID(%q) error = %v, want ErrInvalidID", id, err)
			}
		})
	}
}

func TestDecodeID_AcceptsPlainForm(t *testing.T) {
	scope, name, err := DecodeID("acme/widgets")
	if err != nil || scope != "acme" || name != "widgets" {
		t.Errorf("DecodeID() = (%q, %q, %v)", scope, name, err)
	}
}

func TestRun_TagsLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	run := StartRun(logger, "issues", "acme%2Fwidgets")
	run.Done(3, nil)

	out := buf.String()
	if run.ID == "" || !strings.Contains(out, `"run_id":"`+run.ID+`"`) {
		t.Errorf("logs missing run id %q: %s", run.ID, out)
	}
	if !strings.Contains(out, `"items":3`) || !strings.Contains(out, `"operation":"issues"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestIssuesReport_Complete(t *testing.T) {
	if !(&IssuesReport{}).Complete() {
		t.Error("empty report should be complete")
	}
	if (&IssuesReport{Warnings: []string{"window [0,20000) skipped"}}).Complete() {
		t.Error("report with warnings should be incomplete")
	}
}
