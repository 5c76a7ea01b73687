package client

import (
	"errors"
	"net/http"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{"client error should not retry", ErrorClassClient, false},
		{"server error should retry", ErrorClassServer, true},
		{"rate limit should retry", ErrorClassRateLimit, true},
		{"network error should retry", ErrorClassNetwork, true},
		{"empty error class should not retry", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := shouldRetry(tt.errorClass); result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		want   ErrorClass
	}{
		{"too many requests", 429, http.Header{}, ErrorClassRateLimit},
		{"403 with retry-after", 403, http.Header{"Retry-After": []string{"60"}}, ErrorClassRateLimit},
		{"403 quota exhausted", 403, http.Header{"X-Ratelimit-Remaining": []string{"0"}}, ErrorClassRateLimit},
		{"plain forbidden", 403, http.Header{}, ErrorClassClient},
		{"not found", 404, http.Header{}, ErrorClassClient},
		{"bad gateway", 502, http.Header{}, ErrorClassServer},
		{"success", 200, http.Header{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: tt.header}
			if got := classifyResponse(resp); got != tt.want {
				t.Errorf("classifyResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &APIError{
				StatusCode: 500,
				Class:      ErrorClassServer,
				Message:    "internal server error",
				Err:        errors.New("connection refused"),
			},
			expected: "upstream server error (status 500): internal server error: connection refused",
		},
		{
			name: "without wrapped error",
			err: &APIError{
				StatusCode: 404,
				Class:      ErrorClassClient,
				Message:    "not found",
			},
			expected: "upstream client error (status 404): not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &APIError{StatusCode: 502, Class: ErrorClassServer, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	if (&APIError{}).Unwrap() != nil {
		t.Error("Unwrap() of APIError without cause should be nil")
	}
}

func TestClassOf(t *testing.T) {
	if got := classOf(&APIError{Class: ErrorClassRateLimit}); got != ErrorClassRateLimit {
		t.Errorf("classOf(APIError) = %q", got)
	}
	if got := classOf(errors.New("dial tcp: i/o timeout")); got != ErrorClassNetwork {
		t.Errorf("classOf(transport error) = %q, want network", got)
	}
}

func TestGraphQLError(t *testing.T) {
	err := &GraphQLError{Errors: []GraphQLMessage{
		{Type: "NOT_FOUND", Message: "Could not resolve to a Repository"},
		{Message: "something else"},
	}}

	want := "graphql: NOT_FOUND: Could not resolve to a Repository; something else"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !err.HasType("NOT_FOUND") || err.HasType("FORBIDDEN") {
		t.Error("HasType() mismatch")
	}
}
