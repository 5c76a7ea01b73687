package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage  `json:"data"`
	Errors []GraphQLMessage `json:"errors"`
}

// GraphQL posts a query to the upstream GraphQL endpoint and decodes the
// data member into out. A non-empty errors array is returned as *GraphQLError
// even when partial data is present.
func (c *Client) GraphQL(ctx context.Context, query string, vars map[string]any, out any) error {
	var resp graphQLResponse
	if err := c.PostJSON(ctx, c.config.GraphQLPath, graphQLRequest{Query: query, Variables: vars}, &resp); err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		c.logger.Debug().
			Int("errors", len(resp.Errors)).
			Str("first", resp.Errors[0].Message).
			Msg("GraphQL response carried errors")
		return &GraphQLError{Errors: resp.Errors}
	}

	if out == nil || len(resp.Data) == 0 || bytes.Equal(resp.Data, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}
