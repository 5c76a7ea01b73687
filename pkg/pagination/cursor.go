package pagination

import (
	"context"
	"fmt"
)

// PageInfo is the pagination metadata attached to every connection page.
type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// Connection is one page of a paginated collection.
type Connection[T any] struct {
	Nodes    []T      `json:"nodes"`
	PageInfo PageInfo `json:"pageInfo"`
}

// Cursor tracks the position within one connection.
// The zero value starts from the beginning.
type Cursor struct {
	token *string
	done  bool
	pages int
}

// Value returns the token to send with the next request, nil on the first page.
func (c *Cursor) Value() *string {
	return c.token
}

// Done reports whether the connection is exhausted. A done cursor is frozen.
func (c *Cursor) Done() bool {
	return c.done
}

// Pages returns the number of pages consumed so far.
func (c *Cursor) Pages() int {
	return c.pages
}

// advance moves the cursor past a page. "More available" without a cursor
// counts as exhausted.
func (c *Cursor) advance(info PageInfo) {
	if c.done {
		return
	}
	c.pages++
	c.token = info.EndCursor
	c.done = !info.HasNextPage || info.EndCursor == nil
}

// exhaust freezes the cursor without consuming a page.
func (c *Cursor) exhaust() {
	c.done = true
}

// PageFetcher fetches the page of a connection that follows after.
type PageFetcher[T any] func(ctx context.Context, after *string) (*Connection[T], error)

// Walker walks a single connection, accumulating nodes in page order.
// It is not safe for concurrent use.
type Walker[T any] struct {
	fetch  PageFetcher[T]
	cursor Cursor
	nodes  []T
}

// NewWalker creates a walker starting at the beginning of the connection.
func NewWalker[T any](fetch PageFetcher[T]) *Walker[T] {
	return &Walker[T]{fetch: fetch}
}

// Next fetches one page. It returns false once the connection is exhausted,
// without issuing a request.
func (w *Walker[T]) Next(ctx context.Context) (bool, error) {
	if w.cursor.Done() {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	page, err := w.fetch(ctx, w.cursor.Value())
	if err != nil {
		return false, fmt.Errorf("fetch page %d: %w", w.cursor.Pages()+1, err)
	}
	if page == nil {
		// Missing connection in the response.
		w.cursor.exhaust()
		return false, nil
	}

	w.nodes = append(w.nodes, page.Nodes...)
	w.cursor.advance(page.PageInfo)
	return !w.cursor.Done(), nil
}

// All walks the remaining pages and returns every node collected so far.
// Calling All on an exhausted walker is a no-op.
func (w *Walker[T]) All(ctx context.Context) ([]T, error) {
	for {
		more, err := w.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			return w.nodes, nil
		}
	}
}

// Nodes returns the nodes accumulated so far.
func (w *Walker[T]) Nodes() []T {
	return w.nodes
}

// Cursor returns the walker's cursor.
func (w *Walker[T]) Cursor() *Cursor {
	return &w.cursor
}

// Traverse returns the concatenation of every page of a connection.
// A failure on any page aborts the traversal; no partial result is returned.
func Traverse[T any](ctx context.Context, fetch PageFetcher[T]) ([]T, error) {
	return NewWalker(fetch).All(ctx)
}
