package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Frontier is the per-connection cursor view handed to a composite fetch.
type Frontier interface {
	// After returns the cursor to send for the named connection.
	// Exhausted connections keep returning their frozen cursor.
	After(name string) *string

	// Active reports whether the named connection still has pages to read.
	// Queries can use it to leave exhausted connections out of the request.
	Active(name string) bool
}

// Track is one independently paginated connection inside a composite response R.
type Track[R any] interface {
	Name() string
	Cursor() *Cursor
	consume(resp R)
}

// Edge collects the nodes of one named connection out of a composite response.
type Edge[R, T any] struct {
	name    string
	extract func(R) *Connection[T]
	cursor  Cursor
	nodes   []T
}

// NewEdge declares a connection. extract returns nil when the response does
// not contain the connection, which ends it.
func NewEdge[R, T any](name string, extract func(R) *Connection[T]) *Edge[R, T] {
	return &Edge[R, T]{name: name, extract: extract}
}

// Name returns the connection name used in the Frontier.
func (e *Edge[R, T]) Name() string { return e.name }

// Cursor returns the connection cursor.
func (e *Edge[R, T]) Cursor() *Cursor { return &e.cursor }

// Nodes returns the nodes collected so far, in page order.
func (e *Edge[R, T]) Nodes() []T { return e.nodes }

func (e *Edge[R, T]) consume(resp R) {
	if e.cursor.Done() {
		return
	}
	page := e.extract(resp)
	if page == nil {
		e.cursor.exhaust()
		return
	}
	e.nodes = append(e.nodes, page.Nodes...)
	e.cursor.advance(page.PageInfo)
}

type frontier map[string]*Cursor

func (f frontier) After(name string) *string {
	if c, ok := f[name]; ok {
		return c.Value()
	}
	return nil
}

func (f frontier) Active(name string) bool {
	c, ok := f[name]
	return ok && !c.Done()
}

// TraverseComposite re-issues one request while any of its connections still
// has pages. Each connection advances its own cursor; an exhausted connection
// is frozen and never consumed again. The number of requests is therefore the
// page count of the longest connection. It returns the number of requests made.
func TraverseComposite[R any](ctx context.Context, fetch func(ctx context.Context, f Frontier) (R, error), tracks ...Track[R]) (int, error) {
	f := make(frontier, len(tracks))
	for _, tr := range tracks {
		if _, dup := f[tr.Name()]; dup {
			return 0, fmt.Errorf("duplicate connection %q", tr.Name())
		}
		f[tr.Name()] = tr.Cursor()
	}

	calls := 0
	for anyActive(tracks) {
		if err := ctx.Err(); err != nil {
			return calls, err
		}

		resp, err := fetch(ctx, f)
		calls++
		if err != nil {
			return calls, fmt.Errorf("fetch composite page %d: %w", calls, err)
		}

		for _, tr := range tracks {
			tr.consume(resp)
		}
	}

	if len(tracks) > 1 {
		ev := log.Debug().Int("requests", calls)
		for _, tr := range tracks {
			ev = ev.Int(tr.Name()+"_pages", tr.Cursor().Pages())
		}
		ev.Msg("Composite traversal complete")
	}

	return calls, nil
}

func anyActive[R any](tracks []Track[R]) bool {
	for _, tr := range tracks {
		if !tr.Cursor().Done() {
			return true
		}
	}
	return false
}
