package pagination

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// pairResponse carries two independently paginated connections.
type pairResponse struct {
	A *Connection[string]
	B *Connection[int]
}

func TestTraverseComposite_Independence(t *testing.T) {
	bPages := map[string]*Connection[int]{
		"":   {Nodes: []int{1}, PageInfo: PageInfo{HasNextPage: true, EndCursor: strPtr("b1")}},
		"b1": {Nodes: []int{2}, PageInfo: PageInfo{HasNextPage: true, EndCursor: strPtr("b2")}},
		"b2": {Nodes: []int{3}, PageInfo: PageInfo{HasNextPage: false, EndCursor: strPtr("b3")}},
	}

	var aCursors []*string
	var aActive []bool
	aFetches := 0

	fetch := func(ctx context.Context, f Frontier) (pairResponse, error) {
		aCursors = append(aCursors, f.After("a"))
		aActive = append(aActive, f.Active("a"))

		var resp pairResponse
		if f.Active("a") {
			aFetches++
			resp.A = &Connection[string]{Nodes: []string{"x", "y"}, PageInfo: PageInfo{HasNextPage: false, EndCursor: strPtr("a1")}}
		}

		key := ""
		if c := f.After("b"); c != nil {
			key = *c
		}
		page, ok := bPages[key]
		if !ok {
			return resp, fmt.Errorf("unexpected b cursor %q", key)
		}
		resp.B = page
		return resp, nil
	}

	a := NewEdge("a", func(r pairResponse) *Connection[string] { return r.A })
	b := NewEdge("b", func(r pairResponse) *Connection[int] { return r.B })

	calls, err := TraverseComposite[pairResponse](context.Background(), fetch, a, b)
	if err != nil {
		t.Fatalf("TraverseComposite() error = %v", err)
	}

	if calls != 3 {
		t.Errorf("calls = %d, want 3 (max of pages, not sum)", calls)
	}
	if aFetches != 1 {
		t.Errorf("connection a fetched %d times, want 1", aFetches)
	}
	if want := []bool{true, false, false}; !reflect.DeepEqual(aActive, want) {
		t.Errorf("a active flags = %v, want %v", aActive, want)
	}
	for i, c := range aCursors[1:] {
		if c == nil || *c != "a1" {
			t.Errorf("call %d: frozen a cursor = %v, want a1", i+2, c)
		}
	}
	if want := []string{"x", "y"}; !reflect.DeepEqual(a.Nodes(), want) {
		t.Errorf("a nodes = %v, want %v", a.Nodes(), want)
	}
	if want := []int{1, 2, 3}; !reflect.DeepEqual(b.Nodes(), want) {
		t.Errorf("b nodes = %v, want %v", b.Nodes(), want)
	}
}

func TestTraverseComposite_FrozenEdgeIgnoresLaterPages(t *testing.T) {
	call := 0
	fetch := func(ctx context.Context, f Frontier) (pairResponse, error) {
		call++
		// a keeps answering even though it reported exhaustion on call 1.
		resp := pairResponse{
			A: &Connection[string]{Nodes: []string{fmt.Sprintf("a%d", call)}},
			B: &Connection[int]{Nodes: []int{call}, PageInfo: PageInfo{HasNextPage: call < 2, EndCursor: strPtr("b")}},
		}
		return resp, nil
	}

	a := NewEdge("a", func(r pairResponse) *Connection[string] { return r.A })
	b := NewEdge("b", func(r pairResponse) *Connection[int] { return r.B })

	if _, err := TraverseComposite[pairResponse](context.Background(), fetch, a, b); err != nil {
		t.Fatalf("TraverseComposite() error = %v", err)
	}
	if want := []string{"a1"}; !reflect.DeepEqual(a.Nodes(), want) {
		t.Errorf("a nodes = %v, want %v", a.Nodes(), want)
	}
}

func TestTraverseComposite_MissingConnectionEndsEdge(t *testing.T) {
	call := 0
	fetch := func(ctx context.Context, f Frontier) (pairResponse, error) {
		call++
		return pairResponse{
			B: &Connection[int]{Nodes: []int{call}, PageInfo: PageInfo{HasNextPage: call < 2, EndCursor: strPtr("b")}},
		}, nil
	}

	a := NewEdge("a", func(r pairResponse) *Connection[string] { return r.A })
	b := NewEdge("b", func(r pairResponse) *Connection[int] { return r.B })

	calls, err := TraverseComposite[pairResponse](context.Background(), fetch, a, b)
	if err != nil {
		t.Fatalf("TraverseComposite() error = %v", err)
	}
	if calls != 2 || !a.Cursor().Done() || len(a.Nodes()) != 0 {
		t.Errorf("calls=%d a.done=%v a.nodes=%v, want 2 calls and empty exhausted a", calls, a.Cursor().Done(), a.Nodes())
	}
}

func TestTraverseComposite_ErrorPropagates(t *testing.T) {
	boom := errors.New("bad gateway")
	fetch := func(ctx context.Context, f Frontier) (pairResponse, error) {
		return pairResponse{}, boom
	}

	a := NewEdge("a", func(r pairResponse) *Connection[string] { return r.A })
	if _, err := TraverseComposite[pairResponse](context.Background(), fetch, a); !errors.Is(err, boom) {
		t.Errorf("TraverseComposite() error = %v, want %v", err, boom)
	}
}

func TestTraverseComposite_DuplicateNames(t *testing.T) {
	fetch := func(ctx context.Context, f Frontier) (pairResponse, error) {
		t.Fatal("fetch must not be called")
		return pairResponse{}, nil
	}

	a1 := NewEdge("a", func(r pairResponse) *Connection[string] { return r.A })
	a2 := NewEdge("a", func(r pairResponse) *Connection[int] { return r.B })

	if _, err := TraverseComposite[pairResponse](context.Background(), fetch, a1, a2); err == nil {
		t.Error("expected error for duplicate connection names")
	}
}
