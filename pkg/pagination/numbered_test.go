package pagination

import (
	"context"
	"errors"
	"testing"
)

func TestCollectNumbered(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantPages int
	}{
		{"short first page", 30, 100, 1},
		{"two full pages then empty", 200, 100, 3},
		{"partial last page", 250, 100, 3},
		{"nothing", 0, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pages []int
			fetch := func(ctx context.Context, page int) ([]int, error) {
				pages = append(pages, page)
				start := (page - 1) * tt.pageSize
				end := start + tt.pageSize
				if end > tt.total {
					end = tt.total
				}
				var out []int
				for i := start; i < end; i++ {
					out = append(out, i)
				}
				return out, nil
			}

			got, err := CollectNumbered(context.Background(), tt.pageSize, fetch)
			if err != nil {
				t.Fatalf("CollectNumbered() error = %v", err)
			}
			if len(got) != tt.total {
				t.Errorf("items = %d, want %d", len(got), tt.total)
			}
			if len(pages) != tt.wantPages {
				t.Errorf("pages requested = %v, want %d pages", pages, tt.wantPages)
			}
			for i, p := range pages {
				if p != i+1 {
					t.Errorf("page %d requested as %d", i+1, p)
				}
			}
		})
	}
}

func TestCollectNumbered_Errors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := CollectNumbered(context.Background(), 10, func(ctx context.Context, page int) ([]int, error) {
		if page == 2 {
			return nil, boom
		}
		return make([]int, 10), nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("CollectNumbered() error = %v, want %v", err, boom)
	}

	if _, err := CollectNumbered(context.Background(), 0, func(ctx context.Context, page int) ([]int, error) {
		return nil, nil
	}); err == nil {
		t.Error("expected error for zero page size")
	}
}
