package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// NumberedFetcher fetches one page of a page-number paginated endpoint.
// Pages are numbered from 1.
type NumberedFetcher[T any] func(ctx context.Context, page int) ([]T, error)

// CollectNumbered reads pages 1, 2, ... until a page returns fewer than
// pageSize items. Pages are requested strictly in order.
func CollectNumbered[T any](ctx context.Context, pageSize int, fetch NumberedFetcher[T]) ([]T, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive (got %d)", pageSize)
	}

	start := time.Now()
	var all []T
	page := 1
	for ; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := fetch(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		all = append(all, items...)

		// Progress logging every 50 pages
		if page%50 == 0 {
			log.Info().
				Int("pages", page).
				Int("items", len(all)).
				Msg("Fetch progress")
		}

		if len(items) < pageSize {
			break
		}
	}

	log.Debug().
		Int("pages", page).
		Int("items", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return all, nil
}
