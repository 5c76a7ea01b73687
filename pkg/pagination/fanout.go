package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds traversal configuration.
type Config struct {
	// MaxConcurrency bounds the number of fan-out branches in flight.
	// Actual network timing is still serialised by the upstream throttle.
	MaxConcurrency int

	// Timeout bounds a single page fetch, including its throttle wait.
	// Zero disables the per-page timeout.
	Timeout time.Duration
}

// DefaultConfig returns the traversal defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 10
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	return c
}

// WithTimeout wraps a page fetcher so each page gets its own deadline.
func WithTimeout[T any](timeout time.Duration, fetch PageFetcher[T]) PageFetcher[T] {
	if timeout <= 0 {
		return fetch
	}
	return func(ctx context.Context, after *string) (*Connection[T], error) {
		pageCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fetch(pageCtx, after)
	}
}

// FanOut runs fn once per parent, concurrently, and returns the results in
// parent order. Each branch writes only its own slot. The first failing
// branch cancels the others and its error is returned with no results.
func FanOut[P, C any](ctx context.Context, cfg Config, parents []P, fn func(ctx context.Context, parent P) (C, error)) ([]C, error) {
	cfg = cfg.withDefaults()
	results := make([]C, len(parents))
	if len(parents) == 0 {
		return results, nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)

	for i, parent := range parents {
		i, parent := i, parent
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			child, err := fn(gctx, parent)
			if err != nil {
				return fmt.Errorf("fan-out branch %d: %w", i, err)
			}
			results[i] = child
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Debug().
			Err(err).
			Int("branches", len(parents)).
			Msg("Fan-out aborted")
		return nil, err
	}

	log.Debug().
		Int("branches", len(parents)).
		Int("max_concurrency", cfg.MaxConcurrency).
		Dur("duration", time.Since(start)).
		Msg("Fan-out complete")

	return results, nil
}
