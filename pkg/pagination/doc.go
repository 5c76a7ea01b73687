// Package pagination walks paginated upstream result sets to exhaustion.
//
// Every helper here is format agnostic: callers supply a function that fetches
// one page and the package decides when to fetch the next one and how to
// accumulate results.
//
//   - Traverse / Walker: one cursor connection ({nodes, pageInfo}).
//   - TraverseComposite: several connections returned by the same request,
//     each with its own cursor. Exhausted connections are frozen.
//   - FanOut: one independent traversal per parent node, run concurrently
//     with results kept in parent order.
//   - Replay: folds a connect/disconnect event log into a LinkedSet.
//   - RangeScan: identifier-window scan for query dialects without cursors,
//     with batched sequential detail fetches. Best-effort: failed windows are
//     skipped and reported as ScanWarnings.
//   - CollectNumbered: classic page-number pagination.
//
// Example usage:
//
//	repos, err := pagination.Traverse(ctx, func(ctx context.Context, after *string) (*pagination.Connection[Repo], error) {
//		return client.repositoriesPage(ctx, owner, after)
//	})
//
// Within one connection page N+1 is never requested before page N has been
// read. Network pacing is the responsibility of the throttle behind the fetch
// functions.
package pagination
