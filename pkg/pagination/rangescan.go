package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Range scan defaults.
const (
	DefaultWindowWidth            = 20000
	DefaultBatchSize              = 200
	DefaultMaxConsecutiveFailures = 5
)

// ErrScanAborted is returned when too many consecutive windows fail.
var ErrScanAborted = errors.New("range scan aborted")

var (
	scanWindowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_scan_windows_total",
		Help: "Total identifier-range windows queried by range scans",
	})

	scanWindowFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_scan_window_failures_total",
		Help: "Total range scan windows skipped after a query failure",
	})
)

// ScanConfig controls a range-windowed scan.
type ScanConfig struct {
	// WindowWidth is the identifier span covered by one window query.
	WindowWidth int

	// BatchSize is the maximum ids per detail call.
	BatchSize int

	// MaxConsecutiveFailures stops a scan whose window query keeps failing.
	MaxConsecutiveFailures int
}

// DefaultScanConfig returns the work-item scan defaults.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		WindowWidth:            DefaultWindowWidth,
		BatchSize:              DefaultBatchSize,
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
	}
}

func (c ScanConfig) withDefaults() ScanConfig {
	if c.WindowWidth <= 0 {
		c.WindowWidth = DefaultWindowWidth
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	return c
}

// WindowQuery returns the ids in [lower, upper).
type WindowQuery func(ctx context.Context, lower, upper int) ([]int, error)

// BatchDetail fetches the details for at most BatchSize ids.
type BatchDetail[D any] func(ctx context.Context, ids []int) (D, error)

// ScanWarning records a window that was skipped because its query failed.
type ScanWarning struct {
	Lower int
	Upper int
	Err   error
}

func (w ScanWarning) Error() string {
	return fmt.Sprintf("window [%d,%d) skipped: %v", w.Lower, w.Upper, w.Err)
}

// ScanResult is the outcome of a range scan.
type ScanResult[D any] struct {
	Details  []D
	Warnings []ScanWarning
	Windows  int
}

// Complete reports whether every window was read.
func (r ScanResult[D]) Complete() bool {
	return len(r.Warnings) == 0
}

// RangeScan walks identifier windows [0,W), [W,2W), ... until a window comes
// back empty. Ids of each window are handed to detail in batches, one batch at
// a time. A failing window query is skipped and reported in Warnings, so the
// result is best-effort; detail failures and cancellation abort the scan.
func RangeScan[D any](ctx context.Context, cfg ScanConfig, query WindowQuery, detail BatchDetail[D]) (ScanResult[D], error) {
	cfg = cfg.withDefaults()
	var result ScanResult[D]
	start := time.Now()
	failures := 0

	for lower := 0; ; lower += cfg.WindowWidth {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		upper := lower + cfg.WindowWidth
		ids, err := query(ctx, lower, upper)
		result.Windows++
		scanWindowsTotal.Inc()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			failures++
			scanWindowFailuresTotal.Inc()
			warning := ScanWarning{Lower: lower, Upper: upper, Err: err}
			result.Warnings = append(result.Warnings, warning)

			log.Warn().
				Err(err).
				Int("lower", lower).
				Int("upper", upper).
				Int("consecutive_failures", failures).
				Msg("Range scan window failed - skipping")

			if failures >= cfg.MaxConsecutiveFailures {
				return result, fmt.Errorf("%w after %d consecutive window failures: %v", ErrScanAborted, failures, err)
			}
			continue
		}
		failures = 0

		if len(ids) == 0 {
			break
		}

		for _, batch := range Chunk(ids, cfg.BatchSize) {
			d, err := detail(ctx, batch)
			if err != nil {
				return result, fmt.Errorf("fetch details for window [%d,%d): %w", lower, upper, err)
			}
			result.Details = append(result.Details, d)
		}
	}

	log.Debug().
		Int("windows", result.Windows).
		Int("batches", len(result.Details)).
		Int("skipped_windows", len(result.Warnings)).
		Dur("duration", time.Since(start)).
		Msg("Range scan complete")

	return result, nil
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
