package provider

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Run tags the logs of one provider operation with a correlation id.
type Run struct {
	ID     string
	Logger zerolog.Logger
	start  time.Time
}

// StartRun begins a traced provider operation.
func StartRun(logger zerolog.Logger, operation, repository string) *Run {
	id := uuid.NewString()
	ctx := logger.With().
		Str("run_id", id).
		Str("operation", operation)
	if repository != "" {
		ctx = ctx.Str("repository", repository)
	}

	r := &Run{ID: id, Logger: ctx.Logger(), start: time.Now()}
	r.Logger.Debug().Msg("Traversal started")
	return r
}

// Done logs the outcome of the run.
func (r *Run) Done(items int, err error) {
	if err != nil {
		r.Logger.Error().
			Err(err).
			Dur("duration", time.Since(r.start)).
			Msg("Traversal failed")
		return
	}
	r.Logger.Info().
		Int("items", items).
		Dur("duration", time.Since(r.start)).
		Msg("Traversal complete")
}
