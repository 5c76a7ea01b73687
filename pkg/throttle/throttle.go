package throttle

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for the adaptive throttle.
var (
	throttleDelaySeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_throttle_delay_seconds",
		Help: "Current adaptive inter-request delay by upstream",
	}, []string{"upstream"})

	throttleRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_throttle_remaining",
		Help: "Last remaining quota reported by the upstream",
	}, []string{"upstream"})

	throttleWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_throttle_wait_seconds",
		Help:    "Time an exchange waited before dispatch",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"upstream"})

	throttleRetryAfterTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_throttle_retry_after_total",
		Help: "Total number of Retry-After directives received",
	}, []string{"upstream"})

	throttleExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_throttle_exchanges_total",
		Help: "Total exchanges passed through the throttle by outcome",
	}, []string{"upstream", "outcome"})
)

// Exchange performs one request/response round trip.
type Exchange func(ctx context.Context) (*http.Response, error)

// Config holds throttle tuning.
type Config struct {
	// Name labels logs and metrics, usually the upstream adapter name.
	Name string

	// MinDelay is the delay floor (default 500ms).
	MinDelay time.Duration

	// RollOffFactor weights the newest remaining-quota sample (default 5.0).
	RollOffFactor float64

	// RemainingHeader and RetryAfterHeader override the telemetry header names.
	RemainingHeader  string
	RetryAfterHeader string

	// MaxRate is an optional hard ceiling in requests per second. Zero disables it.
	MaxRate float64
}

// DefaultConfig returns the tuning used for both supported upstreams.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MinDelay:         DefaultMinDelay,
		RollOffFactor:    DefaultRollOffFactor,
		RemainingHeader:  HeaderRemaining,
		RetryAfterHeader: HeaderRetryAfter,
	}
}

// Throttle delays exchanges against one upstream credential/base URL pair.
// All state transitions happen under mu so concurrent fan-out branches see a
// consistent reserve-then-commit sequence.
type Throttle struct {
	cfg     Config
	logger  zerolog.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	state    State
	lastSlot time.Time

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New creates a throttle with its own state.
func New(cfg Config, logger zerolog.Logger) *Throttle {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.RollOffFactor <= 0 {
		cfg.RollOffFactor = DefaultRollOffFactor
	}
	if cfg.RemainingHeader == "" {
		cfg.RemainingHeader = HeaderRemaining
	}
	if cfg.RetryAfterHeader == "" {
		cfg.RetryAfterHeader = HeaderRetryAfter
	}

	t := &Throttle{
		cfg:    cfg,
		logger: logger.With().Str("upstream", cfg.Name).Logger(),
		state:  newState(cfg.MinDelay),
		now:    time.Now,
		after:  time.After,
	}
	if cfg.MaxRate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRate), 1)
	}

	throttleDelaySeconds.WithLabelValues(cfg.Name).Set(cfg.MinDelay.Seconds())
	return t
}

// Name returns the upstream label.
func (t *Throttle) Name() string {
	return t.cfg.Name
}

// Execute waits for the computed delay, runs the exchange and feeds the
// response telemetry back into the state. Non-2xx responses are returned
// as-is; only transport failures and cancellation produce an error.
func (t *Throttle) Execute(ctx context.Context, exchange Exchange) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		throttleExchangesTotal.WithLabelValues(t.cfg.Name, "cancelled").Inc()
		return nil, err
	}

	r := t.reserve()
	throttleWaitSeconds.WithLabelValues(t.cfg.Name).Observe(r.wait.Seconds())

	for r.wait > 0 {
		select {
		case <-ctx.Done():
			t.release(r)
			throttleExchangesTotal.WithLabelValues(t.cfg.Name, "cancelled").Inc()
			t.logger.Debug().Dur("wait", r.wait).Msg("Exchange cancelled while throttled")
			return nil, ctx.Err()
		case <-t.after(r.wait):
		}
		// A Retry-After seen while this exchange was queued moves its slot.
		r = t.recheck(r)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			throttleExchangesTotal.WithLabelValues(t.cfg.Name, "cancelled").Inc()
			return nil, err
		}
	}

	resp, err := exchange(ctx)
	if err != nil {
		throttleExchangesTotal.WithLabelValues(t.cfg.Name, "transport_error").Inc()
		return nil, err
	}

	t.Observe(resp.Header)
	throttleExchangesTotal.WithLabelValues(t.cfg.Name, "ok").Inc()
	return resp, nil
}

// reservation is a booked dispatch slot and the booking it replaced.
type reservation struct {
	wait time.Duration
	slot time.Time
	prev time.Time
}

// reserve computes the wait for the next exchange and books its dispatch slot.
func (t *Throttle) reserve() reservation {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	wait, deadline := t.state.waitAt(now, float64(t.cfg.MinDelay.Milliseconds()), t.cfg.RollOffFactor)
	r := t.book(now, wait)

	throttleDelaySeconds.WithLabelValues(t.cfg.Name).Set(t.state.Delay().Seconds())
	t.logger.Debug().
		Dur("wait", r.wait).
		Float64("delay_ms", t.state.DelayMs).
		Bool("retry_after_active", deadline).
		Msg("Exchange scheduled")

	return r
}

// recheck is called when a reservation's wait has elapsed. If a Retry-After
// deadline was set in the meantime, the exchange is booked again behind it.
// A zero wait means the exchange may dispatch now. Callers hold no lock.
func (t *Throttle) recheck(r reservation) reservation {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.state.NotBefore.After(now) {
		return reservation{}
	}
	t.unbook(r)
	next := t.book(now, t.state.NotBefore.Sub(now))

	t.logger.Debug().
		Dur("wait", next.wait).
		Time("not_before", t.state.NotBefore).
		Msg("Exchange deferred by retry deadline")
	return next
}

// release gives back the slot of an exchange that will not dispatch.
func (t *Throttle) release(r reservation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unbook(r)
}

// book reserves the first slot at least wait after now, queued behind any
// future slot already booked. Must be called with mu held.
func (t *Throttle) book(now time.Time, wait time.Duration) reservation {
	dispatch := now.Add(wait)
	if t.lastSlot.After(now) {
		if next := t.lastSlot.Add(t.state.Delay()); next.After(dispatch) {
			dispatch = next
		}
	}
	r := reservation{wait: dispatch.Sub(now), slot: dispatch, prev: t.lastSlot}
	t.lastSlot = dispatch
	return r
}

// unbook rolls lastSlot back when r is still the latest booking.
// Must be called with mu held.
func (t *Throttle) unbook(r reservation) {
	if !r.slot.IsZero() && t.lastSlot.Equal(r.slot) {
		t.lastSlot = r.prev
	}
}

// Observe commits the telemetry of a completed response.
func (t *Throttle) Observe(h http.Header) {
	now := t.now()
	tel := parseTelemetryAt(h, t.cfg.RemainingHeader, t.cfg.RetryAfterHeader, now)
	if tel.Empty() {
		t.logger.Debug().Msg("Response carried no rate-limit telemetry")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if tel.RetryAfter != nil {
		t.state.NotBefore = now.Add(*tel.RetryAfter)
		throttleRetryAfterTotal.WithLabelValues(t.cfg.Name).Inc()
		t.logger.Warn().
			Dur("retry_after", *tel.RetryAfter).
			Time("not_before", t.state.NotBefore).
			Msg("Upstream requested retry delay")
	}

	if tel.Remaining != nil {
		t.state.record(RateSample{Remaining: *tel.Remaining, ObservedAt: now})
		throttleRemaining.WithLabelValues(t.cfg.Name).Set(float64(*tel.Remaining))
	}
}

// Snapshot returns a copy of the current state.
func (t *Throttle) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}
