package throttle

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names emitted by the supported upstreams.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// Telemetry is the rate-limit metadata read from one response.
// Both fields are optional; upstreams are free to omit either.
type Telemetry struct {
	RetryAfter *time.Duration
	Remaining  *int
}

// Empty reports whether the response carried no usable telemetry.
func (t Telemetry) Empty() bool {
	return t.RetryAfter == nil && t.Remaining == nil
}

// ParseTelemetry reads the retry directive and remaining quota from headers.
// Missing or malformed values are left nil rather than reported as errors.
func ParseTelemetry(h http.Header, remainingHeader, retryAfterHeader string) Telemetry {
	return parseTelemetryAt(h, remainingHeader, retryAfterHeader, time.Now())
}

func parseTelemetryAt(h http.Header, remainingHeader, retryAfterHeader string, now time.Time) Telemetry {
	var t Telemetry
	if h == nil {
		return t
	}
	if remainingHeader == "" {
		remainingHeader = HeaderRemaining
	}
	if retryAfterHeader == "" {
		retryAfterHeader = HeaderRetryAfter
	}

	if raw := strings.TrimSpace(h.Get(remainingHeader)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			t.Remaining = &v
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			// Azure DevOps reports fractional TSTU values.
			v := int(f)
			t.Remaining = &v
		}
	}

	if raw := strings.TrimSpace(h.Get(retryAfterHeader)); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds >= 0 {
			d := time.Duration(seconds * float64(time.Second))
			t.RetryAfter = &d
		} else if at, err := http.ParseTime(raw); err == nil {
			d := at.Sub(now)
			if d < 0 {
				d = 0
			}
			t.RetryAfter = &d
		}
	}

	return t
}
