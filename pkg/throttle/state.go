// Package throttle implements the adaptive request throttle that sits in front of
// every upstream exchange. It delays dispatch based on the remaining-quota
// telemetry and Retry-After directives reported by previous responses.
package throttle

import (
	"math"
	"time"
)

// Tuning constants for the proportional feedback controller.
const (
	// DefaultMinDelay is the floor for the inter-request delay.
	DefaultMinDelay = 500 * time.Millisecond

	// DefaultQuotaWindow and DefaultQuotaRequests describe the assumed upstream
	// quota window. Their ratio is the default roll-off factor.
	DefaultQuotaWindow   = 1500 * time.Millisecond
	DefaultQuotaRequests = 300

	// maxSamples is the number of rate samples the controller needs.
	maxSamples = 2
)

// DefaultRollOffFactor is derived from the assumed quota window (ms per request).
var DefaultRollOffFactor = float64(DefaultQuotaWindow.Milliseconds()) / DefaultQuotaRequests

// RateSample is one "remaining quota" value observed on a response.
type RateSample struct {
	// Remaining is the quota left as reported by the upstream.
	Remaining int `json:"remaining"`

	// ObservedAt is when the response carrying the value arrived.
	ObservedAt time.Time `json:"observed_at"`
}

// State is the mutable throttle model owned by exactly one Throttle.
type State struct {
	// DelayMs is the current inter-request delay in milliseconds.
	DelayMs float64 `json:"delay_ms"`

	// NotBefore is the absolute "do not call before" deadline from a Retry-After directive.
	NotBefore time.Time `json:"not_before"`

	// Samples holds at most the last two rate samples in arrival order.
	Samples []RateSample `json:"samples"`

	// pending is true while the newest sample has not been fed into the delay yet.
	pending bool
}

// newState returns a state initialised at the delay floor.
func newState(minDelay time.Duration) State {
	return State{DelayMs: float64(minDelay.Milliseconds())}
}

// Delay returns the current delay as a duration.
func (s State) Delay() time.Duration {
	return time.Duration(s.DelayMs * float64(time.Millisecond))
}

// record appends a sample, evicting older ones so at most two remain.
func (s *State) record(sample RateSample) {
	s.Samples = append(s.Samples, sample)
	if len(s.Samples) > maxSamples {
		s.Samples = append([]RateSample(nil), s.Samples[len(s.Samples)-maxSamples:]...)
	}
	s.pending = true
}

// adjust applies the feedback step if a fresh sample pair is available.
// change = secondLast - last*rollOff; delay = max(floor, delay + change).
func (s *State) adjust(minDelayMs, rollOff float64) {
	if len(s.Samples) < maxSamples || !s.pending {
		return
	}
	secondLast := float64(s.Samples[len(s.Samples)-2].Remaining)
	last := float64(s.Samples[len(s.Samples)-1].Remaining)

	change := secondLast - last*rollOff
	s.DelayMs = math.Max(minDelayMs, s.DelayMs+change)
	s.pending = false
}

// waitAt computes how long an exchange starting at now must wait.
// A Retry-After deadline in the future wins over the rate-based delay.
func (s *State) waitAt(now time.Time, minDelayMs, rollOff float64) (time.Duration, bool) {
	if s.NotBefore.After(now) {
		return s.NotBefore.Sub(now), true
	}
	s.adjust(minDelayMs, rollOff)
	return s.Delay(), false
}

// clone returns a deep copy safe to hand out.
func (s *State) clone() State {
	c := *s
	c.Samples = append([]RateSample(nil), s.Samples...)
	return c
}
