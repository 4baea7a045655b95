package traffic

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// retention bounds how long outcome timestamps are kept regardless of the query window.
const retention = 5 * time.Minute

var defaultTracker = NewTracker(clockwork.NewRealClock())

// RecordResolved records a resolution served from live upstream data.
func RecordResolved() {
	defaultTracker.RecordResolved()
}

// RecordFallback records a resolution that fell back to the default report.
func RecordFallback() {
	defaultTracker.RecordFallback()
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// RequestCount returns the number of outcomes (resolved + fallback + denied) within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// FallbackRate returns (fallbackCount, totalCount) within the window. Denials are excluded.
func FallbackRate(window time.Duration) (fallbacks, total int) {
	return defaultTracker.FallbackRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps.
// Single source of truth for the overloaded and degraded health states.
type Tracker struct {
	mu            sync.Mutex
	clock         clockwork.Clock
	resolvedTimes []time.Time
	fallbackTimes []time.Time
	deniedTimes   []time.Time
}

// NewTracker returns a Tracker reading time from clock.
func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{clock: clock}
}

// RecordResolved records a live resolution.
func (t *Tracker) RecordResolved() {
	t.recordOutcome(&t.resolvedTimes)
}

// RecordFallback records a fallback resolution.
func (t *Tracker) RecordFallback() {
	t.recordOutcome(&t.fallbackTimes)
}

// RecordDenied records a rate-limit denial.
func (t *Tracker) RecordDenied() {
	t.recordOutcome(&t.deniedTimes)
}

func (t *Tracker) recordOutcome(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// RequestCount returns the total number of outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	return countInWindow(t.resolvedTimes, cutoff) +
		countInWindow(t.fallbackTimes, cutoff) +
		countInWindow(t.deniedTimes, cutoff)
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.deniedTimes, t.clock.Now().Add(-window))
}

// FallbackRate returns (fallbackCount, totalCount) within the window.
// totalCount includes resolved and fallback outcomes only.
func (t *Tracker) FallbackRate(window time.Duration) (fallbacks, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	fb := countInWindow(t.fallbackTimes, cutoff)
	ok := countInWindow(t.resolvedTimes, cutoff)
	return fb, fb + ok
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolvedTimes = nil
	t.fallbackTimes = nil
	t.deniedTimes = nil
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.resolvedTimes)
	prune(&t.fallbackTimes)
	prune(&t.deniedTimes)
}
