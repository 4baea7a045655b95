// Package lifecycle holds process-wide serving state read by the health handler.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// Phase is the coarse serving state of the process.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseServing
	PhaseDraining
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseServing:
		return "serving"
	case PhaseDraining:
		return "draining"
	default:
		return "unknown"
	}
}

var (
	phase     atomic.Int32
	startedAt atomic.Int64
)

// MarkServing records the start time and moves the process to PhaseServing.
func MarkServing(now time.Time) {
	startedAt.Store(now.UnixNano())
	phase.Store(int32(PhaseServing))
}

// CurrentPhase returns the current phase.
func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// SetShuttingDown moves the process into PhaseDraining when v is true, or back to
// PhaseServing when false. Call with true when SIGTERM/SIGINT is received.
func SetShuttingDown(v bool) {
	if v {
		phase.Store(int32(PhaseDraining))
		return
	}
	phase.Store(int32(PhaseServing))
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return CurrentPhase() == PhaseDraining
}

// Uptime returns time elapsed since MarkServing, or zero if it was never called.
func Uptime(now time.Time) time.Duration {
	ns := startedAt.Load()
	if ns == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, ns))
}
