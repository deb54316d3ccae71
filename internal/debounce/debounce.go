// Package debounce turns noisy raw pin samples into clean edge events.
//
// Two strategies share the Input capability. PollingDebouncer is driven
// entirely by the caller's probe rate. InterruptDebouncer is driven by a
// pin-change interrupt and a one-shot confirmation timer, and hands the
// confirmed value to the caller through a ready flag.
//
// All values follow the pull-up, active-low convention: a raw low level is
// reported as Active.
package debounce

import "time"

// Strategy names a debounce implementation.
type Strategy string

const (
	StrategyPolling   Strategy = "polling"
	StrategyInterrupt Strategy = "interrupt"
)

// Defaults for interrupt-strategy inputs.
const (
	DefaultRequiredChecks = 3
	DefaultCheckPeriod    = 100 * time.Millisecond
)

// Sample is the debounced view of an input for one tick.
type Sample struct {
	// Active is the last confirmed logical state (pressed / beam broken).
	Active bool
	// Changed marks a tick that emits an edge. Polling inputs set it when
	// Active flips. Interrupt inputs start with no reported state, so their
	// first confirmed value is reported as Changed even if it equals the
	// level read at construction.
	Changed bool
}

// Input is a debounced digital input consumed by the event loop.
type Input interface {
	// Name is the stable identifier used for dispatch.
	Name() string

	// Latest returns the debounced state for this tick. A *ReadError means
	// the pin could not be sampled; the returned Sample then carries the
	// last confirmed state with Changed false.
	Latest() (Sample, error)
}

func activeLow(high bool) bool {
	return !high
}
