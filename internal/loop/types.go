// Package loop is the cooperative scheduler: once per tick it asks every
// registered debounced input for its latest state and dispatches edge
// events to the handler registered under the input's name.
package loop

import (
	"fmt"
	"time"
)

// DefaultTick is the nominal loop period.
const DefaultTick = 5 * time.Millisecond

// Handler receives an edge event. A returned error is logged and counted;
// it never stops the loop.
type Handler func(name string, active bool) error

// EventType names the direction of an edge.
type EventType string

const (
	EventActivated   EventType = "ACTIVATED"
	EventDeactivated EventType = "DEACTIVATED"
)

// Event is an edge observed on one input during one tick.
type Event struct {
	Timestamp time.Time
	Input     string
	Active    bool
	// Err is the dispatch error returned by the handler, if any.
	Err error
}

// Type returns the edge direction.
func (e Event) Type() EventType {
	if e.Active {
		return EventActivated
	}
	return EventDeactivated
}

// Publisher receives every edge event after dispatch.
type Publisher interface {
	Publish(event Event) error
}

// Counts tracks per-input activity since startup.
type Counts struct {
	Activations    int
	Deactivations  int
	DispatchErrors int
	ReadErrors     int
}

// InputState is a point-in-time view of one registered input.
type InputState struct {
	Name   string
	Active bool
	Counts Counts
}

// Snapshot is a point-in-time view of the loop. Inputs are in registration
// order.
type Snapshot struct {
	Timestamp time.Time
	Ticks     uint64
	Inputs    []InputState
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Ticks     uint64
	Inputs    []InputState
}

// DispatchError wraps a failure raised by a handler, including a recovered
// panic.
type DispatchError struct {
	Input string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %q: %v", e.Input, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
