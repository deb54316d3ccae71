// Package status provides a thread-safe view of the controller's state for
// the HTTP handlers and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/train-diorama/internal/loop"
)

// InputConfig describes how one input is wired, for display.
type InputConfig struct {
	Name     string
	Kind     string
	Pin      int
	Strategy string
}

// Config contains controller configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Inputs      []InputConfig
}

// Snapshot is a point-in-time view of controller state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Inputs        []loop.InputState
	Ticks         uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int            // messages waiting in the outbox
	MQTTDropped   map[string]int // outbox overflow drops by topic
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update copies the loop snapshot. Called from the loop on every tick.
func (t *Tracker) Update(s loop.Snapshot) {
	inputs := make([]loop.InputState, len(s.Inputs))
	copy(inputs, s.Inputs)

	t.mu.Lock()
	t.snap.Inputs = inputs
	t.snap.Ticks = s.Ticks
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTQueue records the publisher outbox depth and drop counters.
func (t *Tracker) SetMQTTQueue(buffered int, dropped map[string]int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = buffered
	t.snap.MQTTDropped = copyCounts(dropped)
	t.mu.Unlock()
}

func copyCounts(m map[string]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Inputs = append([]loop.InputState(nil), t.snap.Inputs...)
	s.MQTTDropped = copyCounts(t.snap.MQTTDropped)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
