package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/train-diorama/internal/debounce"
)

// Config controls the loop cadence.
type Config struct {
	// Tick is the nominal period. Run does not create its own ticker; the
	// caller feeds it, normally from time.NewTicker(Tick), which makes the
	// schedule fixed-rate: slow ticks are absorbed by the ticker rather than
	// pushing every later tick back.
	Tick time.Duration
	// Heartbeat is the heartbeat interval; <= 0 disables it.
	Heartbeat time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
	// PublishQueue is the number of events held for the publisher; when it
	// is full new events are dropped. Defaults to DefaultPublishQueue.
	PublishQueue int
}

type entry struct {
	input       debounce.Input
	handler     Handler
	active      bool
	counts      Counts
	readFailing bool
}

// Loop owns the registered inputs and dispatches their edges. It is not safe
// for concurrent use; everything runs on the goroutine that calls Run.
type Loop struct {
	cfg     Config
	entries []*entry
	byName  map[string]*entry

	queue       *publishQueue
	onTick      func(Snapshot)
	onHeartbeat func(HeartbeatData)

	startTime     time.Time
	lastHeartbeat time.Time
	ticks         uint64
	dropped       int
}

// New creates an empty loop.
func New(cfg Config) *Loop {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.PublishQueue <= 0 {
		cfg.PublishQueue = DefaultPublishQueue
	}
	start := cfg.Clock()
	return &Loop{
		cfg:           cfg,
		byName:        make(map[string]*entry),
		startTime:     start,
		lastHeartbeat: start,
	}
}

// Register adds an input and its handler. Inputs are evaluated in
// registration order on every tick.
func (l *Loop) Register(in debounce.Input, h Handler) error {
	if in == nil {
		return &debounce.ConfigError{Field: "input", Reason: "must not be nil"}
	}
	name := in.Name()
	if h == nil {
		return &debounce.ConfigError{Input: name, Field: "handler", Reason: "must not be nil"}
	}
	if _, dup := l.byName[name]; dup {
		return &debounce.ConfigError{Input: name, Field: "name", Reason: "already registered"}
	}
	e := &entry{input: in, handler: h}
	if a, ok := in.(interface{ Active() bool }); ok {
		e.active = a.Active()
	}
	l.entries = append(l.entries, e)
	l.byName[name] = e
	return nil
}

// SetPublisher sets the sink that receives every edge event. Events are
// delivered on a separate goroutine so a slow broker never delays dispatch.
// A previously set publisher is flushed first.
func (l *Loop) SetPublisher(p Publisher) {
	l.Close()
	if p != nil {
		l.queue = newPublishQueue(p, l.cfg.PublishQueue)
	}
}

// Close flushes queued events to the publisher and detaches it. Later edges
// are dispatched but not published.
func (l *Loop) Close() {
	if l.queue == nil {
		return
	}
	l.queue.close()
	l.queue = nil
}

// PublishDropped returns the number of events dropped because the publish
// queue was full.
func (l *Loop) PublishDropped() int {
	return l.dropped
}

// OnTick sets a callback run with a snapshot after every tick.
func (l *Loop) OnTick(fn func(Snapshot)) {
	l.onTick = fn
}

// OnHeartbeat sets a callback run every Config.Heartbeat.
func (l *Loop) OnHeartbeat(fn func(HeartbeatData)) {
	l.onHeartbeat = fn
}

// Tick runs one pass over all inputs and returns the edges it dispatched.
// Cancellation of ctx stops the pass before the next input is evaluated.
func (l *Loop) Tick(ctx context.Context, now time.Time) []Event {
	l.ticks++
	var events []Event

	for _, e := range l.entries {
		if ctx.Err() != nil {
			return events
		}

		name := e.input.Name()
		s, err := e.input.Latest()
		if err != nil {
			e.counts.ReadErrors++
			if !e.readFailing {
				log.WithFields(log.Fields{"input": name, "error": err}).Warn("input read failed")
				e.readFailing = true
			}
			continue
		}
		if e.readFailing {
			log.WithField("input", name).Info("input read recovered")
			e.readFailing = false
		}

		e.active = s.Active
		if !s.Changed {
			continue
		}

		if s.Active {
			e.counts.Activations++
		} else {
			e.counts.Deactivations++
		}

		ev := Event{Timestamp: now, Input: name, Active: s.Active}
		log.WithFields(log.Fields{"input": name, "active": s.Active}).Info(eventMessage(ev))

		if err := dispatch(e.handler, name, s.Active); err != nil {
			e.counts.DispatchErrors++
			ev.Err = err
			log.WithFields(log.Fields{"input": name, "error": err}).Warn("handler failed")
		}

		if l.queue != nil && !l.queue.offer(ev) {
			l.dropped++
			log.WithFields(log.Fields{"input": name, "dropped": l.dropped}).Warn("publish queue full, event dropped")
		}
		events = append(events, ev)
	}

	if hb := l.checkHeartbeat(now); hb != nil && l.onHeartbeat != nil {
		l.onHeartbeat(*hb)
	}
	if l.onTick != nil {
		l.onTick(l.snapshotAt(now))
	}
	return events
}

// dispatch runs the handler to completion and converts both returned errors
// and panics into a *DispatchError.
func dispatch(h Handler, name string, active bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DispatchError{Input: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if herr := h(name, active); herr != nil {
		var de *DispatchError
		if errors.As(herr, &de) {
			return herr
		}
		return &DispatchError{Input: name, Err: herr}
	}
	return nil
}

func eventMessage(ev Event) string {
	if ev.Active {
		return "input activated"
	}
	return "input deactivated"
}

// Run ticks on every value received from tick until ctx is cancelled or tick
// is closed. It returns nil on a normal shutdown.
func (l *Loop) Run(ctx context.Context, tick <-chan time.Time) error {
	log.WithFields(log.Fields{"inputs": len(l.entries), "tick": l.cfg.Tick}).Info("event loop started")
	for {
		select {
		case <-ctx.Done():
			log.WithField("ticks", l.ticks).Info("event loop stopped")
			return nil
		case _, ok := <-tick:
			if !ok {
				log.WithField("ticks", l.ticks).Info("tick source closed, event loop stopped")
				return nil
			}
			l.Tick(ctx, l.cfg.Clock())
		}
	}
}

// checkHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// is <= 0 (disabled).
func (l *Loop) checkHeartbeat(now time.Time) *HeartbeatData {
	if l.cfg.Heartbeat <= 0 {
		return nil
	}
	if now.Sub(l.lastHeartbeat) < l.cfg.Heartbeat {
		return nil
	}
	l.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(l.startTime),
		Ticks:     l.ticks,
		Inputs:    l.inputStates(),
	}
}

// Snapshot returns the current state of all inputs.
func (l *Loop) Snapshot() Snapshot {
	return l.snapshotAt(l.cfg.Clock())
}

func (l *Loop) snapshotAt(now time.Time) Snapshot {
	return Snapshot{Timestamp: now, Ticks: l.ticks, Inputs: l.inputStates()}
}

func (l *Loop) inputStates() []InputState {
	out := make([]InputState, len(l.entries))
	for i, e := range l.entries {
		out[i] = InputState{Name: e.input.Name(), Active: e.active, Counts: e.counts}
	}
	return out
}

// StartTime returns the time the loop was created.
func (l *Loop) StartTime() time.Time {
	return l.startTime
}

// Config returns the effective configuration.
func (l *Loop) Config() Config {
	return l.cfg
}
