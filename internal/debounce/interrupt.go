package debounce

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/train-diorama/internal/gpio"
	"github.com/sweeney/train-diorama/internal/timer"
)

// Phase is the state of an InterruptDebouncer.
type Phase int

const (
	// Idle: pin interrupt armed, timer inactive.
	Idle Phase = iota
	// Confirming: pin interrupt disarmed, timer counting agreeing samples.
	Confirming
)

func (p Phase) String() string {
	if p == Confirming {
		return "confirming"
	}
	return "idle"
}

// InterruptConfig holds the confirmation parameters of an InterruptDebouncer.
type InterruptConfig struct {
	RequiredChecks int
	CheckPeriod    time.Duration
	// Edges defaults to gpio.EdgeBoth.
	Edges gpio.Edge
}

// Validate rejects parameters that would defeat debouncing.
func (c InterruptConfig) Validate(name string) error {
	if c.RequiredChecks <= 0 {
		return &ConfigError{Input: name, Field: "required_checks", Reason: "must be a positive integer"}
	}
	if c.CheckPeriod <= 0 {
		return &ConfigError{Input: name, Field: "check_period", Reason: "must be a positive duration"}
	}
	return nil
}

// InterruptDebouncer confirms a pin level with a repeating one-shot timer
// after a pin-change interrupt.
//
// A change interrupt captures the candidate level, disarms the interrupt and
// arms the timer. Every timer fire re-samples the pin: an agreeing sample
// counts, a disagreeing one becomes the new candidate and restarts the
// count. After RequiredChecks agreeing samples the level is published through
// the ready flag if it differs from the last published level, and the
// interrupt is re-armed.
//
// The timer and the interrupt are never both enabled. mu is the critical
// section shared by both callbacks and PollReady; it is held only for the
// state transition and a single pin read.
type InterruptDebouncer struct {
	name  string
	pin   gpio.InterruptPin
	timer timer.OneShot
	cfg   InterruptConfig

	mu              sync.Mutex
	phase           Phase
	candidate       bool
	candidateValid  bool
	confirmedChecks int
	lastEmitted     bool
	emitted         bool
	ready           bool
	value           bool
	current         bool // level last handed to the consumer
	readErrors      int
	closed          bool
}

// NewInterrupt creates an InterruptDebouncer and arms the pin interrupt.
func NewInterrupt(name string, pin gpio.InterruptPin, t timer.OneShot, cfg InterruptConfig) (*InterruptDebouncer, error) {
	if name == "" {
		return nil, &ConfigError{Field: "name", Reason: "must not be empty"}
	}
	if pin == nil {
		return nil, &ConfigError{Input: name, Field: "pin", Reason: "must not be nil"}
	}
	if t == nil {
		return nil, &ConfigError{Input: name, Field: "timer", Reason: "must not be nil"}
	}
	if err := cfg.Validate(name); err != nil {
		return nil, err
	}
	if cfg.Edges == 0 {
		cfg.Edges = gpio.EdgeBoth
	}

	d := &InterruptDebouncer{
		name:    name,
		pin:     pin,
		timer:   t,
		cfg:     cfg,
		phase:   Idle,
		current: true, // released until told otherwise
	}
	if v, err := pin.Read(); err == nil {
		d.current = v
	}

	if err := pin.Arm(cfg.Edges, d.onEdge); err != nil {
		return nil, &ReadError{Input: name, Err: err}
	}
	return d, nil
}

// Name returns the input name.
func (d *InterruptDebouncer) Name() string {
	return d.name
}

func (d *InterruptDebouncer) onEdge() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.phase != Idle {
		return
	}

	if v, err := d.pin.Read(); err != nil {
		// The first good timer sample becomes the candidate.
		d.readErrors++
		d.candidateValid = false
	} else {
		d.candidate = v
		d.candidateValid = true
	}
	d.confirmedChecks = 0

	if err := d.pin.Disarm(); err != nil {
		log.WithFields(log.Fields{"input": d.name, "error": err}).Warn("disarm interrupt failed")
	}
	d.phase = Confirming
	d.timer.Arm(d.cfg.CheckPeriod, d.onTimer)
}

func (d *InterruptDebouncer) onTimer() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.phase != Confirming {
		return
	}

	v, err := d.pin.Read()
	switch {
	case err != nil:
		d.readErrors++
		d.timer.Arm(d.cfg.CheckPeriod, d.onTimer)
		return
	case !d.candidateValid || v != d.candidate:
		// Still bouncing.
		d.candidate = v
		d.candidateValid = true
		d.confirmedChecks = 0
		d.timer.Arm(d.cfg.CheckPeriod, d.onTimer)
		return
	}

	d.confirmedChecks++
	if d.confirmedChecks < d.cfg.RequiredChecks {
		d.timer.Arm(d.cfg.CheckPeriod, d.onTimer)
		return
	}

	if !d.emitted || d.candidate != d.lastEmitted {
		d.lastEmitted = d.candidate
		d.emitted = true
		d.value = d.candidate
		d.ready = true
	}
	d.phase = Idle
	d.armLocked()
}

// armLocked re-enables the pin interrupt. On failure it retries after one
// check period; the timer is the only callback source until it succeeds.
func (d *InterruptDebouncer) armLocked() {
	if err := d.pin.Arm(d.cfg.Edges, d.onEdge); err != nil {
		log.WithFields(log.Fields{"input": d.name, "error": err}).Warn("re-arm interrupt failed, retrying")
		d.timer.Arm(d.cfg.CheckPeriod, d.retryArm)
	}
}

func (d *InterruptDebouncer) retryArm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.phase != Idle {
		return
	}
	d.armLocked()
}

// PollReady returns the newly confirmed raw level and clears the ready flag.
// ok is false if no new level was confirmed since the last call. It never
// blocks on the confirmation in progress.
func (d *InterruptDebouncer) PollReady() (high bool, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return false, false
	}
	d.ready = false
	d.current = d.value
	return d.value, true
}

// Latest consumes the ready flag.
func (d *InterruptDebouncer) Latest() (Sample, error) {
	high, ok := d.PollReady()
	if !ok {
		return Sample{Active: d.Active()}, nil
	}
	return Sample{Active: activeLow(high), Changed: true}, nil
}

// Active returns the state last handed to the consumer.
func (d *InterruptDebouncer) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return activeLow(d.current)
}

// Phase returns the current state machine phase.
func (d *InterruptDebouncer) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// ConfirmedChecks returns the number of agreeing samples seen for the
// current candidate.
func (d *InterruptDebouncer) ConfirmedChecks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.confirmedChecks
}

// ReadErrors returns the number of failed pin reads inside the callbacks.
func (d *InterruptDebouncer) ReadErrors() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readErrors
}

// Close stops the timer and disarms the pin interrupt.
func (d *InterruptDebouncer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.timer.Stop()
	return d.pin.Disarm()
}
