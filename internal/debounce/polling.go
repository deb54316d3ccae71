package debounce

import (
	"github.com/sweeney/train-diorama/internal/gpio"
)

// PollingDebouncer debounces a pin by requiring two consecutive agreeing
// samples before accepting a new level.
//
// The caller must not probe faster than the physical bounce duration of the
// switch: a bounce that spans two probes would be accepted. The 5 ms event
// loop tick satisfies this for the buttons and IR receivers on the diorama.
type PollingDebouncer struct {
	name      string
	pin       gpio.Pin
	confirmed bool // raw level
	pending   bool // raw level seen once, differs from confirmed when set
}

// NewPolling creates a PollingDebouncer seeded with the current pin level.
func NewPolling(name string, pin gpio.Pin) (*PollingDebouncer, error) {
	if name == "" {
		return nil, &ConfigError{Field: "name", Reason: "must not be empty"}
	}
	if pin == nil {
		return nil, &ConfigError{Input: name, Field: "pin", Reason: "must not be nil"}
	}
	v, err := pin.Read()
	if err != nil {
		return nil, &ReadError{Input: name, Err: err}
	}
	return &PollingDebouncer{
		name:      name,
		pin:       pin,
		confirmed: v,
		pending:   v,
	}, nil
}

// Name returns the input name.
func (d *PollingDebouncer) Name() string {
	return d.name
}

// Probe samples the pin once and returns the confirmed state and whether it
// flipped on this probe.
func (d *PollingDebouncer) Probe() (active, changed bool, err error) {
	sample, err := d.pin.Read()
	if err != nil {
		return activeLow(d.confirmed), false, &ReadError{Input: d.name, Err: err}
	}

	switch {
	case d.pending != d.confirmed && sample == d.pending:
		d.confirmed = d.pending
		changed = true
	case d.pending != d.confirmed:
		// Reverted before confirmation: drop the candidate.
		d.pending = d.confirmed
	case sample != d.confirmed:
		d.pending = sample
	}

	return activeLow(d.confirmed), changed, nil
}

// Latest probes the pin.
func (d *PollingDebouncer) Latest() (Sample, error) {
	active, changed, err := d.Probe()
	return Sample{Active: active, Changed: changed}, err
}

// Active returns the confirmed state without sampling.
func (d *PollingDebouncer) Active() bool {
	return activeLow(d.confirmed)
}
