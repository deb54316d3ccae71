package timer

import (
	"sync"
	"time"
)

// Fake is a OneShot that only fires when the test calls Fire.
type Fake struct {
	mu    sync.Mutex
	fn    func()
	armed bool

	// Durations records the duration of every Arm call.
	Durations []time.Duration
}

// NewFake returns an unarmed Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Arm records fn as the pending callback.
func (f *Fake) Arm(d time.Duration, fn func()) {
	f.mu.Lock()
	f.fn = fn
	f.armed = true
	f.Durations = append(f.Durations, d)
	f.mu.Unlock()
}

// Stop drops the pending callback.
func (f *Fake) Stop() {
	f.mu.Lock()
	f.fn = nil
	f.armed = false
	f.mu.Unlock()
}

// Armed reports whether a fire is pending.
func (f *Fake) Armed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed
}

// Fire runs the pending callback once. It reports false if nothing was armed.
func (f *Fake) Fire() bool {
	f.mu.Lock()
	fn, armed := f.fn, f.armed
	f.fn = nil
	f.armed = false
	f.mu.Unlock()
	if !armed || fn == nil {
		return false
	}
	fn()
	return true
}
