// Package timer provides the one-shot timer used to confirm debounced input.
package timer

import (
	"sync"
	"time"
)

// OneShot fires its callback exactly once per Arm call. Arm may be called
// from inside the callback to schedule the next fire.
type OneShot interface {
	Arm(d time.Duration, fn func())
	Stop()
}

// AfterFunc is a OneShot backed by time.AfterFunc.
type AfterFunc struct {
	mu sync.Mutex
	t  *time.Timer
}

// New returns an unarmed AfterFunc timer.
func New() *AfterFunc {
	return &AfterFunc{}
}

// Arm schedules fn to run once after d. A pending fire is cancelled.
func (a *AfterFunc) Arm(d time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.t != nil {
		a.t.Stop()
	}
	a.t = time.AfterFunc(d, fn)
}

// Stop cancels a pending fire.
func (a *AfterFunc) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.t != nil {
		a.t.Stop()
		a.t = nil
	}
}
