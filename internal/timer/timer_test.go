package timer

import (
	"testing"
	"time"
)

func TestAfterFuncFiresOnce(t *testing.T) {
	a := New()
	fired := make(chan struct{}, 2)

	a.Arm(time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	select {
	case <-fired:
		t.Fatal("timer fired twice for one Arm")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestAfterFuncRearmFromCallback(t *testing.T) {
	a := New()
	done := make(chan int, 1)
	n := 0

	var cb func()
	cb = func() {
		n++
		if n < 3 {
			a.Arm(time.Millisecond, cb)
			return
		}
		done <- n
	}
	a.Arm(time.Millisecond, cb)

	select {
	case got := <-done:
		if got != 3 {
			t.Errorf("fires: got %d, want 3", got)
		}
	case <-time.After(time.Second):
		t.Fatal("re-armed timer did not complete")
	}
}

func TestAfterFuncStop(t *testing.T) {
	a := New()
	fired := make(chan struct{}, 1)

	a.Arm(20*time.Millisecond, func() { fired <- struct{}{} })
	a.Stop()

	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestFake(t *testing.T) {
	f := NewFake()
	if f.Fire() {
		t.Error("Fire should report false when unarmed")
	}

	calls := 0
	f.Arm(50*time.Millisecond, func() { calls++ })
	if !f.Armed() {
		t.Error("expected armed")
	}
	if !f.Fire() {
		t.Error("Fire should report true when armed")
	}
	if f.Fire() {
		t.Error("second Fire without Arm should report false")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if len(f.Durations) != 1 || f.Durations[0] != 50*time.Millisecond {
		t.Errorf("Durations: got %v", f.Durations)
	}

	f.Arm(time.Millisecond, func() { calls++ })
	f.Stop()
	if f.Fire() {
		t.Error("Fire after Stop should report false")
	}
}
