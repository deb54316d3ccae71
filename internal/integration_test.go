package internal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/train-diorama/internal/actuator"
	"github.com/sweeney/train-diorama/internal/debounce"
	"github.com/sweeney/train-diorama/internal/gpio"
	"github.com/sweeney/train-diorama/internal/loop"
	"github.com/sweeney/train-diorama/internal/mqtt"
	"github.com/sweeney/train-diorama/internal/scene"
	"github.com/sweeney/train-diorama/internal/status"
	"github.com/sweeney/train-diorama/internal/timer"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// layout is a small diorama: one button toggling a lamp, one IR sensor
// stopping a train.
type layout struct {
	button  *gpio.FakePin
	sensor  *gpio.FakePin
	lamp    *gpio.FakeOutput
	enable  *gpio.FakeOutput
	train   *actuator.HBridge
	loop    *loop.Loop
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	now     time.Time
}

func newLayout(t *testing.T, button, sensor []bool) *layout {
	t.Helper()
	l := &layout{
		button: gpio.NewFakePin(button...),
		sensor: gpio.NewFakePin(sensor...),
		lamp:   gpio.NewFakeOutput(),
		enable: gpio.NewFakeOutput(),
		pub:    mqtt.NewFakePublisher(),
		now:    startTime,
	}
	l.train = actuator.NewHBridge("TRAIN1", l.enable, gpio.NewFakeOutput(), gpio.NewFakeOutput())

	ctrl, err := scene.New([]scene.Action{
		{Input: "Button1", Target: "LAMP", Command: scene.CommandToggle},
		{Input: "IR4", Target: "TRAIN1", Command: scene.CommandStop},
	}, map[string]actuator.Leveler{
		"LAMP": actuator.NewSwitched("LAMP", l.lamp, false),
	}, map[string]actuator.Driver{
		"TRAIN1": l.train,
	})
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	ctrl.SetRole("Button1", scene.RoleButton)
	ctrl.SetRole("IR4", scene.RoleSensor)

	l.loop = loop.New(loop.Config{Tick: 5 * time.Millisecond, Clock: func() time.Time { return l.now }})
	for _, in := range []struct {
		name string
		pin  gpio.Pin
	}{{"Button1", l.button}, {"IR4", l.sensor}} {
		d, err := debounce.NewPolling(in.name, in.pin)
		if err != nil {
			t.Fatalf("debouncer %s: %v", in.name, err)
		}
		if err := l.loop.Register(d, ctrl.Handle); err != nil {
			t.Fatalf("register %s: %v", in.name, err)
		}
	}

	l.tracker = status.NewTracker(startTime, status.Config{TickMs: 5})
	l.loop.SetPublisher(l.pub)
	l.loop.OnTick(l.tracker.Update)
	return l
}

func (l *layout) run(ticks int) []loop.Event {
	var all []loop.Event
	for i := 0; i < ticks; i++ {
		l.now = l.now.Add(5 * time.Millisecond)
		all = append(all, l.loop.Tick(context.Background(), l.now)...)
	}
	return all
}

// TestIntegrationFullFlow drives both inputs from GPIO to MQTT and the
// actuators.
func TestIntegrationFullFlow(t *testing.T) {
	// Button: pressed at tick 1-2, released at 3-4.
	// Sensor: beam broken at tick 3-4.
	l := newLayout(t,
		[]bool{true, false, false, true, true},
		[]bool{true, true, true, false, false},
	)
	if err := l.train.SetSpeedAndDirection(60, actuator.Forward); err != nil {
		t.Fatalf("start train: %v", err)
	}

	events := l.run(4)

	want := []struct {
		input  string
		active bool
	}{
		{"Button1", true},
		{"Button1", false},
		{"IR4", true},
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(events), events)
	}
	for i, w := range want {
		if events[i].Input != w.input || events[i].Active != w.active {
			t.Errorf("event %d: got %s/%v, want %s/%v", i, events[i].Input, events[i].Active, w.input, w.active)
		}
	}

	if !l.lamp.Level() {
		t.Error("lamp should be on after one press")
	}
	if l.train.Speed() != 0 || l.enable.Level() {
		t.Error("train should stop at IR4")
	}
	l.loop.Close()
	if l.pub.EventCount() != 3 {
		t.Errorf("expected 3 published events, got %d", l.pub.EventCount())
	}

	snap := l.tracker.Snapshot()
	if snap.Ticks != 4 {
		t.Errorf("tracker ticks: got %d, want 4", snap.Ticks)
	}
	if snap.Inputs[0].Counts.Activations != 1 || snap.Inputs[0].Counts.Deactivations != 1 {
		t.Errorf("Button1 counts: %+v", snap.Inputs[0].Counts)
	}
	if !snap.Inputs[1].Active {
		t.Error("IR4 should be active in status")
	}
}

func TestIntegrationBounceRejection(t *testing.T) {
	// Alternating samples never agree twice in a row.
	l := newLayout(t,
		[]bool{true, false, true, false, true, false, true},
		[]bool{true},
	)
	if events := l.run(6); len(events) != 0 {
		t.Errorf("bouncing contact produced events: %+v", events)
	}
	if len(l.lamp.Values) != 0 {
		t.Error("lamp should never have been driven")
	}
}

func TestIntegrationNoEventsAtSteadyState(t *testing.T) {
	l := newLayout(t, []bool{false}, []bool{true})
	if events := l.run(20); len(events) != 0 {
		t.Errorf("steady input produced events: %+v", events)
	}
}

func TestIntegrationHandlerFailureIsolated(t *testing.T) {
	l := newLayout(t,
		[]bool{true, false, false},
		[]bool{true, false, false},
	)
	l.lamp.SetError = errors.New("relay coil open")

	events := l.run(2)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	var de *loop.DispatchError
	if !errors.As(events[0].Err, &de) || de.Input != "Button1" {
		t.Errorf("expected DispatchError for Button1, got %v", events[0].Err)
	}
	if events[1].Err != nil {
		t.Errorf("IR4 should dispatch cleanly, got %v", events[1].Err)
	}

	l.loop.Close()
	var p mqtt.Payload
	if err := json.Unmarshal(l.pub.Payloads[0], &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Input.Error == "" {
		t.Error("published payload should carry the dispatch error")
	}
	if l.tracker.Snapshot().Inputs[0].Counts.DispatchErrors != 1 {
		t.Error("dispatch error not counted")
	}
}

func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	l := newLayout(t, []bool{true, false, false}, []bool{true})
	l.pub.PublishError = errors.New("broker down")

	events := l.run(3)
	if len(events) != 1 {
		t.Fatalf("expected 1 event despite publish failure, got %d", len(events))
	}
	if !l.lamp.Level() {
		t.Error("handler should still run when publishing fails")
	}
}

func TestIntegrationReadErrorKeepsState(t *testing.T) {
	l := newLayout(t, []bool{true, false, false}, []bool{true})
	l.run(2)

	l.button.ReadError = errors.New("EIO")
	if events := l.run(3); len(events) != 0 {
		t.Errorf("read errors should not produce events: %+v", events)
	}
	snap := l.tracker.Snapshot()
	if !snap.Inputs[0].Active {
		t.Error("Button1 should keep its last confirmed state")
	}
	if snap.Inputs[0].Counts.ReadErrors != 3 {
		t.Errorf("ReadErrors: got %d, want 3", snap.Inputs[0].Counts.ReadErrors)
	}
}

// TestIntegrationInterruptRealTimer confirms an edge with the real timer.
func TestIntegrationInterruptRealTimer(t *testing.T) {
	pin := gpio.NewFakeInterruptPin(true, false, false, false)
	d, err := debounce.NewInterrupt("Button3", pin, timer.New(), debounce.InterruptConfig{
		RequiredChecks: 2,
		CheckPeriod:    2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewInterrupt: %v", err)
	}
	defer d.Close()

	var got []bool
	lp := loop.New(loop.Config{})
	if err := lp.Register(d, func(name string, active bool) error {
		got = append(got, active)
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	pin.Trigger()
	deadline := time.Now().Add(time.Second)
	for len(got) == 0 && time.Now().Before(deadline) {
		lp.Tick(context.Background(), time.Now())
		time.Sleep(time.Millisecond)
	}
	if len(got) != 1 || !got[0] {
		t.Fatalf("expected one activation, got %v", got)
	}
	if d.Phase() != debounce.Idle || !pin.Armed() {
		t.Error("debouncer should be idle and re-armed after confirmation")
	}

	for i := 0; i < 10; i++ {
		lp.Tick(context.Background(), time.Now())
	}
	if len(got) != 1 {
		t.Errorf("confirmed value delivered more than once: %v", got)
	}
}

func TestIntegrationShutdownPayload(t *testing.T) {
	l := newLayout(t, []bool{true, false, false}, []bool{true})
	l.run(2)

	snap := l.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"),
	}
	if err := l.pub.PublishSystem(ev); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(l.pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("unexpected event/reason: %s/%s", parsed.Status.Event, parsed.Status.Reason)
	}
	if len(parsed.Status.Inputs) != 2 || !parsed.Status.Inputs[0].Active {
		t.Errorf("shutdown status should carry input state: %+v", parsed.Status.Inputs)
	}
}
