package actuator

import (
	"errors"
	"testing"

	"github.com/sweeney/train-diorama/internal/gpio"
)

func TestSwitchedSetLevel(t *testing.T) {
	out := gpio.NewFakeOutput()
	s := NewSwitched("LED1", out, false)

	if err := s.SetLevel(100); err != nil {
		t.Fatalf("SetLevel(100): %v", err)
	}
	if !out.Level() {
		t.Error("level 100 should drive the line high")
	}
	if err := s.SetLevel(0); err != nil {
		t.Fatalf("SetLevel(0): %v", err)
	}
	if out.Level() {
		t.Error("level 0 should drive the line low")
	}
	if s.Level() != 0 {
		t.Errorf("Level: got %d, want 0", s.Level())
	}
}

func TestSwitchedInvert(t *testing.T) {
	out := gpio.NewFakeOutput()
	s := NewSwitched("RELAY1", out, true)

	s.SetLevel(50)
	if out.Level() {
		t.Error("inverted on should drive the line low")
	}
	s.SetLevel(0)
	if !out.Level() {
		t.Error("inverted off should drive the line high")
	}
}

func TestSwitchedRange(t *testing.T) {
	out := gpio.NewFakeOutput()
	s := NewSwitched("LED1", out, false)

	for _, v := range []int{-1, 101} {
		if err := s.SetLevel(v); err == nil {
			t.Errorf("SetLevel(%d): expected error", v)
		}
	}
	if len(out.Values) != 0 {
		t.Error("out-of-range level must not touch the line")
	}
}

func TestSwitchedOutputError(t *testing.T) {
	out := gpio.NewFakeOutput()
	out.SetError = errors.New("EBUSY")
	s := NewSwitched("LED1", out, false)

	if err := s.SetLevel(100); err == nil {
		t.Fatal("expected error")
	}
	if s.Level() != 0 {
		t.Error("failed write must not update the level")
	}
}

func newBridge() (*HBridge, *gpio.FakeOutput, *gpio.FakeOutput, *gpio.FakeOutput) {
	en, in1, in2 := gpio.NewFakeOutput(), gpio.NewFakeOutput(), gpio.NewFakeOutput()
	return NewHBridge("TRAIN1", en, in1, in2), en, in1, in2
}

func TestHBridgeDirections(t *testing.T) {
	tests := []struct {
		dir               Direction
		speed             int
		wantEn, want1, w2 bool
	}{
		{Forward, 60, true, false, true},
		{Backward, 60, true, true, false},
		{Stopped, 60, false, false, false},
		{Forward, 0, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			h, en, in1, in2 := newBridge()
			if err := h.SetSpeedAndDirection(tt.speed, tt.dir); err != nil {
				t.Fatalf("SetSpeedAndDirection: %v", err)
			}
			if en.Level() != tt.wantEn || in1.Level() != tt.want1 || in2.Level() != tt.w2 {
				t.Errorf("lines en/in1/in2: got %v/%v/%v, want %v/%v/%v",
					en.Level(), in1.Level(), in2.Level(), tt.wantEn, tt.want1, tt.w2)
			}
			if h.Direction() != tt.dir || h.Speed() != tt.speed {
				t.Errorf("state: got %v@%d", h.Direction(), h.Speed())
			}
		})
	}
}

func TestHBridgeRejectsBadInput(t *testing.T) {
	h, en, _, _ := newBridge()
	if err := h.SetSpeedAndDirection(150, Forward); err == nil {
		t.Error("expected speed range error")
	}
	if err := h.SetSpeedAndDirection(10, Direction(42)); err == nil {
		t.Error("expected direction error")
	}
	if len(en.Values) != 0 {
		t.Error("rejected command must not touch the enable line")
	}
}

func TestHBridgeStop(t *testing.T) {
	h, en, _, _ := newBridge()
	h.SetSpeedAndDirection(80, Forward)
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if en.Level() || h.Direction() != Stopped || h.Speed() != 0 {
		t.Errorf("after Stop: enable=%v dir=%v speed=%d", en.Level(), h.Direction(), h.Speed())
	}
}

func TestParseDirection(t *testing.T) {
	tests := map[string]Direction{"forward": Forward, "BACKWARD": Backward, "stopped": Stopped, "": Stopped}
	for in, want := range tests {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Errorf("ParseDirection(%q): got %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
}
