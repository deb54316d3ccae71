// Package actuator drives the diorama's outputs: LEDs and relays on a single
// line, and DC trains on an H-bridge. PWM fading is not done here; a level
// above zero switches the line on.
package actuator

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/train-diorama/internal/gpio"
)

// Leveler accepts a brightness or power level in percent.
type Leveler interface {
	SetLevel(level int) error
	Level() int
}

// Driver accepts a speed in percent and a direction.
type Driver interface {
	SetSpeedAndDirection(speed int, dir Direction) error
	Speed() int
	Direction() Direction
}

// Direction of a DC train.
type Direction int

const (
	Stopped Direction = iota + 1
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Stopped:
		return "stopped"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection parses "forward", "backward" or "stopped". An empty string
// is Stopped.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	case "stopped", "stop", "":
		return Stopped, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func checkPercent(what string, v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s %d out of range 0..100", what, v)
	}
	return nil
}

// Switched is an LED or relay on one output line.
type Switched struct {
	name   string
	out    gpio.Output
	invert bool
	level  int
}

// NewSwitched creates a Switched actuator. With invert the line is driven
// low when on.
func NewSwitched(name string, out gpio.Output, invert bool) *Switched {
	return &Switched{name: name, out: out, invert: invert}
}

// Name returns the actuator name.
func (s *Switched) Name() string {
	return s.name
}

// SetLevel switches the line on for any level above zero.
func (s *Switched) SetLevel(level int) error {
	if err := checkPercent("level", level); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	if err := s.out.Set((level > 0) != s.invert); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	s.level = level
	log.WithFields(log.Fields{"actuator": s.name, "level": level}).Debug("level set")
	return nil
}

// Level returns the last level set.
func (s *Switched) Level() int {
	return s.level
}

// HBridge drives a DC train through an L298N-style H-bridge: an enable line
// and two direction lines.
type HBridge struct {
	name     string
	enable   gpio.Output
	in1, in2 gpio.Output
	speed    int
	dir      Direction
}

// NewHBridge creates a stopped HBridge.
func NewHBridge(name string, enable, in1, in2 gpio.Output) *HBridge {
	return &HBridge{name: name, enable: enable, in1: in1, in2: in2, dir: Stopped}
}

// Name returns the actuator name.
func (h *HBridge) Name() string {
	return h.name
}

// SetSpeedAndDirection sets the direction lines, then the enable line.
// FORWARD is in1=0 in2=1, BACKWARD in1=1 in2=0, STOPPED both low.
func (h *HBridge) SetSpeedAndDirection(speed int, dir Direction) error {
	if err := checkPercent("speed", speed); err != nil {
		return fmt.Errorf("%s: %w", h.name, err)
	}

	var a, b bool
	switch dir {
	case Forward:
		a, b = false, true
	case Backward:
		a, b = true, false
	case Stopped:
	default:
		return fmt.Errorf("%s: unknown direction %v", h.name, dir)
	}

	if err := h.in1.Set(a); err != nil {
		return fmt.Errorf("%s: in1: %w", h.name, err)
	}
	if err := h.in2.Set(b); err != nil {
		return fmt.Errorf("%s: in2: %w", h.name, err)
	}
	if err := h.enable.Set(speed > 0 && dir != Stopped); err != nil {
		return fmt.Errorf("%s: enable: %w", h.name, err)
	}

	h.speed, h.dir = speed, dir
	log.WithFields(log.Fields{"actuator": h.name, "speed": speed, "direction": dir}).Debug("train set")
	return nil
}

// Stop stops the train immediately.
func (h *HBridge) Stop() error {
	return h.SetSpeedAndDirection(0, Stopped)
}

// Speed returns the last speed set.
func (h *HBridge) Speed() int {
	return h.speed
}

// Direction returns the last direction set.
func (h *HBridge) Direction() Direction {
	return h.dir
}
