// Package scene maps debounced input edges onto actuator commands.
package scene

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/train-diorama/internal/actuator"
	"github.com/sweeney/train-diorama/internal/debounce"
)

// Role describes what an input is attached to; it only affects logging.
type Role string

const (
	RoleButton Role = "button"
	RoleSensor Role = "sensor"
)

// Command is an actuator operation.
type Command string

const (
	CommandLevel  Command = "level"
	CommandToggle Command = "toggle"
	CommandSpeed  Command = "speed"
	CommandStop   Command = "stop"
)

// Edge selects which transition of an input triggers an action.
type Edge string

const (
	OnActive   Edge = "active"
	OnInactive Edge = "inactive"
)

// Action runs Command on Target when Input makes the On transition.
type Action struct {
	Input     string
	On        Edge
	Target    string
	Command   Command
	Level     int
	Speed     int
	Direction string
}

type boundAction struct {
	Action
	dir actuator.Direction
}

// Controller receives dispatched events and mutates actuator state.
type Controller struct {
	roles    map[string]Role
	actions  map[string][]boundAction
	levelers map[string]actuator.Leveler
	drivers  map[string]actuator.Driver
}

// New validates actions against the known actuators.
func New(actions []Action, levelers map[string]actuator.Leveler, drivers map[string]actuator.Driver) (*Controller, error) {
	c := &Controller{
		roles:    make(map[string]Role),
		actions:  make(map[string][]boundAction),
		levelers: levelers,
		drivers:  drivers,
	}

	var errs []error
	for i, a := range actions {
		ba, err := c.bind(a)
		if err != nil {
			errs = append(errs, &debounce.ConfigError{Input: a.Input, Field: fmt.Sprintf("action #%d", i), Reason: err.Error()})
			continue
		}
		c.actions[a.Input] = append(c.actions[a.Input], ba)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func (c *Controller) bind(a Action) (boundAction, error) {
	ba := boundAction{Action: a}
	if a.Input == "" {
		return ba, errors.New("input must not be empty")
	}
	switch a.On {
	case OnActive, OnInactive:
	case "":
		ba.On = OnActive
	default:
		return ba, fmt.Errorf("unknown edge %q", a.On)
	}

	switch a.Command {
	case CommandLevel, CommandToggle:
		if _, ok := c.levelers[a.Target]; !ok {
			return ba, fmt.Errorf("unknown light or relay %q", a.Target)
		}
		if a.Level < 0 || a.Level > 100 {
			return ba, fmt.Errorf("level %d out of range 0..100", a.Level)
		}
	case CommandSpeed, CommandStop:
		if _, ok := c.drivers[a.Target]; !ok {
			return ba, fmt.Errorf("unknown train %q", a.Target)
		}
		dir, err := actuator.ParseDirection(a.Direction)
		if err != nil {
			return ba, err
		}
		if a.Command == CommandSpeed {
			if a.Speed < 0 || a.Speed > 100 {
				return ba, fmt.Errorf("speed %d out of range 0..100", a.Speed)
			}
			if a.Speed > 0 && dir == actuator.Stopped {
				return ba, fmt.Errorf("speed %d needs a direction", a.Speed)
			}
		}
		ba.dir = dir
	default:
		return ba, fmt.Errorf("unknown command %q", a.Command)
	}
	return ba, nil
}

// SetRole records what an input is attached to.
func (c *Controller) SetRole(input string, r Role) {
	c.roles[input] = r
}

// Handle runs every action bound to the input edge. It is a loop.Handler.
// All matching actions run even if one fails; failures are joined.
func (c *Controller) Handle(name string, active bool) error {
	c.logEdge(name, active)

	edge := OnInactive
	if active {
		edge = OnActive
	}

	var errs []error
	for _, a := range c.actions[name] {
		if a.On != edge {
			continue
		}
		if err := c.run(a); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", a.Command, a.Target, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) run(a boundAction) error {
	switch a.Command {
	case CommandLevel:
		return c.levelers[a.Target].SetLevel(a.Level)
	case CommandToggle:
		l := c.levelers[a.Target]
		if l.Level() > 0 {
			return l.SetLevel(0)
		}
		level := a.Level
		if level == 0 {
			level = 100
		}
		return l.SetLevel(level)
	case CommandSpeed:
		return c.drivers[a.Target].SetSpeedAndDirection(a.Speed, a.dir)
	case CommandStop:
		return c.drivers[a.Target].SetSpeedAndDirection(0, actuator.Stopped)
	}
	return fmt.Errorf("unknown command %q", a.Command)
}

func (c *Controller) logEdge(name string, active bool) {
	entry := log.WithField("input", name)
	switch c.roles[name] {
	case RoleSensor:
		if active {
			entry.Info("train arriving")
		} else {
			entry.Info("train departing")
		}
	case RoleButton:
		if active {
			entry.Info("button pressed")
		} else {
			entry.Info("button released")
		}
	}
}
