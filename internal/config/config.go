// Package config loads and validates the diorama configuration file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/train-diorama/internal/debounce"
	"github.com/sweeney/train-diorama/internal/gpio"
	"github.com/sweeney/train-diorama/internal/loop"
	"github.com/sweeney/train-diorama/internal/scene"
)

// Output kinds.
const (
	KindLED   = "led"
	KindRelay = "relay"
	KindTrain = "train"
)

const (
	DefaultBroker      = "tcp://127.0.0.1:1883"
	DefaultClientID    = "train-diorama"
	DefaultHTTPAddr    = ":8080"
	DefaultHeartbeatMs = 15 * 60 * 1000
)

type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Chip        string
	Broker      string
	ClientID    string
	HTTPAddr    string

	Input  []Input
	Output []Output
	Action []scene.Action
}

// Input is one debounced input line.
type Input struct {
	Name     string
	Pin      int
	Kind     scene.Role
	Strategy debounce.Strategy

	// Interrupt strategy only. Pointers so that an explicit zero is rejected
	// rather than replaced by the default.
	RequiredChecks *int
	CheckPeriodMs  *int64
}

// Output is an LED, relay or train.
type Output struct {
	Name   string
	Kind   string
	Pin    int
	Invert bool

	// Train only.
	EnablePin int
	In1Pin    int
	In2Pin    int
}

// Load decodes the TOML file at path, applies defaults and validates it.
func Load(path string) (Config, error) {
	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return finish(c, md)
}

// Parse decodes TOML from a string, applies defaults and validates it.
func Parse(data string) (Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return finish(c, md)
}

func finish(c Config, md toml.MetaData) (Config, error) {
	for _, k := range md.Undecoded() {
		log.WithField("key", k.String()).Warn("unknown config key ignored")
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyDefaults fills unset fields. Interrupt parameters left unset get the
// debounce package defaults.
func (c *Config) ApplyDefaults() {
	if c.TickMs == 0 {
		c.TickMs = loop.DefaultTick.Milliseconds()
	}
	if c.HeartbeatMs == 0 {
		c.HeartbeatMs = DefaultHeartbeatMs
	}
	if c.Chip == "" {
		c.Chip = gpio.DefaultChip
	}
	if c.Broker == "" {
		c.Broker = DefaultBroker
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	for i := range c.Input {
		in := &c.Input[i]
		if in.Strategy == "" {
			in.Strategy = debounce.StrategyPolling
		}
		if in.Kind == "" {
			in.Kind = scene.RoleButton
		}
		if in.Strategy != debounce.StrategyInterrupt {
			continue
		}
		if in.RequiredChecks == nil {
			n := debounce.DefaultRequiredChecks
			in.RequiredChecks = &n
		}
		if in.CheckPeriodMs == nil {
			ms := debounce.DefaultCheckPeriod.Milliseconds()
			in.CheckPeriodMs = &ms
		}
	}
}

// Validate returns every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	bad := func(input, field, format string, args ...any) {
		errs = append(errs, &debounce.ConfigError{Input: input, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if c.TickMs <= 0 {
		bad("", "TickMs", "must be positive, got %d", c.TickMs)
	}
	if len(c.Input) == 0 {
		bad("", "Input", "no inputs configured")
	}

	names := make(map[string]bool)
	pins := make(map[int]string)
	usePin := func(owner string, pin int, field string) {
		if pin < 0 {
			bad(owner, field, "must not be negative, got %d", pin)
			return
		}
		if prev, ok := pins[pin]; ok {
			bad(owner, field, "pin %d already used by %q", pin, prev)
			return
		}
		pins[pin] = owner
	}
	useName := func(name string) {
		if name == "" {
			bad("", "Name", "must not be empty")
			return
		}
		if names[name] {
			bad(name, "Name", "duplicate name")
		}
		names[name] = true
	}

	inputs := make(map[string]bool)
	for _, in := range c.Input {
		useName(in.Name)
		inputs[in.Name] = true
		usePin(in.Name, in.Pin, "Pin")

		switch in.Kind {
		case scene.RoleButton, scene.RoleSensor:
		default:
			bad(in.Name, "Kind", "unknown kind %q", in.Kind)
		}

		switch in.Strategy {
		case debounce.StrategyPolling:
		case debounce.StrategyInterrupt:
			if err := in.InterruptConfig().Validate(in.Name); err != nil {
				errs = append(errs, err)
			}
		default:
			bad(in.Name, "Strategy", "unknown strategy %q", in.Strategy)
		}
	}

	for _, o := range c.Output {
		useName(o.Name)
		switch o.Kind {
		case KindLED, KindRelay:
			usePin(o.Name, o.Pin, "Pin")
		case KindTrain:
			usePin(o.Name, o.EnablePin, "EnablePin")
			usePin(o.Name, o.In1Pin, "In1Pin")
			usePin(o.Name, o.In2Pin, "In2Pin")
		default:
			bad(o.Name, "Kind", "unknown kind %q", o.Kind)
		}
	}

	for i, a := range c.Action {
		if !inputs[a.Input] {
			bad(a.Input, fmt.Sprintf("Action #%d", i), "unknown input %q", a.Input)
		}
	}

	return errors.Join(errs...)
}

// InterruptConfig returns the debounce parameters of an interrupt input.
func (in Input) InterruptConfig() debounce.InterruptConfig {
	var ic debounce.InterruptConfig
	if in.RequiredChecks != nil {
		ic.RequiredChecks = *in.RequiredChecks
	}
	if in.CheckPeriodMs != nil {
		ic.CheckPeriod = time.Duration(*in.CheckPeriodMs) * time.Millisecond
	}
	ic.Edges = gpio.EdgeBoth
	return ic
}

// Tick returns the loop period.
func (c Config) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval; negative disables it.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}
