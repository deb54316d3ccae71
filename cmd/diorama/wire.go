package main

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/train-diorama/internal/actuator"
	"github.com/sweeney/train-diorama/internal/config"
	"github.com/sweeney/train-diorama/internal/debounce"
	"github.com/sweeney/train-diorama/internal/gpio"
	"github.com/sweeney/train-diorama/internal/loop"
	"github.com/sweeney/train-diorama/internal/scene"
	"github.com/sweeney/train-diorama/internal/status"
	"github.com/sweeney/train-diorama/internal/timer"
)

// hardware hands out GPIO lines by offset.
type hardware interface {
	Input(pin int) (gpio.Pin, error)
	InterruptInput(pin int) (gpio.InterruptPin, error)
	Output(pin int) (gpio.Output, error)
	Close() error
}

// chipHardware adapts a gpiocdev chip to hardware.
type chipHardware struct {
	chip *gpio.Chip
}

func openHardware(name string) (hardware, error) {
	chip, err := gpio.OpenChip(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return chipHardware{chip: chip}, nil
}

func (h chipHardware) Input(pin int) (gpio.Pin, error) { return h.chip.Input(pin) }
func (h chipHardware) InterruptInput(pin int) (gpio.InterruptPin, error) { return h.chip.InterruptInput(pin) }
func (h chipHardware) Output(pin int) (gpio.Output, error) { return h.chip.Output(pin) }
func (h chipHardware) Close() error { return h.chip.Close() }

// rig is the assembled controller: inputs registered on the loop, actions
// bound to actuators.
type rig struct {
	loop     *loop.Loop
	scene    *scene.Controller
	levelers map[string]actuator.Leveler
	drivers  map[string]actuator.Driver
	closers  []func() error

	// background tracks system events published off the loop goroutine.
	background sync.WaitGroup
}

// build opens every configured line and wires inputs to the scene through
// the loop. newTimer supplies the confirmation timer of each interrupt input.
func build(cfg config.Config, hw hardware, newTimer func() timer.OneShot) (*rig, error) {
	r := &rig{
		loop: loop.New(loop.Config{
			Tick:      cfg.Tick(),
			Heartbeat: cfg.Heartbeat(),
		}),
		levelers: make(map[string]actuator.Leveler),
		drivers:  make(map[string]actuator.Driver),
	}

	for _, o := range cfg.Output {
		if err := r.addOutput(o, hw); err != nil {
			r.close()
			return nil, err
		}
	}

	ctrl, err := scene.New(cfg.Action, r.levelers, r.drivers)
	if err != nil {
		r.close()
		return nil, err
	}
	r.scene = ctrl

	for _, in := range cfg.Input {
		d, err := r.newInput(in, hw, newTimer)
		if err != nil {
			r.close()
			return nil, err
		}
		ctrl.SetRole(in.Name, in.Kind)
		if err := r.loop.Register(d, ctrl.Handle); err != nil {
			r.close()
			return nil, err
		}
		log.WithFields(log.Fields{
			"input":    in.Name,
			"pin":      in.Pin,
			"kind":     in.Kind,
			"strategy": in.Strategy,
		}).Debug("input registered")
	}
	return r, nil
}

func (r *rig) addOutput(o config.Output, hw hardware) error {
	switch o.Kind {
	case config.KindLED, config.KindRelay:
		out, err := hw.Output(o.Pin)
		if err != nil {
			return fmt.Errorf("output %s: %w", o.Name, err)
		}
		r.levelers[o.Name] = actuator.NewSwitched(o.Name, out, o.Invert)
	case config.KindTrain:
		var lines [3]gpio.Output
		for i, pin := range []int{o.EnablePin, o.In1Pin, o.In2Pin} {
			out, err := hw.Output(pin)
			if err != nil {
				return fmt.Errorf("train %s: %w", o.Name, err)
			}
			lines[i] = out
		}
		r.drivers[o.Name] = actuator.NewHBridge(o.Name, lines[0], lines[1], lines[2])
	default:
		return fmt.Errorf("output %s: unknown kind %q", o.Name, o.Kind)
	}
	return nil
}

func (r *rig) newInput(in config.Input, hw hardware, newTimer func() timer.OneShot) (debounce.Input, error) {
	switch in.Strategy {
	case debounce.StrategyInterrupt:
		pin, err := hw.InterruptInput(in.Pin)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.Name, err)
		}
		d, err := debounce.NewInterrupt(in.Name, pin, newTimer(), in.InterruptConfig())
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, d.Close)
		return d, nil
	default:
		pin, err := hw.Input(in.Pin)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.Name, err)
		}
		return debounce.NewPolling(in.Name, pin)
	}
}

// safeState stops every train and switches every light and relay off.
func (r *rig) safeState() error {
	var errs []error
	for name, d := range r.drivers {
		if err := d.SetSpeedAndDirection(0, actuator.Stopped); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
	}
	for name, l := range r.levelers {
		if err := l.SetLevel(0); err != nil {
			errs = append(errs, fmt.Errorf("switch off %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// close stops interrupt debouncers. The lines themselves are released by
// hardware.Close.
func (r *rig) close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// statusConfig describes the wiring for the status page.
func statusConfig(cfg config.Config) status.Config {
	sc := status.Config{
		TickMs:      cfg.TickMs,
		HeartbeatMs: cfg.HeartbeatMs,
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	}
	for _, in := range cfg.Input {
		sc.Inputs = append(sc.Inputs, status.InputConfig{
			Name:     in.Name,
			Kind:     string(in.Kind),
			Pin:      in.Pin,
			Strategy: string(in.Strategy),
		})
	}
	return sc
}
