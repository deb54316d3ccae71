//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Chip hands out lines from a Linux GPIO character device.
type Chip struct {
	chip  *gpiocdev.Chip
	mu    sync.Mutex
	lines []*gpiocdev.Line
}

// OpenChip opens the named gpiochip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: chip}, nil
}

func (c *Chip) track(l *gpiocdev.Line) {
	c.mu.Lock()
	c.lines = append(c.lines, l)
	c.mu.Unlock()
}

// Input requests a line as an input with pull-up.
func (c *Chip) Input(offset int) (*InputLine, error) {
	l, err := c.chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", offset, err)
	}
	c.track(l)
	return &InputLine{line: l}, nil
}

// InterruptInput requests a line as an input with pull-up whose edge
// detection is switched on and off with Arm and Disarm.
func (c *Chip) InterruptInput(offset int) (*InterruptLine, error) {
	il := &InterruptLine{}
	l, err := c.chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithoutEdges,
		gpiocdev.WithEventHandler(il.onEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("request interrupt pin %d: %w", offset, err)
	}
	c.track(l)
	il.line = l
	return il, nil
}

// Output requests a line as an output driven low.
func (c *Chip) Output(offset int) (*OutputLine, error) {
	l, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	c.track(l)
	return &OutputLine{line: l}, nil
}

// Close releases all requested lines and the chip.
// Lines are reconfigured to input with pull-up before closing so relays and
// motor drivers are released when the process exits.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, l := range c.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithoutEdges); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", l.Offset(), err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", l.Offset(), err))
		}
	}
	c.lines = nil
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// InputLine is a pulled-up input.
type InputLine struct {
	line *gpiocdev.Line
}

// Read returns the raw level.
func (p *InputLine) Read() (bool, error) {
	v, err := p.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", p.line.Offset(), err)
	}
	return v != 0, nil
}

// InterruptLine is a pulled-up input with switchable edge detection.
type InterruptLine struct {
	line *gpiocdev.Line

	mu      sync.Mutex
	handler func()
	armed   bool
}

// Read returns the raw level.
func (p *InterruptLine) Read() (bool, error) {
	v, err := p.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", p.line.Offset(), err)
	}
	return v != 0, nil
}

// Arm enables edge detection and routes edges to handler.
func (p *InterruptLine) Arm(edges Edge, handler func()) error {
	p.mu.Lock()
	p.handler = handler
	p.armed = true
	p.mu.Unlock()

	if err := p.line.Reconfigure(edgeOption(edges)); err != nil {
		p.mu.Lock()
		p.armed = false
		p.mu.Unlock()
		return fmt.Errorf("arm pin %d: %w", p.line.Offset(), err)
	}
	return nil
}

// Disarm disables edge detection. Events already queued by the kernel are
// dropped by the armed flag.
func (p *InterruptLine) Disarm() error {
	p.mu.Lock()
	p.armed = false
	p.mu.Unlock()

	if err := p.line.Reconfigure(gpiocdev.WithoutEdges); err != nil {
		return fmt.Errorf("disarm pin %d: %w", p.line.Offset(), err)
	}
	return nil
}

func (p *InterruptLine) onEvent(gpiocdev.LineEvent) {
	p.mu.Lock()
	h, armed := p.handler, p.armed
	p.mu.Unlock()
	if armed && h != nil {
		h()
	}
}

func edgeOption(e Edge) gpiocdev.LineConfigOption {
	switch e {
	case EdgeRising:
		return gpiocdev.WithRisingEdge
	case EdgeFalling:
		return gpiocdev.WithFallingEdge
	case EdgeBoth:
		return gpiocdev.WithBothEdges
	}
	return gpiocdev.WithoutEdges
}

// OutputLine drives a relay, LED or motor driver input.
type OutputLine struct {
	line *gpiocdev.Line
}

// Set drives the line high or low.
func (o *OutputLine) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.line.Offset(), err)
	}
	return nil
}
