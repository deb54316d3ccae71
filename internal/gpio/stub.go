//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

func (c *Chip) Input(offset int) (*InputLine, error) { return nil, errUnsupported }
func (c *Chip) InterruptInput(offset int) (*InterruptLine, error) { return nil, errUnsupported }
func (c *Chip) Output(offset int) (*OutputLine, error) { return nil, errUnsupported }
func (c *Chip) Close() error { return nil }

type InputLine struct{}

func (p *InputLine) Read() (bool, error) { return false, errUnsupported }

type InterruptLine struct{}

func (p *InterruptLine) Read() (bool, error) { return false, errUnsupported }
func (p *InterruptLine) Arm(edges Edge, handler func()) error { return errUnsupported }
func (p *InterruptLine) Disarm() error { return errUnsupported }

type OutputLine struct{}

func (o *OutputLine) Set(high bool) error { return errUnsupported }
