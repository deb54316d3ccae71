// Package gpio provides the digital I/O hardware abstraction for the diorama.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Pin is a pulled-up digital input read on demand.
type Pin interface {
	// Read returns the raw level of the line: true = high, false = low.
	// With the pull-up configured a closed switch or a broken IR beam reads low.
	Read() (bool, error)
}

// Edge selects which level transitions raise a pin-change interrupt.
type Edge int

const (
	EdgeRising Edge = 1 << iota
	EdgeFalling

	EdgeBoth = EdgeRising | EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	}
	return "none"
}

// InterruptPin is an input that can also raise a pin-change interrupt.
type InterruptPin interface {
	Pin

	// Arm enables the change interrupt for the given edges. The handler runs
	// outside the caller's goroutine, once per detected edge, until Disarm.
	Arm(edges Edge, handler func()) error

	// Disarm disables the change interrupt. Edges arriving after Disarm
	// returns are not delivered.
	Disarm() error
}

// Output drives a single digital line.
type Output interface {
	Set(high bool) error
}

// Default gpiochip for the Raspberry Pi header.
const DefaultChip = "gpiochip0"
