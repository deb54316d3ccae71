package gpio

import (
	"errors"
	"sync"
)

// FakePin is a test double that returns scripted raw levels.
type FakePin struct {
	mu sync.Mutex

	// Samples contains scripted levels. Each call to Read consumes the next
	// one; once exhausted the last sample is returned until Push adds more.
	Samples []bool

	index int

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Reads counts calls to Read.
	Reads int
}

// NewFakePin creates a FakePin with the given samples.
func NewFakePin(samples ...bool) *FakePin {
	return &FakePin{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakePin) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	i := f.index
	if i >= len(f.Samples) {
		i = len(f.Samples) - 1
	} else {
		f.index++
	}
	return f.Samples[i], nil
}

// Push appends samples to the script.
func (f *FakePin) Push(samples ...bool) {
	f.mu.Lock()
	f.Samples = append(f.Samples, samples...)
	f.mu.Unlock()
}

// Reset rewinds the script.
func (f *FakePin) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Reads = 0
	f.mu.Unlock()
}

// FakeInterruptPin is a FakePin whose interrupt is raised manually with Trigger.
type FakeInterruptPin struct {
	FakePin

	imu     sync.Mutex
	handler func()
	edges   Edge
	armed   bool

	// Arms and Disarms count calls to Arm and Disarm.
	Arms    int
	Disarms int

	// ArmError, if set, will be returned by Arm.
	ArmError error
}

// NewFakeInterruptPin creates a FakeInterruptPin with the given samples.
func NewFakeInterruptPin(samples ...bool) *FakeInterruptPin {
	return &FakeInterruptPin{FakePin: FakePin{Samples: samples}}
}

// Arm records the handler and marks the interrupt enabled.
func (f *FakeInterruptPin) Arm(edges Edge, handler func()) error {
	f.imu.Lock()
	defer f.imu.Unlock()
	if f.ArmError != nil {
		return f.ArmError
	}
	f.Arms++
	f.edges = edges
	f.handler = handler
	f.armed = true
	return nil
}

// Disarm marks the interrupt disabled.
func (f *FakeInterruptPin) Disarm() error {
	f.imu.Lock()
	f.Disarms++
	f.armed = false
	f.imu.Unlock()
	return nil
}

// Armed reports whether the interrupt is currently enabled.
func (f *FakeInterruptPin) Armed() bool {
	f.imu.Lock()
	defer f.imu.Unlock()
	return f.armed
}

// Edges returns the edge mask passed to the last Arm call.
func (f *FakeInterruptPin) Edges() Edge {
	f.imu.Lock()
	defer f.imu.Unlock()
	return f.edges
}

// Trigger invokes the handler as a hardware edge would. It reports whether
// the interrupt was armed; a disarmed pin swallows the edge.
func (f *FakeInterruptPin) Trigger() bool {
	f.imu.Lock()
	h, armed := f.handler, f.armed
	f.imu.Unlock()
	if !armed || h == nil {
		return false
	}
	h()
	return true
}

// FakeOutput records every level written to it.
type FakeOutput struct {
	mu sync.Mutex

	// Values contains every level passed to Set, in order.
	Values []bool

	// SetError, if set, will be returned by Set.
	SetError error
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, high)
	return nil
}

// Level returns the last written level, false if never written.
func (f *FakeOutput) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Values) == 0 {
		return false
	}
	return f.Values[len(f.Values)-1]
}
