package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/sweeney/dht-node/internal/dht11"
)

// PeriphLine adapts a periph.io pin to the DHT11 data line. It is the
// alternative to RealLine on boards where periph drives the registers
// directly (faster reads than the character device).
type PeriphLine struct {
	pin pgpio.PinIO
}

// NewPeriphLine wraps an already-opened pin.
func NewPeriphLine(pin pgpio.PinIO) *PeriphLine {
	return &PeriphLine{pin: pin}
}

// OpenPeriphLine initializes the periph host drivers and opens the pin by
// name (e.g. "GPIO4").
func OpenPeriphLine(name string) (*PeriphLine, error) {
	pin, err := openPeriphPin(name)
	if err != nil {
		return nil, err
	}
	return NewPeriphLine(pin), nil
}

func (l *PeriphLine) Out(v dht11.Level) error {
	return l.pin.Out(pgpio.Level(v))
}

func (l *PeriphLine) In() error {
	return l.pin.In(pgpio.PullUp, pgpio.NoEdge)
}

func (l *PeriphLine) Read() dht11.Level {
	return dht11.Level(l.pin.Read())
}

// String returns the pin name.
func (l *PeriphLine) String() string {
	return l.pin.Name()
}

// Close leaves the pin as an input with pull-up.
func (l *PeriphLine) Close() error {
	if err := l.pin.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return fmt.Errorf("release %s: %w", l.pin.Name(), err)
	}
	return nil
}

// PeriphOutput drives an output pin through periph.io.
type PeriphOutput struct {
	pin pgpio.PinIO
}

// NewPeriphOutput wraps an already-opened pin.
func NewPeriphOutput(pin pgpio.PinIO) *PeriphOutput {
	return &PeriphOutput{pin: pin}
}

// OpenPeriphOutput opens the pin by name and drives it low.
func OpenPeriphOutput(name string) (*PeriphOutput, error) {
	pin, err := openPeriphPin(name)
	if err != nil {
		return nil, err
	}
	o := NewPeriphOutput(pin)
	if err := o.Set(false); err != nil {
		return nil, fmt.Errorf("clear %s: %w", name, err)
	}
	return o, nil
}

func (o *PeriphOutput) Set(on bool) error {
	return o.pin.Out(pgpio.Level(on))
}

// Close switches the output off and returns it to input with pull-down.
func (o *PeriphOutput) Close() error {
	var errs []error
	if err := o.pin.Out(pgpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("clear %s: %w", o.pin.Name(), err))
	}
	if err := o.pin.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
		errs = append(errs, fmt.Errorf("release %s: %w", o.pin.Name(), err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func openPeriphPin(name string) (pgpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	return pin, nil
}
