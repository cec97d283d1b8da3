//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/dht-node/internal/dht11"
)

const consumer = "dht-node"

// RealLine is the DHT11 data line on the GPIO character device. It is
// requested open-drain with the internal pull-up, so driving High releases
// the line.
type RealLine struct {
	line   *gpiocdev.Line
	name   string
	output bool
}

// NewRealLine requests offset on chip as an open-drain output idling high.
func NewRealLine(chip string, offset int) (*RealLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(1),
		gpiocdev.AsOpenDrain,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("request DHT pin %d: %w", offset, err)
	}
	return &RealLine{
		line:   line,
		name:   fmt.Sprintf("%s:%d", chip, offset),
		output: true,
	}, nil
}

// Out drives the line, switching it back to open-drain output if needed.
func (r *RealLine) Out(l dht11.Level) error {
	v := levelValue(l)
	if !r.output {
		if err := r.line.Reconfigure(gpiocdev.AsOutput(v), gpiocdev.AsOpenDrain); err != nil {
			return fmt.Errorf("reconfigure %s as output: %w", r.name, err)
		}
		r.output = true
		return nil
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", r.name, err)
	}
	return nil
}

// In switches the line to input with the pull-up enabled.
func (r *RealLine) In() error {
	if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		return fmt.Errorf("reconfigure %s as input: %w", r.name, err)
	}
	r.output = false
	return nil
}

// Read samples the line. A failed read reports Low, which surfaces as a
// timeout in whichever phase is waiting.
func (r *RealLine) Read() dht11.Level {
	v, err := r.line.Value()
	if err != nil || v == 0 {
		return dht11.Low
	}
	return dht11.High
}

// String returns the chip:offset label.
func (r *RealLine) String() string {
	return r.name
}

// Close leaves the line as an input with pull-up, the sensor's idle state.
func (r *RealLine) Close() error {
	var errs []error
	if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure DHT pin: %w", err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close DHT pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutput drives a push-pull output such as the status LED.
type RealOutput struct {
	line *gpiocdev.Line
}

// NewRealOutput requests offset on chip as an output, initially inactive.
func NewRealOutput(chip string, offset int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("request LED pin %d: %w", offset, err)
	}
	return &RealOutput{line: line}, nil
}

// Set drives the line.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return o.line.SetValue(v)
}

// Close switches the LED off and returns the pin to input with pull-down
// (matching Pi boot defaults) before releasing it.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear LED pin: %w", err))
	}
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure LED pin: %w", err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close LED pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func levelValue(l dht11.Level) int {
	if l == dht11.High {
		return 1
	}
	return 0
}
