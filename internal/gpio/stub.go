//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/dht-node/internal/dht11"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealLine is not available on non-Linux platforms.
type RealLine struct{}

// NewRealLine returns an error on non-Linux platforms.
func NewRealLine(chip string, offset int) (*RealLine, error) {
	return nil, errUnsupported
}

func (r *RealLine) Out(dht11.Level) error { return errUnsupported }
func (r *RealLine) In() error             { return errUnsupported }
func (r *RealLine) Read() dht11.Level     { return dht11.Low }
func (r *RealLine) String() string        { return "unsupported" }
func (r *RealLine) Close() error          { return nil }

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chip string, offset int) (*RealOutput, error) {
	return nil, errUnsupported
}

func (o *RealOutput) Set(bool) error { return errUnsupported }
func (o *RealOutput) Close() error   { return nil }
