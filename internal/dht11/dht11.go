// Package dht11 decodes the DHT11 single-wire protocol by driving and
// sampling one GPIO line.
//
// The decoder never touches hardware directly. It talks to a Line (set
// direction, set level, get level) and measures time through a Clock, so the
// whole protocol can be replayed against FakeLine and FakeClock in tests.
package dht11

import (
	"fmt"
	"time"
)

// Level is the logical level of the data line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "High"
	}
	return "Low"
}

// Line is the single data line shared with the sensor. The line is
// open-drain: driving High releases it to the external pull-up.
type Line interface {
	// Out switches the line to output and drives l.
	Out(l Level) error

	// In releases the line and switches it to input.
	In() error

	// Read samples the current level. Implementations that cannot read
	// report Low.
	Read() Level
}

// Clock supplies the decoder's notion of time. One polling unit is one
// microsecond as measured by Now.
type Clock interface {
	Now() time.Time
	Delay(d time.Duration)
}

// Protocol timing, in polling units (microseconds).
const (
	stabilizeUnits = 200000 // settle time before every handshake attempt
	startLowUnits  = 18000  // host start condition
	releaseUnits   = 40     // host holds high before switching to input

	ackTimeout      = 100 // each of the three handshake phases
	bitStartTimeout = 70  // wait for a bit's high pulse
	bitEndTimeout   = 70  // wait for the inter-bit low
	maxHighUnits    = 100 // cap on a measured high pulse

	// bitThreshold is empirical, not the datasheet midpoint of the
	// 26-28us / 70us pulse widths. Keep it unless real traces say otherwise.
	bitThreshold = 35

	frameBits = 40
)

// Plausible sensor range. Values above these are reported as RangeError.
const (
	MaxHumidity    = 100.0
	MaxTemperature = 50.0
)

// MinReadInterval is the sensor's sampling-rate limit. Callers must space
// reads at least this far apart; the decoder does not enforce it.
const MinReadInterval = 2 * time.Second

// Reading is a validated sensor sample.
type Reading struct {
	Temperature float64 // degrees Celsius, one decimal place
	Humidity    float64 // %RH, one decimal place
}

func (r Reading) String() string {
	return fmt.Sprintf("%.1f°C %.1f%%RH", r.Temperature, r.Humidity)
}
