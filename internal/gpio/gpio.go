// Package gpio adapts Linux GPIO lines to the sensor's data line and the
// status LED. The real implementations use the GPIO character device
// (go-gpiocdev) or periph.io; the fakes allow testing without hardware.
package gpio

// Output drives a single output line, such as the status LED.
type Output interface {
	// Set drives the line active (true) or inactive (false).
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip   = "gpiochip0"
	DefaultPinDHT = 4  // DHT11 data
	DefaultPinLED = 17 // status LED
)

// Discard is an Output that drives nothing, used when the LED is disabled.
var Discard Output = discard{}

type discard struct{}

func (discard) Set(bool) error { return nil }
func (discard) Close() error   { return nil }
