package display

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// panel couples the ssd1306 device with the bus it owns.
type panel struct {
	*ssd1306.Dev
	bus i2c.BusCloser
}

// Halt blanks the panel and releases the bus.
func (p *panel) Halt() error {
	err := p.Dev.Halt()
	if cerr := p.bus.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenSSD1306 opens an SSD1306 panel of w x h pixels on the named I2C bus
// ("" selects the first available bus).
func OpenSSD1306(bus string, w, h int) (Sink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", bus, err)
	}
	opts := ssd1306.DefaultOpts
	opts.W = w
	opts.H = h
	dev, err := ssd1306.NewI2C(b, &opts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("ssd1306 init: %w", err)
	}
	return &panel{Dev: dev, bus: b}, nil
}
