package dht11

import "fmt"

// Frame is the raw 40-bit sensor frame:
// [humidity_int, humidity_frac, temp_int, temp_frac, checksum].
type Frame [5]byte

// Sum returns the modular sum of the four payload bytes.
func (f Frame) Sum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the checksum byte matches the payload.
func (f Frame) Valid() bool {
	return f.Sum() == f[4]
}

func (f Frame) String() string {
	return fmt.Sprintf("%02X %02X %02X %02X [%02X]", f[0], f[1], f[2], f[3], f[4])
}

// NewFrame builds a frame with a correct checksum for the given payload.
func NewFrame(humInt, humFrac, tempInt, tempFrac byte) Frame {
	f := Frame{humInt, humFrac, tempInt, tempFrac}
	f[4] = f.Sum()
	return f
}

// Validate checks the checksum and the plausible range and converts the
// frame into a Reading.
func Validate(f Frame) (Reading, error) {
	if !f.Valid() {
		return Reading{}, &ChecksumError{Frame: f}
	}

	r := Reading{
		Humidity:    float64(f[0]) + float64(f[1])/10.0,
		Temperature: float64(f[2]) + float64(f[3])/10.0,
	}
	if r.Humidity > MaxHumidity || r.Temperature > MaxTemperature {
		return Reading{}, &RangeError{Reading: r}
	}
	return r, nil
}
