package dht11

import "time"

// SystemClock busy-waits for short delays so the polling loops do not yield
// the processor. Delays of a millisecond or more sleep; they only need to be
// at least as long as requested.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Delay(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}
