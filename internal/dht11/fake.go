package dht11

import (
	"math"
	"time"
)

// Nominal high-pulse widths used when synthesizing frames.
const (
	ZeroWidth = 27
	OneWidth  = 70
)

// Pulse is one segment of a sensor response, Width in microseconds.
type Pulse struct {
	Level Level
	Width int
}

// Trace is a sensor response measured from the moment the host releases the
// line. Past its end the line idles High on the pull-up.
type Trace []Pulse

// LevelAt returns the level us microseconds after release.
func (t Trace) LevelAt(us int) Level {
	for _, p := range t {
		if us < p.Width {
			return p.Level
		}
		us -= p.Width
	}
	return High
}

// StuckLow returns t followed by a low level that never ends.
func (t Trace) StuckLow() Trace {
	out := append(Trace{}, t...)
	return append(out, Pulse{Level: Low, Width: math.MaxInt32})
}

// ResponseTrace builds an acknowledgment (80us low, 80us high) followed by
// one 50us low plus high pulse per width, and a trailing 50us low.
func ResponseTrace(highWidths ...int) Trace {
	t := Trace{{Level: Low, Width: 80}, {Level: High, Width: 80}}
	for _, w := range highWidths {
		t = append(t, Pulse{Level: Low, Width: 50}, Pulse{Level: High, Width: w})
	}
	return append(t, Pulse{Level: Low, Width: 50})
}

// FrameTrace encodes f as the sensor would send it.
func FrameTrace(f Frame) Trace {
	widths := make([]int, 0, frameBits)
	for i := 0; i < frameBits; i++ {
		if f[i/8]&(1<<(7-uint(i%8))) != 0 {
			widths = append(widths, OneWidth)
		} else {
			widths = append(widths, ZeroWidth)
		}
	}
	return ResponseTrace(widths...)
}

// FakeClock is a virtual clock: Delay advances Now and nothing blocks.
type FakeClock struct {
	now     time.Time
	Elapsed time.Duration
}

// NewFakeClock returns a clock starting at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time { return c.now }

func (c *FakeClock) Delay(d time.Duration) {
	c.now = c.now.Add(d)
	c.Elapsed += d
}

// FakeLine replays scripted sensor responses against a FakeClock.
// Not safe for concurrent use; the Sensor mutex serializes access.
type FakeLine struct {
	Clock *FakeClock

	// Responses holds the trace played after each start signal. Attempt n
	// plays Responses[n-1]; extra attempts replay the last one. With no
	// responses the sensor never answers.
	Responses []Trace

	// OutError and InError, if set, are returned by Out and In.
	OutError error
	InError  error

	// Starts counts start conditions (Out(Low) calls).
	Starts int

	// Output and Driven describe the current direction and driven level.
	Output bool
	Driven Level

	releasedAt time.Time
	trace      Trace
}

// NewFakeLine creates a FakeLine bound to clock.
func NewFakeLine(clock *FakeClock, responses ...Trace) *FakeLine {
	return &FakeLine{Clock: clock, Responses: responses}
}

func (f *FakeLine) Out(l Level) error {
	if f.OutError != nil {
		return f.OutError
	}
	if l == Low {
		f.Starts++
	}
	f.Output = true
	f.Driven = l
	return nil
}

func (f *FakeLine) In() error {
	if f.InError != nil {
		return f.InError
	}
	f.Output = false
	f.releasedAt = f.Clock.Now()
	f.trace = nil
	if n := len(f.Responses); n > 0 {
		i := f.Starts - 1
		if i < 0 || i >= n {
			i = n - 1
		}
		f.trace = f.Responses[i]
	}
	return nil
}

func (f *FakeLine) Read() Level {
	if f.Output {
		return f.Driven
	}
	us := int(f.Clock.Now().Sub(f.releasedAt) / time.Microsecond)
	return f.trace.LevelAt(us)
}

// Idle reports whether the line is an output driven high.
func (f *FakeLine) Idle() bool {
	return f.Output && f.Driven == High
}
