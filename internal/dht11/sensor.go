package dht11

import (
	"log/slog"
	"sync"
	"time"
)

// Sensor owns one data line and decodes frames from it. The mutex is held
// for the whole of Init, Read and ReadFrame: two reads never interleave on
// the same line. Sensors on distinct lines share nothing.
type Sensor struct {
	mu    sync.Mutex
	line  Line
	clock Clock
	name  string
	log   *slog.Logger
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithClock replaces the system clock, e.g. with a FakeClock in tests.
func WithClock(c Clock) Option {
	return func(s *Sensor) { s.clock = c }
}

// WithLogger sets the logger used for per-attempt diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sensor) { s.log = l }
}

// WithName labels the line in logs and errors (e.g. "GPIO4").
func WithName(name string) Option {
	return func(s *Sensor) { s.name = name }
}

// New returns a Sensor that exclusively owns line.
func New(line Line, opts ...Option) *Sensor {
	s := &Sensor{
		line:  line,
		clock: SystemClock{},
		name:  "dht11",
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the line label.
func (s *Sensor) Name() string {
	return s.name
}

// Init configures the line and idles it high.
func (s *Sensor) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.line.Out(High); err != nil {
		return &InitError{Pin: s.name, Err: err}
	}
	s.log.Info("dht11 initialized", "pin", s.name)
	return nil
}

// Read performs one blocking read: handshake with up to maxAttempts tries,
// 40 data bits, then checksum and range validation. It takes roughly
// 20-120ms per attempt plus the settle pauses and must not be called more
// often than MinReadInterval.
func (s *Sensor) Read(maxAttempts int) (Reading, error) {
	f, err := s.ReadFrame(maxAttempts)
	if err != nil {
		return Reading{}, err
	}
	r, err := Validate(f)
	if err != nil {
		s.log.Debug("dht11 frame rejected", "pin", s.name, "frame", f.String(), "error", err)
		return Reading{}, err
	}
	return r, nil
}

// ReadFrame returns the raw frame without validating it. Handshake timeouts
// are retried up to maxAttempts times; a timeout inside the frame is
// returned straight away. The line is left output/high on every path.
func (s *Sensor) ReadFrame(maxAttempts int) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.line.Out(High); err != nil {
		return Frame{}, &LineError{Op: "drive idle", Err: err}
	}
	s.clock.Delay(stabilizeUnits * time.Microsecond)

	last := PhaseAckLow
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// A collection between the start condition and the last bit
		// stretches pulses past the threshold.
		resume := pauseGC()
		phase, err := s.handshake()
		if err != nil {
			resume()
			s.restore()
			return Frame{}, err
		}
		if phase == 0 {
			f, err := s.readBits(attempt)
			resume()
			s.restore()
			if err != nil {
				return Frame{}, err
			}
			s.log.Debug("dht11 frame", "pin", s.name, "frame", f.String(), "attempt", attempt)
			return f, nil
		}

		resume()
		s.log.Debug("dht11 handshake timeout", "pin", s.name, "attempt", attempt, "phase", phase.String())
		last = phase
		s.restore()
		s.clock.Delay(stabilizeUnits * time.Microsecond)
	}

	return Frame{}, &TimeoutError{Phase: last, Bit: -1, Attempts: max(maxAttempts, 0)}
}

// handshake sends the start condition and waits for the three-phase
// acknowledgment. It returns the phase that timed out, or 0 once the first
// data bit has started. The line stays an input on success.
func (s *Sensor) handshake() (Phase, error) {
	if err := s.line.Out(Low); err != nil {
		return 0, &LineError{Op: "drive start", Err: err}
	}
	s.clock.Delay(startLowUnits * time.Microsecond)

	if err := s.line.Out(High); err != nil {
		return 0, &LineError{Op: "release start", Err: err}
	}
	s.clock.Delay(releaseUnits * time.Microsecond)

	if err := s.line.In(); err != nil {
		return 0, &LineError{Op: "switch to input", Err: err}
	}

	if !s.waitFor(Low, ackTimeout) {
		return PhaseAckLow, nil
	}
	if !s.waitFor(High, ackTimeout) {
		return PhaseAckHigh, nil
	}
	if !s.waitFor(Low, ackTimeout) {
		return PhaseDataStart, nil
	}
	return 0, nil
}

// readBits decodes 40 bits, most significant bit first in each byte.
func (s *Sensor) readBits(attempt int) (Frame, error) {
	var f Frame
	for i := 0; i < frameBits; i++ {
		if !s.waitFor(High, bitStartTimeout) {
			return Frame{}, &TimeoutError{Phase: PhaseBitHigh, Bit: i, Attempts: attempt}
		}
		if bitValue(s.measureHigh()) {
			f[i/8] |= 1 << (7 - uint(i%8))
		}
		// No trailing low is guaranteed after the final bit.
		if !s.waitFor(Low, bitEndTimeout) && i < frameBits-1 {
			return Frame{}, &TimeoutError{Phase: PhaseBitLow, Bit: i, Attempts: attempt}
		}
	}
	return f, nil
}

// waitFor polls until the line reads l, giving up after timeout units.
func (s *Sensor) waitFor(l Level, timeout int) bool {
	start := s.clock.Now()
	for s.line.Read() != l {
		if s.units(start) >= timeout {
			return false
		}
		s.clock.Delay(time.Microsecond)
	}
	return true
}

// measureHigh returns how long the line stays high, capped at maxHighUnits.
func (s *Sensor) measureHigh() int {
	start := s.clock.Now()
	for s.line.Read() == High {
		if s.units(start) >= maxHighUnits {
			return maxHighUnits
		}
		s.clock.Delay(time.Microsecond)
	}
	return min(s.units(start), maxHighUnits)
}

func (s *Sensor) units(start time.Time) int {
	return int(s.clock.Now().Sub(start) / time.Microsecond)
}

func (s *Sensor) restore() {
	if err := s.line.Out(High); err != nil {
		s.log.Warn("dht11 restore line failed", "pin", s.name, "error", err)
	}
}

func bitValue(high int) bool {
	return high > bitThreshold
}
