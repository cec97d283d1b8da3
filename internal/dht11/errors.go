package dht11

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout          = errors.New("dht11: timeout")
	ErrChecksumMismatch = errors.New("dht11: checksum mismatch")
	ErrOutOfRange       = errors.New("dht11: reading out of range")
	ErrLine             = errors.New("dht11: line fault")
)

// Phase identifies the wait that timed out.
type Phase int

const (
	PhaseAckLow    Phase = iota + 1 // sensor acknowledgment begin
	PhaseAckHigh                    // acknowledgment high
	PhaseDataStart                  // start of first data bit
	PhaseBitHigh                    // rising edge of a data bit
	PhaseBitLow                     // inter-bit low
)

func (p Phase) String() string {
	switch p {
	case PhaseAckLow:
		return "ack-low"
	case PhaseAckHigh:
		return "ack-high"
	case PhaseDataStart:
		return "data-start"
	case PhaseBitHigh:
		return "bit-high"
	case PhaseBitLow:
		return "bit-low"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Handshake reports whether the phase belongs to the start handshake.
func (p Phase) Handshake() bool {
	return p >= PhaseAckLow && p <= PhaseDataStart
}

// InitError is returned when the line cannot be configured.
type InitError struct {
	Pin string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("dht11: init line %s: %v", e.Pin, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// TimeoutError is returned when the sensor does not answer within a bounded
// wait. Handshake timeouts carry the number of attempts made; data timeouts
// carry the bit index (0-39) and are never retried.
type TimeoutError struct {
	Phase    Phase
	Bit      int // -1 during the handshake
	Attempts int
}

func (e *TimeoutError) Error() string {
	if e.Phase.Handshake() {
		return fmt.Sprintf("dht11: timeout in %s after %d attempts", e.Phase, e.Attempts)
	}
	return fmt.Sprintf("dht11: timeout in %s at bit %d", e.Phase, e.Bit)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ChecksumError is returned when the frame's checksum byte does not match.
type ChecksumError struct {
	Frame Frame
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("dht11: checksum mismatch: calc=0x%02X recv=0x%02X", e.Frame.Sum(), e.Frame[4])
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksumMismatch }

// RangeError is returned for a correctly checksummed but implausible frame.
type RangeError struct {
	Reading Reading
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("dht11: invalid reading: temp=%.1f hum=%.1f", e.Reading.Temperature, e.Reading.Humidity)
}

func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

// LineError is returned when the line itself fails mid-read.
type LineError struct {
	Op  string
	Err error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("dht11: %s: %v", e.Op, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func (e *LineError) Is(target error) bool { return target == ErrLine }

// Kind classifies a read outcome for counters and payloads.
type Kind string

const (
	KindOK       Kind = "OK"
	KindInit     Kind = "INIT"
	KindTimeout  Kind = "TIMEOUT"
	KindChecksum Kind = "CHECKSUM"
	KindRange    Kind = "RANGE"
	KindLine     Kind = "LINE"
	KindUnknown  Kind = "UNKNOWN"
)

// KindOf classifies err. A nil error is KindOK.
func KindOf(err error) Kind {
	var initErr *InitError
	switch {
	case err == nil:
		return KindOK
	case errors.As(err, &initErr):
		return KindInit
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrChecksumMismatch):
		return KindChecksum
	case errors.Is(err, ErrOutOfRange):
		return KindRange
	case errors.Is(err, ErrLine):
		return KindLine
	}
	return KindUnknown
}
