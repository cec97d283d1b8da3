// Package logic contains pure business logic for sensor health tracking.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/dht-node/internal/dht11"
)

// EventType represents a monitor event.
type EventType string

const (
	EventReading         EventType = "READING"
	EventReadFailed      EventType = "READ_FAILED"
	EventSensorLost      EventType = "SENSOR_LOST"
	EventSensorRecovered EventType = "SENSOR_RECOVERED"
)

// Sample is the outcome of one sensor read.
type Sample struct {
	Time    time.Time
	Reading dht11.Reading
	Err     error
}

// Event represents something to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// Reading is set for READING and SENSOR_RECOVERED.
	Reading dht11.Reading
	// Kind and Error describe the failure for READ_FAILED and SENSOR_LOST.
	Kind  dht11.Kind
	Error string
	// Failures is the consecutive failure count at the time of the event.
	Failures int
}

// Counts tracks read outcomes since startup.
type Counts struct {
	Readings int
	Failures int
	Timeout  int
	Checksum int
	Range    int
	Line     int
	Other    int
	Lost     int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
	// LastReading is nil until the first good read.
	LastReading *dht11.Reading
	LastReadAt  time.Time
}
