package logic

import (
	"time"

	"github.com/sweeney/dht-node/internal/dht11"
)

// DefaultLostAfter is the number of consecutive failures that mark the
// sensor as lost.
const DefaultLostAfter = 5

// Monitor turns read samples into events and keeps the last good reading.
type Monitor struct {
	lostAfter     int
	startTime     time.Time
	lastHeartbeat time.Time

	counts      Counts
	consecutive int
	lost        bool

	ready      bool
	last       dht11.Reading
	lastReadAt time.Time
}

// NewMonitor creates a monitor that reports SENSOR_LOST after lostAfter
// consecutive failures. Values below 1 use DefaultLostAfter.
func NewMonitor(lostAfter int, startTime time.Time) *Monitor {
	if lostAfter < 1 {
		lostAfter = DefaultLostAfter
	}
	return &Monitor{
		lostAfter:     lostAfter,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a sample and returns the events it produces, in order.
func (m *Monitor) Process(s Sample) []Event {
	if s.Err == nil {
		return m.success(s)
	}
	return m.failure(s)
}

func (m *Monitor) success(s Sample) []Event {
	m.counts.Readings++
	m.ready = true
	m.last = s.Reading
	m.lastReadAt = s.Time

	var events []Event
	if m.lost {
		m.lost = false
		events = append(events, Event{
			Timestamp: s.Time,
			Type:      EventSensorRecovered,
			Reading:   s.Reading,
			Failures:  m.consecutive,
		})
	}
	m.consecutive = 0

	return append(events, Event{
		Timestamp: s.Time,
		Type:      EventReading,
		Reading:   s.Reading,
	})
}

func (m *Monitor) failure(s Sample) []Event {
	kind := dht11.KindOf(s.Err)
	m.counts.Failures++
	switch kind {
	case dht11.KindTimeout:
		m.counts.Timeout++
	case dht11.KindChecksum:
		m.counts.Checksum++
	case dht11.KindRange:
		m.counts.Range++
	case dht11.KindLine:
		m.counts.Line++
	default:
		m.counts.Other++
	}
	m.consecutive++

	events := []Event{{
		Timestamp: s.Time,
		Type:      EventReadFailed,
		Kind:      kind,
		Error:     s.Err.Error(),
		Failures:  m.consecutive,
	}}

	if !m.lost && m.consecutive >= m.lostAfter {
		m.lost = true
		m.counts.Lost++
		events = append(events, Event{
			Timestamp: s.Time,
			Type:      EventSensorLost,
			Kind:      kind,
			Error:     s.Err.Error(),
			Failures:  m.consecutive,
		})
	}
	return events
}

// Ready reports whether at least one good reading has been seen.
func (m *Monitor) Ready() bool {
	return m.ready
}

// Lost reports whether the sensor is currently considered lost.
func (m *Monitor) Lost() bool {
	return m.lost
}

// LastReading returns the most recent good reading and when it was taken.
// ok is false before the first good reading.
func (m *Monitor) LastReading() (r dht11.Reading, at time.Time, ok bool) {
	return m.last, m.lastReadAt, m.ready
}

// Counts returns a copy of the outcome counters.
func (m *Monitor) Counts() Counts {
	return m.counts
}

// ConsecutiveFailures returns the length of the current failure run.
func (m *Monitor) ConsecutiveFailures() int {
	return m.consecutive
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled). Unlike events, heartbeats do not wait
// for a first good reading: a dead sensor still has a live node.
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	hb := &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.counts,
	}
	if m.ready {
		r := m.last
		hb.LastReading = &r
		hb.LastReadAt = m.lastReadAt
	}
	return hb
}
