// Package status provides a thread-safe status tracker for the dht-node daemon.
// It is read by the HTTP handlers, the display and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/dht-node/internal/dht11"
	"github.com/sweeney/dht-node/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Pin         string
	Backend     string
	IntervalMs  int64
	Attempts    int
	LostAfter   int
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// ReadError describes the most recent failed read.
type ReadError struct {
	Kind    dht11.Kind
	Message string
	At      time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	// Reading is nil until the first good read.
	Reading       *dht11.Reading
	ReadAt        time.Time
	LastError     *ReadError
	Ready         bool
	Lost          bool
	Counts        logic.Counts
	LED           bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// SensorState summarizes sensor health as WAITING, OK or LOST.
func (s Snapshot) SensorState() string {
	switch {
	case s.Lost:
		return "LOST"
	case s.Ready:
		return "OK"
	default:
		return "WAITING"
	}
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the monitor's view into the tracker.
// Called from runLoop after every sample.
func (t *Tracker) Update(m *logic.Monitor) {
	r, at, ok := m.LastReading()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Ready = ok
	t.snap.Lost = m.Lost()
	t.snap.Counts = m.Counts()
	if ok {
		t.snap.Reading = &r
		t.snap.ReadAt = at
	}
}

// SetError records the most recent failed read.
func (t *Tracker) SetError(err error, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		t.snap.LastError = nil
		return
	}
	t.snap.LastError = &ReadError{Kind: dht11.KindOf(err), Message: err.Error(), At: at}
}

// SetLED records the LED state.
func (t *Tracker) SetLED(on bool) {
	t.mu.Lock()
	t.snap.LED = on
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	// Pointers are never mutated in place; copy anyway so callers can't
	// reach the tracker's storage.
	if s.Reading != nil {
		r := *s.Reading
		s.Reading = &r
	}
	if s.LastError != nil {
		e := *s.LastError
		s.LastError = &e
	}
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	s.Now = time.Now()
	return s
}
