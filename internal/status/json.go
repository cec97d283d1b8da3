package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	Sensor        SensorJSON   `json:"sensor"`
	LED           string       `json:"led"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"read_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON reports the last reading and error.
type SensorJSON struct {
	State        string     `json:"state"`
	TemperatureC *float64   `json:"temperature_c,omitempty"`
	HumidityPct  *float64   `json:"humidity_pct,omitempty"`
	ReadAt       string     `json:"read_at,omitempty"`
	LastError    *ErrorJSON `json:"last_error,omitempty"`
}

// ErrorJSON is the JSON representation of a read error.
type ErrorJSON struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	At      string `json:"at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of read counts.
type CountsJSON struct {
	Readings int `json:"readings"`
	Failures int `json:"failures"`
	Timeout  int `json:"timeout"`
	Checksum int `json:"checksum"`
	Range    int `json:"range"`
	Line     int `json:"line"`
	Other    int `json:"other"`
	Lost     int `json:"lost"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Pin         string `json:"pin"`
	Backend     string `json:"backend"`
	IntervalMs  int64  `json:"interval_ms"`
	Attempts    int    `json:"attempts"`
	LostAfter   int    `json:"lost_after"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

// LEDString formats an LED state as ON or OFF.
func LEDString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	sensor := SensorJSON{State: snap.SensorState()}
	if snap.Reading != nil {
		temp, hum := snap.Reading.Temperature, snap.Reading.Humidity
		sensor.TemperatureC = &temp
		sensor.HumidityPct = &hum
		sensor.ReadAt = snap.ReadAt.UTC().Format(time.RFC3339)
	}
	if snap.LastError != nil {
		sensor.LastError = &ErrorJSON{
			Kind:    string(snap.LastError.Kind),
			Message: snap.LastError.Message,
			At:      snap.LastError.At.UTC().Format(time.RFC3339),
		}
	}

	c := snap.Counts
	return StatusInner{
		Ready:         snap.Ready,
		Sensor:        sensor,
		LED:           LEDString(snap.LED),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Readings: c.Readings,
			Failures: c.Failures,
			Timeout:  c.Timeout,
			Checksum: c.Checksum,
			Range:    c.Range,
			Line:     c.Line,
			Other:    c.Other,
			Lost:     c.Lost,
		},
		Config: ConfigJSON{
			Pin:         snap.Config.Pin,
			Backend:     snap.Config.Backend,
			IntervalMs:  snap.Config.IntervalMs,
			Attempts:    snap.Config.Attempts,
			LostAfter:   snap.Config.LostAfter,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
