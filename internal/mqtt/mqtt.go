// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/dht-node/internal/logic"
)

// Topic is the MQTT topic for sensor reading events.
const Topic = "climate/dht11/sensor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "climate/dht11/sensor/system"

// TopicLEDState carries the retained LED state.
const TopicLEDState = "climate/dht11/led/state"

// TopicLEDSet receives LED commands (ON, OFF, TOGGLE, STATUS).
const TopicLEDSet = "climate/dht11/led/set"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a sensor event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishLED sends the retained LED state.
	PublishLED(on bool, at time.Time) error

	// Close disconnects from the broker.
	Close() error
}

// CommandHandler receives a raw LED command payload.
type CommandHandler func(cmd string)

// CommandSource delivers LED commands received from the broker.
type CommandSource interface {
	SetCommandHandler(h CommandHandler)
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Climate ClimatePayload `json:"climate"`
}

// ClimatePayload contains the sensor event details. Temperature and
// humidity are pointers so a genuine 0.0 is still emitted.
type ClimatePayload struct {
	Timestamp    string        `json:"timestamp"`
	Event        string        `json:"event"`
	TemperatureC *float64      `json:"temperature_c,omitempty"`
	HumidityPct  *float64      `json:"humidity_pct,omitempty"`
	Error        *ErrorPayload `json:"error,omitempty"`
	Failures     int           `json:"consecutive_failures,omitempty"`
}

// ErrorPayload describes a failed read.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FormatPayload creates the JSON payload for a sensor event.
func FormatPayload(event logic.Event) ([]byte, error) {
	inner := ClimatePayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Failures:  event.Failures,
	}

	switch event.Type {
	case logic.EventReading, logic.EventSensorRecovered:
		temp, hum := event.Reading.Temperature, event.Reading.Humidity
		inner.TemperatureC = &temp
		inner.HumidityPct = &hum
	case logic.EventReadFailed, logic.EventSensorLost:
		inner.Error = &ErrorPayload{Kind: string(event.Kind), Message: event.Error}
	}

	return json.Marshal(Payload{Climate: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// LEDPayload is the retained LED state message.
type LEDPayload struct {
	LED LEDPayloadInner `json:"led"`
}

// LEDPayloadInner contains the LED state.
type LEDPayloadInner struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
}

// FormatLEDPayload creates the JSON payload for the LED state.
func FormatLEDPayload(on bool, at time.Time) ([]byte, error) {
	state := "OFF"
	if on {
		state = "ON"
	}
	return json.Marshal(LEDPayload{LED: LEDPayloadInner{
		Timestamp: at.UTC().Format(time.RFC3339),
		State:     state,
	}})
}

// ParseCommandPayload extracts an LED command from a message body. Plain
// text ("toggle") and JSON ({"command":"toggle"}) are both accepted.
func ParseCommandPayload(b []byte) string {
	var msg struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(b, &msg); err == nil && msg.Command != "" {
		return strings.TrimSpace(msg.Command)
	}
	return strings.TrimSpace(string(b))
}
