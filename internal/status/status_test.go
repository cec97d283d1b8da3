package status

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/dht-node/internal/dht11"
	"github.com/sweeney/dht-node/internal/logic"
)

func monitorWith(samples ...logic.Sample) *logic.Monitor {
	m := logic.NewMonitor(2, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, s := range samples {
		m.Process(s)
	}
	return m
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Pin: "GPIO4", IntervalMs: 5000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.IntervalMs != 5000 {
		t.Errorf("Config.IntervalMs: got %d, want 5000", snap.Config.IntervalMs)
	}
	if snap.Ready {
		t.Error("expected Ready=false initially")
	}
	if snap.Reading != nil {
		t.Error("expected no reading initially")
	}
	if snap.SensorState() != "WAITING" {
		t.Errorf("SensorState: got %s, want WAITING", snap.SensorState())
	}
}

func TestUpdateFromMonitor(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	tr := NewTracker(time.Now(), Config{})

	tr.Update(monitorWith(logic.Sample{Time: at, Reading: dht11.Reading{Temperature: 21, Humidity: 25}}))

	snap := tr.Snapshot()
	if !snap.Ready {
		t.Error("expected Ready=true")
	}
	if snap.Reading == nil || snap.Reading.Temperature != 21 {
		t.Fatalf("Reading: got %v", snap.Reading)
	}
	if !snap.ReadAt.Equal(at) {
		t.Errorf("ReadAt: got %v, want %v", snap.ReadAt, at)
	}
	if snap.Counts.Readings != 1 {
		t.Errorf("Counts.Readings: got %d, want 1", snap.Counts.Readings)
	}
	if snap.SensorState() != "OK" {
		t.Errorf("SensorState: got %s, want OK", snap.SensorState())
	}
}

func TestUpdateLost(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	timeout := &dht11.TimeoutError{Phase: dht11.PhaseAckLow, Bit: -1, Attempts: 1}

	tr.Update(monitorWith(logic.Sample{Err: timeout}, logic.Sample{Err: timeout}))

	snap := tr.Snapshot()
	if !snap.Lost {
		t.Error("expected Lost=true")
	}
	if snap.SensorState() != "LOST" {
		t.Errorf("SensorState: got %s, want LOST", snap.SensorState())
	}
	if snap.Counts.Timeout != 2 {
		t.Errorf("Counts.Timeout: got %d, want 2", snap.Counts.Timeout)
	}
}

func TestSetError(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tr.SetError(&dht11.ChecksumError{Frame: dht11.Frame{1, 2, 3, 4, 0}}, at)
	snap := tr.Snapshot()
	if snap.LastError == nil || snap.LastError.Kind != dht11.KindChecksum {
		t.Fatalf("LastError: got %+v", snap.LastError)
	}
	if !snap.LastError.At.Equal(at) {
		t.Errorf("LastError.At: got %v", snap.LastError.At)
	}

	tr.SetError(nil, at)
	if tr.Snapshot().LastError != nil {
		t.Error("expected nil LastError after clearing")
	}
}

func TestSetLEDAndMQTT(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetLED(true)
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	if !snap.LED {
		t.Error("expected LED=true")
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	if snap.Uptime() != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(monitorWith(logic.Sample{Reading: dht11.Reading{Temperature: 20}}))

	snap1 := tr.Snapshot()
	snap1.Reading.Temperature = 99

	tr.Update(monitorWith(logic.Sample{Reading: dht11.Reading{Temperature: 22}}))

	if tr.Snapshot().Reading.Temperature != 22 {
		t.Error("tracker should hold the latest reading")
	}
	if snap1.Reading.Temperature != 99 {
		t.Error("snapshot should be independent of the tracker")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reading := dht11.Reading{Temperature: 21.5, Humidity: 40}
	snap := Snapshot{
		Reading:       &reading,
		ReadAt:        start.Add(time.Minute),
		Ready:         true,
		LED:           true,
		Counts:        logic.Counts{Readings: 10, Failures: 2, Timeout: 1, Checksum: 1},
		StartTime:     start,
		Now:           start.Add(2 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Pin: "GPIO4", IntervalMs: 5000, Broker: "tcp://broker:1883", HTTPAddr: ":80"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON should not carry event/reason")
	}
	if s.Sensor.State != "OK" {
		t.Errorf("Sensor.State: got %s, want OK", s.Sensor.State)
	}
	if s.Sensor.TemperatureC == nil || *s.Sensor.TemperatureC != 21.5 {
		t.Errorf("temperature: got %v", s.Sensor.TemperatureC)
	}
	if s.Sensor.ReadAt != "2026-01-01T00:01:00Z" {
		t.Errorf("ReadAt: got %s", s.Sensor.ReadAt)
	}
	if s.LED != "ON" {
		t.Errorf("LED: got %s, want ON", s.LED)
	}
	if s.UptimeSeconds != 120 {
		t.Errorf("UptimeSeconds: got %d, want 120", s.UptimeSeconds)
	}
	if s.Counts.Readings != 10 || s.Counts.Checksum != 1 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Config.Pin != "GPIO4" {
		t.Errorf("Config.Pin: got %s", s.Config.Pin)
	}
	if s.Network != nil {
		t.Error("network should be omitted when nil")
	}
}

func TestFormatJSONWaiting(t *testing.T) {
	snap := Snapshot{Now: time.Now(), StartTime: time.Now()}
	out := string(FormatJSON(snap))
	if strings.Contains(out, "temperature_c") {
		t.Error("temperature should be omitted before the first reading")
	}
	if !strings.Contains(out, `"state": "WAITING"`) {
		t.Errorf("expected WAITING state in %s", out)
	}
}

func TestFormatJSONLastError(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		LastError: &ReadError{Kind: dht11.KindTimeout, Message: "dht11: timeout", At: at},
		Now:       at,
		StartTime: at,
	}
	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	e := parsed.Status.Sensor.LastError
	if e == nil || e.Kind != "TIMEOUT" || e.At != "2026-01-01T00:00:00Z" {
		t.Errorf("LastError: got %+v", e)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")
	if strings.Contains(string(data), "\n") {
		t.Error("MQTT payload should be compact")
	}

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %s", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %s", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(Snapshot{}, "STARTUP", "")
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		Network: &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}
	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Network == nil {
		t.Fatal("expected network")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		m := logic.NewMonitor(3, time.Now())
		for i := 0; i < 1000; i++ {
			m.Process(logic.Sample{Time: time.Now(), Reading: dht11.Reading{Temperature: float64(i % 50)}})
			tr.Update(m)
			tr.SetError(errors.New("x"), time.Now())
			tr.SetLED(i%2 == 0)
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
