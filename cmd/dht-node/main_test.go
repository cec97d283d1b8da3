package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sweeney/dht-node/internal/dht11"
	"github.com/sweeney/dht-node/internal/gpio"
	"github.com/sweeney/dht-node/internal/led"
	"github.com/sweeney/dht-node/internal/logic"
	"github.com/sweeney/dht-node/internal/mqtt"
	"github.com/sweeney/dht-node/internal/sampler"
	"github.com/sweeney/dht-node/internal/status"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := &status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("network info mismatch (-want +got):\n%s", diff)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func good(temp, hum float64) sampler.Result {
	return sampler.Result{Time: t0, Reading: dht11.Reading{Temperature: temp, Humidity: hum}}
}

func timeout() sampler.Result {
	return sampler.Result{Time: t0, Err: &dht11.TimeoutError{Phase: dht11.PhaseAckLow, Bit: -1, Attempts: 5}}
}

// fakeScreen counts Show calls and keeps the last snapshot.
type fakeScreen struct {
	shows int
	last  status.Snapshot
	err   error
}

func (f *fakeScreen) Show(snap status.Snapshot) error {
	f.shows++
	f.last = snap
	return f.err
}

type loopOpts struct {
	tracker   *status.Tracker
	screen    screen
	lostAfter int
	heartbeat time.Duration
	clock     func() time.Time
}

// runRunLoop feeds results to runLoop, then delivers signal and waits for it
// to return.
func runRunLoop(t *testing.T, pub *mqtt.FakePublisher, o loopOpts, results []sampler.Result, signal os.Signal) error {
	t.Helper()
	if o.clock == nil {
		o.clock = fakeClock(t0, time.Second)
	}
	ch := make(chan sampler.Result)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(ch, pub, pub, o.tracker, o.screen, o.lostAfter, o.heartbeat, o.clock, sig, quiet)
	}()

	for _, r := range results {
		ch <- r
	}
	sig <- signal

	return <-errCh
}

func eventTypes(events []logic.Event) []logic.EventType {
	out := make([]logic.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func systemEventNames(events []mqtt.SystemEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Event
	}
	return out
}

func TestRunLoopPublishesReadings(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	err := runRunLoop(t, pub, loopOpts{}, []sampler.Result{good(21, 25), good(21.5, 26)}, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}

	want := []logic.EventType{logic.EventReading, logic.EventReading}
	if diff := cmp.Diff(want, eventTypes(pub.Events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if pub.Events[1].Reading.Temperature != 21.5 {
		t.Errorf("second reading: got %v", pub.Events[1].Reading)
	}
}

func TestRunLoopSensorLostAndRecovered(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	results := []sampler.Result{good(20, 40), timeout(), timeout(), timeout(), good(20, 41)}

	err := runRunLoop(t, pub, loopOpts{lostAfter: 3}, results, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}

	want := []logic.EventType{
		logic.EventReading,
		logic.EventReadFailed,
		logic.EventReadFailed,
		logic.EventReadFailed,
		logic.EventSensorLost,
		logic.EventSensorRecovered,
		logic.EventReading,
	}
	if diff := cmp.Diff(want, eventTypes(pub.Events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if got := pub.Events[4].Kind; got != dht11.KindTimeout {
		t.Errorf("lost kind: got %s, want %s", got, dht11.KindTimeout)
	}
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(t0, status.Config{})

	results := []sampler.Result{good(22, 30), timeout()}
	if err := runRunLoop(t, pub, loopOpts{tracker: tracker}, results, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop: %v", err)
	}

	snap := tracker.Snapshot()
	if !snap.Ready || snap.Reading == nil || snap.Reading.Temperature != 22 {
		t.Errorf("reading: ready=%v reading=%v", snap.Ready, snap.Reading)
	}
	if snap.LastError == nil || snap.LastError.Kind != dht11.KindTimeout {
		t.Errorf("last error: got %+v", snap.LastError)
	}
	if snap.Counts.Readings != 1 || snap.Counts.Timeout != 1 {
		t.Errorf("counts: got %+v", snap.Counts)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
}

func TestRunLoopPublishErrorContinues(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker down")

	err := runRunLoop(t, pub, loopOpts{}, []sampler.Result{good(20, 40), good(20, 40)}, syscall.SIGINT)
	if err != nil {
		t.Fatalf("runLoop should survive publish errors: %v", err)
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN after publish errors, got %v", systemEventNames(pub.SystemEvents))
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(t0, status.Config{})
	// Start at t0, then one minute per call: heartbeats fire at 2m and 4m.
	clock := fakeClock(t0, time.Minute)
	results := []sampler.Result{good(20, 40), good(20, 40), good(20, 40), good(20, 40)}

	err := runRunLoop(t, pub, loopOpts{tracker: tracker, heartbeat: 2 * time.Minute, clock: clock}, results, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}

	want := []string{"HEARTBEAT", "HEARTBEAT", "SHUTDOWN"}
	if diff := cmp.Diff(want, systemEventNames(pub.SystemEvents)); diff != "" {
		t.Errorf("system events mismatch (-want +got):\n%s", diff)
	}
	hb := pub.SystemEvents[0]
	if len(hb.RawPayload) == 0 {
		t.Fatal("heartbeat should carry a status payload")
	}
	if hb.Retained {
		t.Error("heartbeat should not be retained")
	}
}

func TestRunLoopHeartbeatWithoutReadings(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(t0, time.Minute)
	results := []sampler.Result{timeout(), timeout()}

	err := runRunLoop(t, pub, loopOpts{heartbeat: time.Minute, clock: clock}, results, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}

	want := []string{"HEARTBEAT", "HEARTBEAT", "SHUTDOWN"}
	if diff := cmp.Diff(want, systemEventNames(pub.SystemEvents)); diff != "" {
		t.Errorf("system events mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLoopHeartbeatRefreshesNetwork(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.0.0.7")

	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(t0, status.Config{})
	clock := fakeClock(t0, time.Minute)

	err := runRunLoop(t, pub, loopOpts{tracker: tracker, heartbeat: time.Minute, clock: clock}, []sampler.Result{good(20, 40)}, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	snap := tracker.Snapshot()
	if snap.Network == nil || snap.Network.IP != "10.0.0.7" {
		t.Errorf("network: got %+v", snap.Network)
	}
}

func TestRunLoopShutdownSignals(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			pub := mqtt.NewFakePublisher()
			tracker := status.NewTracker(t0, status.Config{})
			if err := runRunLoop(t, pub, loopOpts{tracker: tracker}, nil, tt.sig); err != nil {
				t.Fatalf("runLoop: %v", err)
			}
			if len(pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
			}
			ev := pub.SystemEvents[0]
			if ev.Event != "SHUTDOWN" || ev.Reason != tt.want || !ev.Retained {
				t.Errorf("shutdown event: got %+v", ev)
			}
			if len(ev.RawPayload) == 0 {
				t.Error("shutdown should carry a status payload")
			}
		})
	}
}

func TestRunLoopSamplerStopped(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	ch := make(chan sampler.Result)
	close(ch)

	err := runLoop(ch, pub, pub, nil, nil, 0, 0, fakeClock(t0, time.Second), make(chan os.Signal), quiet)
	if err == nil {
		t.Fatal("expected error when the sampler stops")
	}
}

func TestRunLoopUpdatesDisplay(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(t0, status.Config{})
	scr := &fakeScreen{err: errors.New("i2c nack")}

	results := []sampler.Result{good(21, 25), good(21, 26)}
	if err := runRunLoop(t, pub, loopOpts{tracker: tracker, screen: scr}, results, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if scr.shows != 2 {
		t.Errorf("display shows: got %d, want 2", scr.shows)
	}
	if scr.last.Reading == nil || scr.last.Reading.Humidity != 26 {
		t.Errorf("display snapshot: got %+v", scr.last.Reading)
	}
}

// --- LED command handling ---

func newLED(t *testing.T) (*led.Controller, *gpio.FakeOutput) {
	t.Helper()
	out := gpio.NewFakeOutput()
	ctl, err := led.New(out, quiet)
	if err != nil {
		t.Fatalf("led.New: %v", err)
	}
	return ctl, out
}

func ledStates(states []mqtt.LEDState) []bool {
	out := make([]bool, len(states))
	for i, s := range states {
		out[i] = s.On
	}
	return out
}

func TestLEDCommandHandler(t *testing.T) {
	tests := []struct {
		name      string
		payloads  []string
		wantLED   bool
		published []bool
	}{
		{"on", []string{"ON"}, true, []bool{true}},
		{"json toggle", []string{`{"command":"toggle"}`}, true, []bool{true}},
		{"on then off", []string{"ON", "off"}, false, []bool{true, false}},
		{"status", []string{"STATUS"}, false, []bool{false}},
		{"unknown", []string{"BLINK"}, false, []bool{false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl, out := newLED(t)
			pub := mqtt.NewFakePublisher()
			ctl.OnChange(func(on bool) { pub.PublishLED(on, t0) })
			pub.SetCommandHandler(ledCommandHandler(ctl, pub, fakeClock(t0, time.Second), quiet))

			for _, p := range tt.payloads {
				if !pub.Deliver([]byte(p)) {
					t.Fatal("no command handler registered")
				}
			}

			if ctl.State() != tt.wantLED || out.Last() != tt.wantLED {
				t.Errorf("led: state=%v pin=%v, want %v", ctl.State(), out.Last(), tt.wantLED)
			}
			if diff := cmp.Diff(tt.published, ledStates(pub.LEDs())); diff != "" {
				t.Errorf("published states mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLEDCommandHandlerWriteFailure(t *testing.T) {
	ctl, out := newLED(t)
	out.SetError = errors.New("gpio busy")
	pub := mqtt.NewFakePublisher()
	h := ledCommandHandler(ctl, pub, fakeClock(t0, time.Second), quiet)

	h("ON")

	if ctl.State() {
		t.Error("state should stay off after a failed write")
	}
	if diff := cmp.Diff([]bool{false}, ledStates(pub.LEDs())); diff != "" {
		t.Errorf("published states mismatch (-want +got):\n%s", diff)
	}
}

func TestNopPublisher(t *testing.T) {
	var p mqtt.Publisher = nopPublisher{}
	if err := p.Publish(logic.Event{}); err != nil {
		t.Error(err)
	}
	if err := p.PublishSystem(mqtt.SystemEvent{}); err != nil {
		t.Error(err)
	}
	if err := p.PublishLED(true, t0); err != nil {
		t.Error(err)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}
