package mqtt

import (
	"sync"
	"time"

	"github.com/sweeney/dht-node/internal/logic"
)

// LEDState is a recorded PublishLED call.
type LEDState struct {
	On bool
	At time.Time
}

// FakePublisher records published events for test assertions. Methods are
// safe for concurrent use; read the exported fields only once publishing
// goroutines have finished, or use the accessor methods.
type FakePublisher struct {
	mu sync.Mutex

	// Events contains all sensor events that were published.
	Events []logic.Event

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// LEDStates contains all LED states that were published.
	LEDStates []LEDState

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// PublishLEDError, if set, will be returned by PublishLED.
	PublishLEDError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handler CommandHandler
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the sensor event.
func (f *FakePublisher) Publish(event logic.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, event)

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// PublishLED records the LED state.
func (f *FakePublisher) PublishLED(on bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishLEDError != nil {
		return f.PublishLEDError
	}
	f.LEDStates = append(f.LEDStates, LEDState{On: on, At: at})
	return nil
}

// LEDs returns a copy of the recorded LED states.
func (f *FakePublisher) LEDs() []LEDState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LEDState(nil), f.LEDStates...)
}

// SetCommandHandler registers the receiver used by Deliver.
func (f *FakePublisher) SetCommandHandler(h CommandHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// Deliver simulates an LED command arriving from the broker. It reports
// whether a handler was registered.
func (f *FakePublisher) Deliver(payload []byte) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(ParseCommandPayload(payload))
	return true
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.LEDStates = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.PublishLEDError = nil
	f.Connected = false
}
