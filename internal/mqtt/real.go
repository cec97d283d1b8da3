package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/dht-node/internal/logic"
)

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 256

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	BufferSize int
	// Now stamps the will and RECONNECTED messages. Defaults to time.Now.
	Now func() time.Time
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	log    *slog.Logger
	now    func() time.Time

	buf *outbox

	mu        sync.Mutex
	handler   CommandHandler
	connected bool // set after the first successful connect
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// A broker that is unreachable at startup is not an error: paho keeps
// retrying in the background and messages are buffered meanwhile.
func NewRealPublisher(o Options, log *slog.Logger) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = "dht-node"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	p := &RealPublisher{
		log: log,
		now: o.Now,
		buf: newOutbox(o.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: o.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.buf.offline()
			log.Warn("mqtt connection lost", "error", err)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username).SetPassword(o.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn("mqtt broker not reachable yet, retrying in background", "broker", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect runs on every (re)connection: it resubscribes to LED commands
// and replays anything buffered while offline.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	p.mu.Unlock()

	p.log.Info("mqtt connected", "reconnect", reconnect, "buffered", p.buf.size())

	tok := c.Subscribe(TopicLEDSet, 1, func(_ paho.Client, m paho.Message) {
		p.dispatch(ParseCommandPayload(m.Payload()))
	})
	if tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
		p.log.Error("mqtt subscribe failed", "topic", TopicLEDSet, "error", tok.Error())
	}

	p.replay()

	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err == nil {
			_ = p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
		}
	}
}

// replay sends queued messages until the outbox is empty. Messages held
// while a batch is in flight go out in the next batch, before any direct
// publish.
func (p *RealPublisher) replay() {
	epoch := p.buf.connecting()
	for pending := p.buf.next(epoch); pending != nil; pending = p.buf.next(epoch) {
		for _, m := range pending {
			if err := p.send(m); err != nil {
				p.log.Warn("mqtt replay failed", "topic", m.topic, "error", err)
			}
		}
	}
}

func (p *RealPublisher) dispatch(cmd string) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		p.log.Warn("mqtt led command ignored, no handler", "command", cmd)
		return
	}
	h(cmd)
}

// SetCommandHandler registers the receiver for LED commands.
func (p *RealPublisher) SetCommandHandler(h CommandHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a sensor event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// PublishLED sends the retained LED state.
func (p *RealPublisher) PublishLED(on bool, at time.Time) error {
	payload, err := FormatLEDPayload(on, at)
	if err != nil {
		return fmt.Errorf("format led payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicLEDState, payload: payload, qos: 1, retained: true})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	held, dropped := p.buf.hold(m)
	if dropped {
		p.log.Warn("mqtt buffer full, dropping oldest", "capacity", p.buf.capacity)
	}
	if held {
		return nil
	}
	return p.send(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
