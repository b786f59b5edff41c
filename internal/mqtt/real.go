package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/crate-controller/internal/crate"
)

// bufferCapacity bounds how many messages are held while the broker is unreachable.
const bufferCapacity = 100

// client is the subset of paho.Client used by RealPublisher.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client    client
	topic     string
	onCommand CommandFunc
	now       func() time.Time

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	everUp    bool
}

// NewRealPublisher creates a publisher connected to the given broker.
// If onCommand is non-nil, payloads on TopicCommand are passed to it and the
// outcome is published on TopicReply.
func NewRealPublisher(broker string, onCommand CommandFunc) (*RealPublisher, error) {
	p := newPublisher(nil, onCommand, time.Now)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("crate-controller-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(c paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(c paho.Client, err error) { p.handleConnectionLost(err) })

	c := paho.NewClient(opts)
	p.client = c

	// With connect retry the token only completes once the broker answers;
	// until then messages are buffered.
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(c client, onCommand CommandFunc, now func() time.Time) *RealPublisher {
	return &RealPublisher{
		client:    c,
		topic:     Topic,
		onCommand: onCommand,
		now:       now,
		buf:       newRingBuffer(bufferCapacity),
	}
}

// Publish sends a crate event to the MQTT broker.
func (p *RealPublisher) Publish(event crate.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: p.topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.publish(msg)
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	p.connected = true
	reconnect := p.everUp
	p.everUp = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err := p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			log.Printf("mqtt: %v", err)
		}
	}

	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, msg := range pending {
		if err := p.publish(msg); err != nil {
			log.Printf("mqtt: replay: %v", err)
		}
	}

	if p.onCommand != nil {
		token := p.client.Subscribe(TopicCommand, 1, func(_ paho.Client, m paho.Message) {
			p.handleCommand(m.Payload())
		})
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", TopicCommand, token.Error())
		}
	}
}

func (p *RealPublisher) handleConnectionLost(err error) {
	log.Printf("mqtt: connection lost: %v", err)
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

func (p *RealPublisher) handleCommand(payload []byte) {
	path := ParseCommand(payload)
	body, err := p.onCommand(path)
	if err != nil {
		log.Printf("mqtt: command %q: %v", path, err)
	}

	reply, ferr := FormatReply(p.now(), path, body, err)
	if ferr != nil {
		log.Printf("mqtt: format reply: %v", ferr)
		return
	}
	if err := p.send(bufferedMsg{topic: TopicReply, payload: reply}); err != nil {
		log.Printf("mqtt: %v", err)
	}
}
