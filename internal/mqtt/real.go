package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultClientID is the MQTT client identifier.
const DefaultClientID = "keypad-sensor"

// bufferCapacity is how many messages are kept while disconnected.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client   paho.Client
	topic    string
	encoding Encoding

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	connects  int
}

// NewRealPublisher creates a publisher for the given broker. The initial
// connection is retried in the background, so this does not fail when the
// broker is down at startup.
func NewRealPublisher(broker string, enc Encoding) *RealPublisher {
	p := &RealPublisher{
		topic:    Topic,
		encoding: enc,
		buf:      newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(DefaultClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, WillPayload(), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	p.connects++
	reconnect := p.connects > 1
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(TopicSystem, 1, false, payload)
	} else {
		log.Printf("mqtt: connected")
	}

	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: replay timeout on %s", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: replay error: %v", err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Publish sends a key event to the MQTT broker.
func (p *RealPublisher) Publish(event KeyEvent) error {
	payload, err := EncodePayload(event, p.encoding)
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
	// QoS 1 (at-least-once) - we want lifecycle events delivered
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", m.topic)
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
