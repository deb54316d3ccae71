package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/train-diorama/internal/loop"
)

// BufferSize is the number of messages the outbox holds while the broker is
// unreachable.
const BufferSize = 256

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Clock    func() time.Time
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are held in an outbox and replayed in order on reconnect.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	out       *outbox
	replaying bool // onConnect is draining the outbox
}

func newPublisher(c paho.Client) *RealPublisher {
	return &RealPublisher{client: c, out: newOutbox(BufferSize)}
}

// NewRealPublisher creates a publisher for the given broker. A broker that is
// not reachable yet is not an error: paho keeps retrying in the background.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	p := newPublisher(nil)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: o.Clock(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.WithField("broker", o.Broker).Warn("mqtt connect timed out, retrying in background")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect replays the outbox. Sends that arrive during the replay are
// queued behind it so nothing overtakes an older message.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.replaying = true
	log.WithField("buffered", p.out.len()).Info("mqtt connected")
	for {
		pending := p.out.drain()
		if len(pending) == 0 {
			p.replaying = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		for _, m := range pending {
			token := c.Publish(m.topic, m.qos, m.retained, m.payload)
			if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
				log.WithField("topic", m.topic).Warn("mqtt replay failed")
			}
		}
		p.mu.Lock()
	}
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends an input edge event. QoS 0, not retained.
func (p *RealPublisher) Publish(event loop.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event. QoS 1 so STARTUP and
// SHUTDOWN are delivered at least once.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	p.mu.Lock()
	if p.replaying || p.out.len() > 0 || !p.client.IsConnectionOpen() {
		p.out.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Queue returns the outbox depth and the per-topic overflow drops.
func (p *RealPublisher) Queue() (int, map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.len(), p.out.droppedByTopic()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
