package mqtt

import (
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealNotifier pushes slot values to an actual MQTT broker. Each slot is a
// retained topic, so a subscriber that connects late still reads the
// current value.
type RealNotifier struct {
	client paho.Client

	mu     sync.Mutex
	values map[string][]byte
}

// NewRealNotifier creates a notifier for the given broker and starts
// connecting in the background. Only an unusable broker address is an
// error; an unreachable broker is retried by the client.
func NewRealNotifier(broker string) (*RealNotifier, error) {
	u, err := url.Parse(broker)
	if err != nil {
		return nil, fmt.Errorf("parse broker %q: %w", broker, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("broker %q: want scheme://host:port", broker)
	}

	will, err := FormatStatusPayload("OFFLINE", time.Time{})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	n := &RealNotifier{values: make(map[string][]byte)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicStatus, string(will), 1, true).
		SetOnConnectHandler(n.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt connection lost: %v", err)
		})

	n.client = paho.NewClient(opts)
	n.client.Connect()
	log.Printf("mqtt connecting to %s", broker)
	return n, nil
}

// onConnect announces presence. Slot topics are retained by the broker, so
// nothing is replayed.
func (n *RealNotifier) onConnect(c paho.Client) {
	log.Printf("mqtt connected")
	payload, err := FormatStatusPayload("ONLINE", time.Now())
	if err != nil {
		log.Printf("mqtt format status: %v", err)
		return
	}
	c.Publish(TopicStatus, 1, true, payload)
}

// SetValue stores the slot's value until the next Notify.
func (n *RealNotifier) SetValue(slot string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	n.mu.Lock()
	n.values[slot] = v
	n.mu.Unlock()
	return nil
}

// Notify publishes the slot's value at QoS 0 without waiting for the
// broker. While disconnected the value is dropped and ErrNotConnected
// returned.
func (n *RealNotifier) Notify(slot string) error {
	n.mu.Lock()
	v, ok := n.values[slot]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("mqtt: slot %q has no value", slot)
	}
	if !n.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := n.client.Publish(SlotTopic(slot), 0, true, v)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", slot, err)
		}
	default:
	}
	return nil
}

// IsConnected reports whether the broker connection is open.
func (n *RealNotifier) IsConnected() bool {
	return n.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (n *RealNotifier) Close() error {
	n.client.Disconnect(1000) // 1 second timeout
	return nil
}
