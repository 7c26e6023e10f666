// Package mqtt provides the push notification channel over MQTT, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"
)

// TopicPrefix is prepended to a slot name to form its topic.
const TopicPrefix = "conveyor/sensor/push/"

// TopicStatus carries the retained ONLINE/OFFLINE presence of the node.
const TopicStatus = "conveyor/sensor/status"

// ClientID identifies the node to the broker.
const ClientID = "conveyor-sensor"

// ErrNotConnected is returned by Notify while the broker is unreachable.
// The notification is dropped, not queued.
var ErrNotConnected = errors.New("mqtt: not connected")

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SlotTopic returns the topic a slot is published on.
func SlotTopic(slot string) string {
	return TopicPrefix + slot
}

// StatusPayload represents the presence message payload.
type StatusPayload struct {
	Node StatusPayloadInner `json:"node"`
}

// StatusPayloadInner contains the presence details.
type StatusPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	State     string `json:"state"`
}

// FormatStatusPayload creates the JSON presence payload. A zero timestamp
// is omitted, as in the last-will message registered before connecting.
func FormatStatusPayload(state string, ts time.Time) ([]byte, error) {
	inner := StatusPayloadInner{State: state}
	if !ts.IsZero() {
		inner.Timestamp = ts.UTC().Format(time.RFC3339)
	}
	return json.Marshal(StatusPayload{Node: inner})
}
