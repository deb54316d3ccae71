// Package mqtt publishes input edges and system lifecycle events to MQTT.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/train-diorama/internal/loop"
)

// Topic is the MQTT topic for input edge events.
const Topic = "diorama/inputs/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "diorama/system"

// Publisher publishes events to MQTT. It satisfies loop.Publisher.
type Publisher interface {
	// Publish sends an input edge event. Failure must not stop the loop.
	Publish(event loop.Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// QueueStatus reports messages held for replay and how many were dropped
// per topic because the outbox overflowed.
type QueueStatus interface {
	Queue() (buffered int, dropped map[string]int)
}

// SystemEvent is a lifecycle event: STARTUP, SHUTDOWN, HEARTBEAT.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM", "MQTT_DISCONNECT"
	RawPayload []byte // pre-formatted status snapshot; returned as-is when set
	Retained   bool
}

// Payload is the MQTT message for an input edge.
type Payload struct {
	Input InputPayload `json:"input"`
}

// InputPayload contains the edge details.
type InputPayload struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Event     string `json:"event"`
	Active    bool   `json:"active"`
	Error     string `json:"error,omitempty"`
}

// FormatPayload creates the JSON payload for an input edge.
func FormatPayload(event loop.Event) ([]byte, error) {
	p := Payload{
		Input: InputPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Name:      event.Input,
			Event:     string(event.Type()),
			Active:    event.Active,
		},
	}
	if event.Err != nil {
		p.Input.Error = event.Err.Error()
	}
	return json.Marshal(p)
}

// SystemPayload is used for events without a status snapshot (the will
// message).
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
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
