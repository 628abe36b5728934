// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sweeney/keypad-sensor/internal/keypad"
)

// Topic is the MQTT topic for key events.
const Topic = "input/keypad/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "input/keypad/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a key event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event KeyEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// KeyEvent is a decoded key event ready to publish.
type KeyEvent struct {
	Timestamp time.Time
	Kind      keypad.EventKind
	Key       keypad.Key
	Name      string // configured key name, may be empty
	Action    string // stopwatch action triggered, may be empty
}

// Encoding selects the key event payload format.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// ParseEncoding validates a payload encoding name. Empty means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingCBOR:
		return EncodingCBOR, nil
	}
	return "", fmt.Errorf("unknown payload encoding %q (want json or cbor)", s)
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Keypad KeyPayload `json:"keypad" cbor:"keypad"`
}

// KeyPayload contains the key event details.
type KeyPayload struct {
	Timestamp string `json:"timestamp" cbor:"timestamp"`
	Event     string `json:"event" cbor:"event"`
	Key       int    `json:"key" cbor:"key"`
	Name      string `json:"name,omitempty" cbor:"name,omitempty"`
	Code      int    `json:"code" cbor:"code"`
	Action    string `json:"action,omitempty" cbor:"action,omitempty"`
}

func buildPayload(event KeyEvent) Payload {
	return Payload{
		Keypad: KeyPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:     event.Kind.String(),
			Key:       int(event.Key),
			Name:      event.Name,
			Code:      int(keypad.Pack(event.Kind, event.Key)),
			Action:    event.Action,
		},
	}
}

// FormatPayload creates the JSON payload for a key event.
func FormatPayload(event KeyEvent) ([]byte, error) {
	return json.Marshal(buildPayload(event))
}

// cborMode gives deterministic output so identical events encode identically.
var cborMode, _ = cbor.CoreDetEncOptions().EncMode()

// EncodePayload creates the payload for a key event in the given encoding.
func EncodePayload(event KeyEvent, enc Encoding) ([]byte, error) {
	switch enc {
	case "", EncodingJSON:
		return FormatPayload(event)
	case EncodingCBOR:
		return cborMode.Marshal(buildPayload(event))
	}
	return nil, fmt.Errorf("unknown payload encoding %q", enc)
}

// DecodePayload parses a payload produced by EncodePayload.
func DecodePayload(data []byte, enc Encoding) (Payload, error) {
	var p Payload
	var err error
	switch enc {
	case "", EncodingJSON:
		err = json.Unmarshal(data, &p)
	case EncodingCBOR:
		err = cbor.Unmarshal(data, &p)
	default:
		err = fmt.Errorf("unknown payload encoding %q", enc)
	}
	return p, err
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// WillPayload is the retained last-will message the broker publishes if
// the connection drops uncleanly.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	return data
}
