package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/keypad-sensor/internal/keypad"
)

func TestFormatPayload(t *testing.T) {
	event := KeyEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Kind:      keypad.EventPressed,
		Key:       2,
		Name:      "lap",
		Action:    "LAP",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"keypad":{"timestamp":"2026-02-02T22:18:12Z","event":"PRESSED","key":2,"name":"lap","code":18,"action":"LAP"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadOmitsEmptyNameAndAction(t *testing.T) {
	event := KeyEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 500000000, time.UTC),
		Kind:      keypad.EventLongReleased,
		Key:       1,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"keypad":{"timestamp":"2026-02-02T22:18:12.5Z","event":"LONG_RELEASED","key":1,"code":65}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadAllEventKinds(t *testing.T) {
	tests := []struct {
		kind      keypad.EventKind
		wantEvent string
		wantCode  int
	}{
		{keypad.EventPressed, "PRESSED", 0x13},
		{keypad.EventReleased, "RELEASED", 0x23},
		{keypad.EventLongPressed, "LONG_PRESSED", 0x33},
		{keypad.EventLongReleased, "LONG_RELEASED", 0x43},
	}

	for _, tt := range tests {
		t.Run(tt.wantEvent, func(t *testing.T) {
			payload, err := FormatPayload(KeyEvent{Timestamp: time.Now(), Kind: tt.kind, Key: 3})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed Payload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Keypad.Event != tt.wantEvent {
				t.Errorf("event: got %s, want %s", parsed.Keypad.Event, tt.wantEvent)
			}
			if parsed.Keypad.Code != tt.wantCode {
				t.Errorf("code: got 0x%02x, want 0x%02x", parsed.Keypad.Code, tt.wantCode)
			}
			if got := keypad.Unpack(byte(parsed.Keypad.Code)); got.Kind != tt.kind || got.Key != 3 {
				t.Errorf("code does not unpack to the event: %v", got)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	event := KeyEvent{
		Timestamp: time.Date(2026, 2, 2, 23, 0, 0, 0, loc),
		Kind:      keypad.EventPressed,
		Key:       1,
	}

	payload, _ := FormatPayload(event)
	var parsed Payload
	json.Unmarshal(payload, &parsed)

	if parsed.Keypad.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Keypad.Timestamp)
	}
}

func TestEncodePayloadCBORRoundTrip(t *testing.T) {
	event := KeyEvent{
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Kind:      keypad.EventLongPressed,
		Key:       3,
		Name:      "reset",
		Action:    "RESET",
	}

	data, err := EncodePayload(event, EncodingCBOR)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	jsonData, _ := FormatPayload(event)
	if bytes.Equal(data, jsonData) {
		t.Fatal("CBOR payload should differ from JSON")
	}
	if len(data) >= len(jsonData) {
		t.Errorf("expected CBOR (%d bytes) smaller than JSON (%d bytes)", len(data), len(jsonData))
	}

	parsed, err := DecodePayload(data, EncodingCBOR)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	want := buildPayload(event)
	if parsed != want {
		t.Errorf("round trip mismatch:\ngot:  %+v\nwant: %+v", parsed, want)
	}

	again, _ := EncodePayload(event, EncodingCBOR)
	if !bytes.Equal(data, again) {
		t.Error("CBOR encoding should be deterministic")
	}
}

func TestEncodePayloadUnknownEncoding(t *testing.T) {
	if _, err := EncodePayload(KeyEvent{}, "xml"); err == nil {
		t.Error("expected error for unknown encoding")
	}
	if _, err := DecodePayload(nil, "xml"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestParseEncoding(t *testing.T) {
	tests := map[string]Encoding{"": EncodingJSON, "json": EncodingJSON, "cbor": EncodingCBOR}
	for in, want := range tests {
		got, err := ParseEncoding(in)
		if err != nil {
			t.Errorf("ParseEncoding(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseEncoding(%q): got %q, want %q", in, got, want)
		}
	}
	if _, err := ParseEncoding("protobuf"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestTopic(t *testing.T) {
	if Topic != "input/keypad/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
}

func TestTopicSystem(t *testing.T) {
	if TopicSystem != "input/keypad/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadReconnected(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(payload, raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	expected := `{"system":{"event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`
	if got := string(WillPayload()); got != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	event := KeyEvent{Timestamp: time.Now(), Kind: keypad.EventPressed, Key: 1}
	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.Events))
	}
	if f.Events[0].Kind != keypad.EventPressed {
		t.Errorf("unexpected event kind: %s", f.Events[0].Kind)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherCBOR(t *testing.T) {
	f := NewFakePublisher()
	f.Encoding = EncodingCBOR

	event := KeyEvent{Timestamp: time.Now(), Kind: keypad.EventReleased, Key: 2}
	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := DecodePayload(f.Payloads[0], EncodingCBOR)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if parsed.Keypad.Event != "RELEASED" || parsed.Keypad.Key != 2 {
		t.Errorf("unexpected payload: %+v", parsed.Keypad)
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	err := f.Publish(KeyEvent{Timestamp: time.Now(), Kind: keypad.EventPressed, Key: 1})
	if err == nil {
		t.Error("expected error")
	}
	if len(f.Events) != 0 {
		t.Errorf("expected no events recorded on error, got %d", len(f.Events))
	}
}

func TestFakePublisherPublishSystem(t *testing.T) {
	f := NewFakePublisher()

	event := SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}
	if err := f.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.SystemEvents) != 1 || f.SystemEvents[0].Event != "STARTUP" {
		t.Fatalf("unexpected system events: %+v", f.SystemEvents)
	}
	if !f.SystemEvents[0].Retained {
		t.Error("expected Retained=true to be recorded")
	}

	f.PublishSystemError = errors.New("broker down")
	if err := f.PublishSystem(event); err == nil {
		t.Error("expected error")
	}
}

func TestFakePublisherPreservesEventOrder(t *testing.T) {
	f := NewFakePublisher()
	kinds := []keypad.EventKind{
		keypad.EventPressed,
		keypad.EventLongPressed,
		keypad.EventLongReleased,
		keypad.EventPressed,
		keypad.EventReleased,
	}
	for _, k := range kinds {
		f.Publish(KeyEvent{Timestamp: time.Now(), Kind: k, Key: 1})
	}

	for i, k := range kinds {
		if f.Events[i].Kind != k {
			t.Errorf("event %d: expected %s, got %s", i, k, f.Events[i].Kind)
		}
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(KeyEvent{Timestamp: time.Now(), Kind: keypad.EventPressed, Key: 1})
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"})
	f.Close()
	f.Connected = true

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 {
		t.Error("expected key events cleared")
	}
	if len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("expected system events cleared")
	}
	if f.Closed || f.Connected {
		t.Error("expected Closed and Connected reset")
	}
}
