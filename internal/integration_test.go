package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/keypad-sensor/internal/adc"
	"github.com/sweeney/keypad-sensor/internal/chrono"
	"github.com/sweeney/keypad-sensor/internal/keypad"
	"github.com/sweeney/keypad-sensor/internal/mqtt"
	"github.com/sweeney/keypad-sensor/internal/status"
	"github.com/sweeney/keypad-sensor/internal/stopwatch"
	"github.com/sweeney/keypad-sensor/internal/web"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const pollInterval = 100 * time.Millisecond

// newPipeline builds a decoder over reader that samples on every poll:
// no debounce, one sample per pollInterval and a 250ms long press.
func newPipeline(t *testing.T, reader keypad.Source) *keypad.Decoder {
	t.Helper()
	cfg := keypad.DefaultConfig(0, 512, 682)
	cfg.Debounce = 0
	cfg.CheckInterval = pollInterval
	cfg.LongPress = 250 * time.Millisecond
	decoder, err := keypad.New(reader, cfg, startTime)
	if err != nil {
		t.Fatalf("keypad.New: %v", err)
	}
	return decoder
}

// TestIntegrationFullFlow tests the complete flow from ADC to MQTT using fakes.
func TestIntegrationFullFlow(t *testing.T) {
	// Simulate: start -> lap -> reset held long
	samples := []int{
		1023, // t=0
		0,    // t=100ms     key 1 PRESSED (START)
		1023, // t=200ms     key 1 RELEASED
		1023, // t=300ms
		512,  // t=400ms     key 2 PRESSED (LAP)
		1023, // t=500ms     key 2 RELEASED
		682,  // t=600ms     key 3 PRESSED (ABORT)
		682,  // t=700ms
		682,  // t=800ms
		682,  // t=900ms     key 3 LONG_PRESSED (RESET)
		682,  // t=1000ms
		1023, // t=1100ms    key 3 LONG_RELEASED
		1023, // t=1200ms
	}

	reader := adc.NewFakeReader(samples)
	publisher := mqtt.NewFakePublisher()
	publisher.Encoding = mqtt.EncodingCBOR
	names := []string{"start", "lap", "reset"}
	tracker := status.NewTracker(startTime, status.Config{Keys: names})
	decoder := newPipeline(t, reader)
	sw := stopwatch.New(stopwatch.MaxLaps)
	ctl := chrono.New(chrono.Roles{Start: 1, Lap: 2, Reset: 3}, sw)

	var frames [][]byte

	// Simulate the main loop
	for i := range samples {
		now := startTime.Add(time.Duration(i) * pollInterval)
		ev := decoder.Poll(now)
		if !ev.IsNone() {
			action := ctl.Handle(ev, now)
			name := tracker.Snapshot().KeyName(ev.Key)
			if err := publisher.Publish(mqtt.KeyEvent{
				Timestamp: now,
				Kind:      ev.Kind,
				Key:       ev.Key,
				Name:      name,
				Action:    string(action),
			}); err != nil {
				t.Fatalf("sample %d: publish error: %v", i, err)
			}
			last := status.LastEvent{At: now, Kind: ev.Kind, Key: ev.Key, Name: name, Action: string(action)}
			tracker.RecordEvent(last)
			frame, err := web.FormatKeyEvent(last)
			if err != nil {
				t.Fatalf("sample %d: format frame: %v", i, err)
			}
			frames = append(frames, frame)
		}
		key, st := decoder.Saved()
		tracker.Update(key, st, decoder.ReadErrors())
	}

	if reader.Reads != len(samples) {
		t.Errorf("expected %d reads, got %d", len(samples), reader.Reads)
	}

	want := []struct {
		event  string
		key    int
		code   int
		action string
		at     time.Duration
	}{
		{"PRESSED", 1, 0x11, "START", 100 * time.Millisecond},
		{"RELEASED", 1, 0x21, "", 200 * time.Millisecond},
		{"PRESSED", 2, 0x12, "LAP", 400 * time.Millisecond},
		{"RELEASED", 2, 0x22, "", 500 * time.Millisecond},
		{"PRESSED", 3, 0x13, "ABORT", 600 * time.Millisecond},
		{"LONG_PRESSED", 3, 0x33, "RESET", 900 * time.Millisecond},
		{"LONG_RELEASED", 3, 0x43, "", 1100 * time.Millisecond},
	}

	if len(publisher.Payloads) != len(want) {
		t.Fatalf("expected %d payloads, got %d", len(want), len(publisher.Payloads))
	}
	for i, w := range want {
		p, err := mqtt.DecodePayload(publisher.Payloads[i], mqtt.EncodingCBOR)
		if err != nil {
			t.Fatalf("payload %d: invalid CBOR: %v", i, err)
		}
		got := p.Keypad
		if got.Event != w.event || got.Key != w.key || got.Code != w.code || got.Action != w.action {
			t.Errorf("payload %d: got %s key=%d code=%#x action=%q, want %s key=%d code=%#x action=%q",
				i, got.Event, got.Key, got.Code, got.Action, w.event, w.key, w.code, w.action)
		}
		if got.Name != names[w.key-1] {
			t.Errorf("payload %d: name got %q, want %q", i, got.Name, names[w.key-1])
		}
		wantTS := startTime.Add(w.at).Format(time.RFC3339Nano)
		if got.Timestamp != wantTS {
			t.Errorf("payload %d: timestamp got %q, want %q", i, got.Timestamp, wantTS)
		}
	}

	// Reset cleared the lap recorded before the abort
	if sw.Running() || sw.LapTime(0) != 0 {
		t.Errorf("expected stopwatch reset, running=%v lap0=%v", sw.Running(), sw.LapTime(0))
	}

	// Status JSON reflects the run
	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(tracker.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if sj.Status.Counts.Pressed != 3 || sj.Status.Counts.LongPressed != 1 {
		t.Errorf("unexpected counts: %+v", sj.Status.Counts)
	}
	if sj.Status.Key.Key != 0 {
		t.Errorf("expected no key held at end, got %d", sj.Status.Key.Key)
	}
	if sj.Status.LastEvent == nil || sj.Status.LastEvent.Event != "LONG_RELEASED" {
		t.Errorf("unexpected last event: %+v", sj.Status.LastEvent)
	}

	// Live frames carry the same packed codes
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(frames))
	}
	var env web.Envelope
	if err := json.Unmarshal(frames[5], &env); err != nil {
		t.Fatalf("invalid frame: %v", err)
	}
	var data web.KeyEventData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("invalid frame data: %v", err)
	}
	if data.Code != 0x33 || data.Action != "RESET" {
		t.Errorf("unexpected frame: %s", frames[5])
	}
}

// TestIntegrationADCErrorRecovery tests that read errors are counted and the
// decoder keeps its last observation until reads recover.
func TestIntegrationADCErrorRecovery(t *testing.T) {
	reader := adc.NewFakeReader([]int{0})
	publisher := mqtt.NewFakePublisher()
	decoder := newPipeline(t, reader)

	poll := func(i int) {
		now := startTime.Add(time.Duration(i) * pollInterval)
		if ev := decoder.Poll(now); !ev.IsNone() {
			if err := publisher.Publish(mqtt.KeyEvent{Timestamp: now, Kind: ev.Kind, Key: ev.Key}); err != nil {
				t.Fatalf("poll %d: publish error: %v", i, err)
			}
		}
	}

	poll(0) // PRESSED key 1

	// The ADC fails while the key is held
	reader.ReadError = errors.New("adc fault")
	poll(1)
	poll(2)
	poll(3) // LONG_PRESSED on the held observation

	if decoder.ReadErrors() != 3 {
		t.Errorf("expected 3 read errors, got %d", decoder.ReadErrors())
	}
	if key, st := decoder.Saved(); key != 1 || st != keypad.StatusLongReported {
		t.Errorf("expected key 1 held long through errors, got %d/%s", key, st)
	}

	// Recover with the key released
	reader.ReadError = nil
	reader.Samples = []int{1023}
	reader.Reset()
	poll(4)

	wantKinds := []keypad.EventKind{keypad.EventPressed, keypad.EventLongPressed, keypad.EventLongReleased}
	if len(publisher.Events) != len(wantKinds) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantKinds), len(publisher.Events), publisher.Events)
	}
	for i, k := range wantKinds {
		if publisher.Events[i].Kind != k || publisher.Events[i].Key != 1 {
			t.Errorf("event %d: got %s key=%d, want %s key=1", i, publisher.Events[i].Kind, publisher.Events[i].Key, k)
		}
	}
}

// TestIntegrationPublishFailure tests that publish errors don't stop decoding.
func TestIntegrationPublishFailure(t *testing.T) {
	reader := adc.NewFakeReader([]int{1023, 512, 1023, 512})
	publisher := mqtt.NewFakePublisher()
	publisher.PublishError = errors.New("broker unavailable")
	decoder := newPipeline(t, reader)

	var failures int
	for i := 0; i < 4; i++ {
		now := startTime.Add(time.Duration(i) * pollInterval)
		if ev := decoder.Poll(now); !ev.IsNone() {
			if err := publisher.Publish(mqtt.KeyEvent{Timestamp: now, Kind: ev.Kind, Key: ev.Key}); err != nil {
				failures++
			}
		}
	}

	if failures != 3 {
		t.Errorf("expected 3 failed publishes (press, release, press), got %d", failures)
	}
	if key, st := decoder.Saved(); key != 2 || st != keypad.StatusActive {
		t.Errorf("expected key 2 active, got %d/%s", key, st)
	}
}
