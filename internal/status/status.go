// Package status provides a thread-safe status tracker for the keypad-sensor daemon.
// It is read by HTTP handlers and system event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/keypad-sensor/internal/keypad"
)

// NetworkInfo contains network state written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs          int64
	LongPressMs     int64
	DebounceMs      int64
	CheckIntervalMs int64
	HeartbeatMs     int64
	Broker          string
	HTTPAddr        string
	ADC             string
	Keys            []string // key names, key 1 first
}

// EventCounts tracks the number of each event kind since startup.
type EventCounts struct {
	Pressed      int
	Released     int
	LongPressed  int
	LongReleased int
}

// Add counts one event of the given kind.
func (c *EventCounts) Add(kind keypad.EventKind) {
	switch kind {
	case keypad.EventPressed:
		c.Pressed++
	case keypad.EventReleased:
		c.Released++
	case keypad.EventLongPressed:
		c.LongPressed++
	case keypad.EventLongReleased:
		c.LongReleased++
	}
}

// LastEvent is the most recent decoded key event.
type LastEvent struct {
	At     time.Time
	Kind   keypad.EventKind
	Key    keypad.Key
	Name   string
	Action string
}

// StopwatchView is a read-only copy of the stopwatch.
type StopwatchView struct {
	Running bool
	Current time.Duration
	Lap     int
	Laps    []time.Duration
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Key           keypad.Key
	KeyStatus     keypad.Status
	Counts        EventCounts
	Last          *LastEvent
	Stopwatch     StopwatchView
	ReadErrors    int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// KeyName returns the configured name of k, or "" if unnamed.
func (s Snapshot) KeyName(k keypad.Key) string {
	i := int(k) - 1
	if i < 0 || i >= len(s.Config.Keys) {
		return ""
	}
	return s.Config.Keys[i]
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	cfg.Keys = append([]string(nil), cfg.Keys...)
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the committed key, its status and the decoder read error count.
// Called from runLoop on every tick.
func (t *Tracker) Update(key keypad.Key, st keypad.Status, readErrors int) {
	t.mu.Lock()
	t.snap.Key = key
	t.snap.KeyStatus = st
	t.snap.ReadErrors = readErrors
	t.mu.Unlock()
}

// RecordEvent counts ev and remembers it as the last event.
func (t *Tracker) RecordEvent(ev LastEvent) {
	t.mu.Lock()
	t.snap.Counts.Add(ev.Kind)
	t.snap.Last = &ev
	t.mu.Unlock()
}

// SetStopwatch replaces the stopwatch view.
func (t *Tracker) SetStopwatch(v StopwatchView) {
	v.Laps = append([]time.Duration(nil), v.Laps...)
	t.mu.Lock()
	t.snap.Stopwatch = v
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	if s.Network != nil {
		net := *s.Network
		s.Network = &net
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
