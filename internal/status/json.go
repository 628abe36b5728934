package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Key           KeyJSON        `json:"key"`
	LastEvent     *LastEventJSON `json:"last_event,omitempty"`
	Stopwatch     StopwatchJSON  `json:"stopwatch"`
	ReadErrors    int            `json:"read_errors"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// KeyJSON is the committed key state. Key 0 means no key is held.
type KeyJSON struct {
	Key    int    `json:"key"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
}

// LastEventJSON is the most recent key event.
type LastEventJSON struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Key       int    `json:"key"`
	Name      string `json:"name,omitempty"`
	Action    string `json:"action,omitempty"`
}

// StopwatchJSON is the stopwatch state in milliseconds.
type StopwatchJSON struct {
	Running   bool    `json:"running"`
	CurrentMs int64   `json:"current_ms"`
	Lap       int     `json:"lap"`
	LapsMs    []int64 `json:"laps_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Pressed      int `json:"pressed"`
	Released     int `json:"released"`
	LongPressed  int `json:"long_pressed"`
	LongReleased int `json:"long_released"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs          int64    `json:"tick_ms"`
	LongPressMs     int64    `json:"long_press_ms"`
	DebounceMs      int64    `json:"debounce_ms"`
	CheckIntervalMs int64    `json:"check_interval_ms"`
	HeartbeatMs     int64    `json:"heartbeat_ms"`
	Broker          string   `json:"broker"`
	HTTPAddr        string   `json:"http_addr"`
	ADC             string   `json:"adc"`
	Keys            []string `json:"keys"`
}

func buildInner(snap Snapshot) StatusInner {
	laps := make([]int64, len(snap.Stopwatch.Laps))
	for i, l := range snap.Stopwatch.Laps {
		laps[i] = l.Milliseconds()
	}
	keys := snap.Config.Keys
	if keys == nil {
		keys = []string{}
	}

	inner := StatusInner{
		Key: KeyJSON{
			Key:    int(snap.Key),
			Name:   snap.KeyName(snap.Key),
			Status: snap.KeyStatus.String(),
		},
		Stopwatch: StopwatchJSON{
			Running:   snap.Stopwatch.Running,
			CurrentMs: snap.Stopwatch.Current.Milliseconds(),
			Lap:       snap.Stopwatch.Lap,
			LapsMs:    laps,
		},
		ReadErrors:    snap.ReadErrors,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Pressed:      snap.Counts.Pressed,
			Released:     snap.Counts.Released,
			LongPressed:  snap.Counts.LongPressed,
			LongReleased: snap.Counts.LongReleased,
		},
		Config: ConfigJSON{
			TickMs:          snap.Config.TickMs,
			LongPressMs:     snap.Config.LongPressMs,
			DebounceMs:      snap.Config.DebounceMs,
			CheckIntervalMs: snap.Config.CheckIntervalMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
			ADC:             snap.Config.ADC,
			Keys:            keys,
		},
	}

	if snap.Last != nil {
		inner.LastEvent = &LastEventJSON{
			Timestamp: snap.Last.At.UTC().Format(time.RFC3339Nano),
			Event:     snap.Last.Kind.String(),
			Key:       int(snap.Last.Key),
			Name:      snap.Last.Name,
			Action:    snap.Last.Action,
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

