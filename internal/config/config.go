// Package config loads the keypad-sensor YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/keypad-sensor/internal/adc"
	"github.com/sweeney/keypad-sensor/internal/chrono"
	"github.com/sweeney/keypad-sensor/internal/keypad"
	"github.com/sweeney/keypad-sensor/internal/mqtt"
	"github.com/sweeney/keypad-sensor/internal/stopwatch"
)

// Config is the top-level YAML configuration.
type Config struct {
	Keypad KeypadConfig `yaml:"keypad"`
	ADC    ADCConfig    `yaml:"adc"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	LED    LEDConfig    `yaml:"led"`
	Chrono ChronoConfig `yaml:"chrono"`
}

// KeyConfig is one physical key: its name and the raw reading it produces.
type KeyConfig struct {
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

type KeypadConfig struct {
	Keys            []KeyConfig `yaml:"keys"`
	MaxRaw          int         `yaml:"max_raw"`
	MinSeparation   int         `yaml:"min_separation"`
	LongPressMS     int         `yaml:"long_press_ms"`
	DebounceMS      int         `yaml:"debounce_ms"`
	CheckIntervalMS int         `yaml:"check_interval_ms"`
	TickMS          int         `yaml:"tick_ms"`
}

type ADCConfig struct {
	// Source is an adc.Open spec, e.g. "iio:/sys/.../in_voltage0_raw@4095"
	// or "serial:/dev/ttyACM0@115200".
	Source string `yaml:"source"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Payload     string `yaml:"payload"` // json or cbor
	HeartbeatMS int    `yaml:"heartbeat_ms"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the status server
	WS   bool   `yaml:"ws"`
}

type LEDConfig struct {
	Pin int `yaml:"pin"` // BCM line offset, negative disables
}

// ChronoConfig binds stopwatch roles to key names.
type ChronoConfig struct {
	Laps  int    `yaml:"laps"`
	Start string `yaml:"start"`
	Lap   string `yaml:"lap"`
	Reset string `yaml:"reset"`
}

// Default returns a fully-populated Config for a three key ladder of
// 10K resistors on a 10-bit converter.
func Default() Config {
	return Config{
		Keypad: KeypadConfig{
			Keys: []KeyConfig{
				{Name: "start", Value: 0},
				{Name: "lap", Value: 512},
				{Name: "reset", Value: 682},
			},
			MaxRaw:          keypad.DefaultMaxRaw,
			LongPressMS:     int(keypad.DefaultLongPress / time.Millisecond),
			DebounceMS:      int(keypad.DefaultDebounce / time.Millisecond),
			CheckIntervalMS: int(keypad.DefaultCheckInterval / time.Millisecond),
			TickMS:          1,
		},
		ADC: ADCConfig{
			Source: "iio:" + adc.DefaultIIOPath,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://192.168.1.200:1883",
			Payload:     string(mqtt.EncodingJSON),
			HeartbeatMS: int((15 * time.Minute) / time.Millisecond),
		},
		HTTP: HTTPConfig{
			Addr: ":80",
			WS:   true,
		},
		LED: LEDConfig{
			Pin: -1,
		},
		Chrono: ChronoConfig{
			Laps:  stopwatch.MaxLaps,
			Start: "start",
			Lap:   "lap",
			Reset: "reset",
		},
	}
}

// Load reads a YAML file over the defaults. Unknown fields are rejected.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults.
func Parse(b []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}
	return cfg, nil
}

// Validate checks the settings the decoder does not. Keypad table checks
// (spacing, range) happen in keypad.New.
func (c *Config) Validate() error {
	if len(c.Keypad.Keys) == 0 {
		return errors.New("keypad.keys must not be empty")
	}
	seen := make(map[string]bool, len(c.Keypad.Keys))
	for i, k := range c.Keypad.Keys {
		if k.Name == "" {
			return fmt.Errorf("keypad.keys[%d].name is empty", i)
		}
		if seen[k.Name] {
			return fmt.Errorf("keypad.keys[%d]: duplicate name %q", i, k.Name)
		}
		seen[k.Name] = true
	}
	if c.Keypad.MaxRaw <= 0 {
		return errors.New("keypad.max_raw must be > 0")
	}
	if c.Keypad.LongPressMS < 0 || c.Keypad.DebounceMS < 0 || c.Keypad.CheckIntervalMS < 0 {
		return errors.New("keypad timings must be >= 0")
	}
	if c.Keypad.TickMS <= 0 {
		return errors.New("keypad.tick_ms must be > 0")
	}
	if c.ADC.Source == "" {
		return errors.New("adc.source must not be empty")
	}
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker must not be empty")
	}
	if _, err := mqtt.ParseEncoding(c.MQTT.Payload); err != nil {
		return fmt.Errorf("mqtt.payload: %w", err)
	}
	if c.MQTT.HeartbeatMS < 0 {
		return errors.New("mqtt.heartbeat_ms must be >= 0")
	}
	if c.Chrono.Laps < 1 || c.Chrono.Laps > stopwatch.MaxLaps {
		return fmt.Errorf("chrono.laps must be between 1 and %d", stopwatch.MaxLaps)
	}
	for role, name := range map[string]string{"start": c.Chrono.Start, "lap": c.Chrono.Lap, "reset": c.Chrono.Reset} {
		if name != "" && !seen[name] {
			return fmt.Errorf("chrono.%s: unknown key %q", role, name)
		}
	}
	return nil
}

// KeypadConfig converts the file settings to the decoder configuration.
func (c *Config) KeypadConfig() keypad.Config {
	values := make([]int, len(c.Keypad.Keys))
	for i, k := range c.Keypad.Keys {
		values[i] = k.Value
	}
	return keypad.Config{
		Values:        values,
		MaxRaw:        c.Keypad.MaxRaw,
		MinSeparation: c.Keypad.MinSeparation,
		LongPress:     ms(c.Keypad.LongPressMS),
		Debounce:      ms(c.Keypad.DebounceMS),
		CheckInterval: ms(c.Keypad.CheckIntervalMS),
	}
}

// KeyNames returns the key names, key 1 first.
func (c *Config) KeyNames() []string {
	names := make([]string, len(c.Keypad.Keys))
	for i, k := range c.Keypad.Keys {
		names[i] = k.Name
	}
	return names
}

// Key returns the key with the given name, or NoKey.
func (c *Config) Key(name string) keypad.Key {
	if name == "" {
		return keypad.NoKey
	}
	for i, k := range c.Keypad.Keys {
		if k.Name == name {
			return keypad.Key(i + 1)
		}
	}
	return keypad.NoKey
}

// Roles resolves the chrono role names to keys.
func (c *Config) Roles() chrono.Roles {
	return chrono.Roles{
		Start: c.Key(c.Chrono.Start),
		Lap:   c.Key(c.Chrono.Lap),
		Reset: c.Key(c.Chrono.Reset),
	}
}

func (c *Config) Tick() time.Duration      { return ms(c.Keypad.TickMS) }
func (c *Config) Heartbeat() time.Duration { return ms(c.MQTT.HeartbeatMS) }

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
