// Package keypad decodes a resistor-ladder analog keypad into debounced,
// timed key events.
// This package has NO hardware, network or OS dependencies.
// Time is always injected via time.Time parameters.
package keypad

import (
	"fmt"
	"time"
)

// Key identifies a physical key. NoKey (0) means nothing is pressed;
// 1..N are the keys in the order their reference values were configured.
type Key uint8

// NoKey is the reserved table slot for "no key pressed".
const NoKey Key = 0

// MaxKeys is the largest key count that fits the packed event encoding.
const MaxKeys = 15

// EventKind is the kind of a decoded key event.
type EventKind uint8

const (
	EventNone         EventKind = 0
	EventPressed      EventKind = 1
	EventReleased     EventKind = 2
	EventLongPressed  EventKind = 3
	EventLongReleased EventKind = 4
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "NONE"
	case EventPressed:
		return "PRESSED"
	case EventReleased:
		return "RELEASED"
	case EventLongPressed:
		return "LONG_PRESSED"
	case EventLongReleased:
		return "LONG_RELEASED"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is the result of a single poll.
type Event struct {
	Kind EventKind
	Key  Key
}

// IsNone reports whether the poll produced no event.
func (e Event) IsNone() bool {
	return e.Kind == EventNone
}

// Code returns the packed single-byte encoding of the event.
func (e Event) Code() Code {
	return Pack(e.Kind, e.Key)
}

func (e Event) String() string {
	return fmt.Sprintf("%s key=%d", e.Kind, e.Key)
}

// Status is the committed belief about the key being processed.
type Status uint8

const (
	StatusInactive Status = iota
	StatusActive
	// StatusLongReported means the key is still down and LONG_PRESSED was
	// already emitted for it.
	StatusLongReported
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "INACTIVE"
	case StatusActive:
		return "ACTIVE"
	case StatusLongReported:
		return "LONG"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Source provides raw analog samples.
type Source interface {
	// ReadRaw returns one reading in the range 0..Config.MaxRaw.
	ReadRaw() (int, error)
}

// Default timing and range parameters.
const (
	DefaultLongPress     = 900 * time.Millisecond
	DefaultDebounce      = 30 * time.Millisecond
	DefaultCheckInterval = 5 * time.Millisecond
	DefaultMaxRaw        = 1023
)

// Config is fixed at construction.
type Config struct {
	// Values holds the reference reading of each key, key 1 first.
	Values []int
	// MaxRaw is the highest reading the source produces. It is also the
	// reference value of the "no key" slot.
	MaxRaw int
	// MinSeparation is the smallest allowed distance between any two
	// reference values, the "no key" slot included. Values below 1 mean 1.
	MinSeparation int

	LongPress     time.Duration
	Debounce      time.Duration
	CheckInterval time.Duration
}

// DefaultConfig returns a Config with the default timings for the given
// reference values.
func DefaultConfig(values ...int) Config {
	return Config{
		Values:        values,
		MaxRaw:        DefaultMaxRaw,
		LongPress:     DefaultLongPress,
		Debounce:      DefaultDebounce,
		CheckInterval: DefaultCheckInterval,
	}
}

// observation is the latest sample register.
type observation struct {
	key    Key
	active bool
}

// committed is the saved register.
type committed struct {
	key    Key
	status Status
}

// state is all mutable decoder state.
type state struct {
	current        observation
	saved          committed
	pressedAt      time.Time
	lastActivityAt time.Time
	nextSampleDue  time.Time
}
