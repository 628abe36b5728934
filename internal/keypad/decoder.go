package keypad

import (
	"errors"
	"fmt"
	"time"
)

// Construction errors.
var (
	ErrNilSource   = errors.New("keypad: nil source")
	ErrNoKeys      = errors.New("keypad: no keys configured")
	ErrTooManyKeys = errors.New("keypad: too many keys")
	ErrValueRange  = errors.New("keypad: reference value out of range")
	ErrAmbiguous   = errors.New("keypad: reference values too close")
	ErrTiming      = errors.New("keypad: invalid timing")
)

// Decoder turns raw samples into debounced key events.
// Not safe for concurrent use.
type Decoder struct {
	src        Source
	cfg        Config
	table      []int // table[0] is the "no key" slot
	st         state
	readErrors int
}

// New validates cfg, builds the lookup table and returns a cleared decoder
// whose clock origin is now.
func New(src Source, cfg Config, now time.Time) (*Decoder, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	table, err := buildTable(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Values = append([]int(nil), cfg.Values...)
	d := &Decoder{
		src:   src,
		cfg:   cfg,
		table: table,
	}
	d.Clear(now)
	return d, nil
}

func buildTable(cfg Config) ([]int, error) {
	n := len(cfg.Values)
	if n == 0 {
		return nil, ErrNoKeys
	}
	if n > MaxKeys {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyKeys, n, MaxKeys)
	}
	if cfg.MaxRaw <= 0 {
		return nil, fmt.Errorf("%w: max raw %d", ErrValueRange, cfg.MaxRaw)
	}
	if cfg.LongPress < 0 || cfg.Debounce < 0 || cfg.CheckInterval < 0 {
		return nil, fmt.Errorf("%w: long-press=%v debounce=%v check=%v",
			ErrTiming, cfg.LongPress, cfg.Debounce, cfg.CheckInterval)
	}

	table := make([]int, n+1)
	table[0] = cfg.MaxRaw
	for i, v := range cfg.Values {
		if v < 0 || v > cfg.MaxRaw {
			return nil, fmt.Errorf("%w: key %d value %d not in 0..%d", ErrValueRange, i+1, v, cfg.MaxRaw)
		}
		table[i+1] = v
	}

	sep := cfg.MinSeparation
	if sep < 1 {
		sep = 1
	}
	for i := range table {
		for j := i + 1; j < len(table); j++ {
			if abs(table[i]-table[j]) < sep {
				return nil, fmt.Errorf("%w: slot %d (%d) and slot %d (%d), need %d apart",
					ErrAmbiguous, i, table[i], j, table[j], sep)
			}
		}
	}
	return table, nil
}

// Clear resets the decoder to the idle state and restarts the clock origin
// at now.
func (d *Decoder) Clear(now time.Time) {
	d.st = state{
		pressedAt:      now,
		lastActivityAt: now,
		nextSampleDue:  now,
	}
}

// Classify returns the key whose reference value is nearest to raw.
// Ties go to the lowest index.
func (d *Decoder) Classify(raw int) Key {
	best := 0
	bestDiff := abs(d.table[0] - raw)
	for i := 1; i < len(d.table); i++ {
		if diff := abs(d.table[i] - raw); diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return Key(best)
}

// PressedKey reads one sample and classifies it without touching decoder
// state.
func (d *Decoder) PressedKey() (Key, error) {
	raw, err := d.src.ReadRaw()
	if err != nil {
		return NoKey, fmt.Errorf("read raw: %w", err)
	}
	return d.Classify(raw), nil
}

// Poll runs one step of the state machine. It returns the zero Event when
// called before the check interval has elapsed or when nothing changed.
func (d *Decoder) Poll(now time.Time) Event {
	if now.Before(d.st.nextSampleDue) {
		return Event{}
	}
	d.st.nextSampleDue = now.Add(d.cfg.CheckInterval)

	if d.quiet(now) {
		d.sample()
	}

	held := now.Sub(d.st.pressedAt) > d.cfg.LongPress
	cur := d.st.current
	next, kind := transition(d.st.saved.status, cur.active, held)

	switch kind {
	case EventPressed:
		d.st.saved.key = cur.key
		d.st.pressedAt = now
		d.st.lastActivityAt = now
	case EventNone:
		if d.st.saved.status == StatusActive && cur.active {
			// Still waiting for the long-press threshold.
			d.st.lastActivityAt = now
		}
	default:
		d.st.lastActivityAt = now
	}

	ev := Event{Kind: kind}
	if kind != EventNone {
		ev.Key = d.st.saved.key
	}
	if kind == EventReleased || kind == EventLongReleased {
		d.st.saved.key = NoKey
	}
	d.st.saved.status = next
	return ev
}

// quiet reports whether the debounce window around the latest observation
// has elapsed, so a new sample can be trusted.
func (d *Decoder) quiet(now time.Time) bool {
	if d.st.current.active {
		return now.Sub(d.st.pressedAt) >= d.cfg.Debounce
	}
	return now.Sub(d.st.lastActivityAt) >= d.cfg.Debounce
}

func (d *Decoder) sample() {
	raw, err := d.src.ReadRaw()
	if err != nil {
		d.readErrors++
		return
	}
	k := d.Classify(raw)
	d.st.current = observation{key: k, active: k != NoKey}
}

// transition maps the committed status and the latest observation to the
// next committed status and the event to emit. held reports whether the
// current press has outlasted the long-press threshold.
func transition(saved Status, active, held bool) (Status, EventKind) {
	switch saved {
	case StatusInactive:
		if active {
			return StatusActive, EventPressed
		}
	case StatusActive:
		if !active {
			return StatusInactive, EventReleased
		}
		if held {
			return StatusLongReported, EventLongPressed
		}
	case StatusLongReported:
		if !active {
			return StatusInactive, EventLongReleased
		}
	}
	return saved, EventNone
}

// Saved returns the committed key and status.
func (d *Decoder) Saved() (Key, Status) {
	return d.st.saved.key, d.st.saved.status
}

// ReadErrors returns how many samples failed since construction.
func (d *Decoder) ReadErrors() int {
	return d.readErrors
}

// Keys returns the number of physical keys.
func (d *Decoder) Keys() int {
	return len(d.table) - 1
}

// Table returns a copy of the lookup table, slot 0 included.
func (d *Decoder) Table() []int {
	return append([]int(nil), d.table...)
}

// Config returns the decoder configuration.
func (d *Decoder) Config() Config {
	cfg := d.cfg
	cfg.Values = append([]int(nil), d.cfg.Values...)
	return cfg
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
