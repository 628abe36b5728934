// Package stopwatch implements a lap timer. Time is injected on every call.
package stopwatch

import "time"

// MaxLaps is the hard limit on stored laps.
const MaxLaps = 10

// Stopwatch measures up to a fixed number of laps.
// Not safe for concurrent use.
type Stopwatch struct {
	laps    []time.Duration
	current int
	start   time.Time
	running bool
}

// New returns a reset stopwatch holding n laps, clamped to 1..MaxLaps.
func New(n int) *Stopwatch {
	if n > MaxLaps {
		n = MaxLaps
	} else if n < 1 {
		n = 1
	}
	return &Stopwatch{laps: make([]time.Duration, n)}
}

// Start starts a reset stopwatch or resumes a stopped one, continuing the
// current lap where it was left. No-op if already running.
func (s *Stopwatch) Start(now time.Time) {
	if s.running {
		return
	}
	s.start = now.Add(-s.laps[s.current])
	s.running = true
}

// Lap stores the current lap and starts timing the next. When the last lap
// slot is filled the stopwatch stops. No-op if not running.
func (s *Stopwatch) Lap(now time.Time) {
	if !s.running {
		return
	}
	s.laps[s.current] = now.Sub(s.start)
	s.start = now
	s.current++
	if s.current >= len(s.laps) {
		s.running = false
		s.current = len(s.laps) - 1
	}
}

// Stop stores the current lap and stops. No-op if not running.
func (s *Stopwatch) Stop(now time.Time) {
	if !s.running {
		return
	}
	s.laps[s.current] = now.Sub(s.start)
	s.running = false
	s.start = time.Time{}
}

// Abort stops without storing progress made since the last Start.
func (s *Stopwatch) Abort() {
	if !s.running {
		return
	}
	s.running = false
	s.start = time.Time{}
}

// Reset stops and clears all laps.
func (s *Stopwatch) Reset() {
	s.running = false
	s.start = time.Time{}
	s.current = 0
	for i := range s.laps {
		s.laps[i] = 0
	}
}

// Running reports whether the stopwatch is counting.
func (s *Stopwatch) Running() bool {
	return s.running
}

// CurrentLap returns the index of the lap being timed.
func (s *Stopwatch) CurrentLap() int {
	return s.current
}

// LapTime returns the stored time of lap i, or 0 if i is out of range.
func (s *Stopwatch) LapTime(i int) time.Duration {
	if i < 0 || i >= len(s.laps) {
		return 0
	}
	return s.laps[i]
}

// PreviousLapTime returns the lap before the current one. On the first
// lap it wraps around to the last slot.
func (s *Stopwatch) PreviousLapTime() time.Duration {
	if s.current > 0 {
		return s.LapTime(s.current - 1)
	}
	return s.LapTime(len(s.laps) - 1)
}

// Time returns the running time of the current lap, or its stored time
// when stopped.
func (s *Stopwatch) Time(now time.Time) time.Duration {
	if s.running {
		return now.Sub(s.start)
	}
	return s.LapTime(s.current)
}

// Laps returns a copy of all lap slots.
func (s *Stopwatch) Laps() []time.Duration {
	return append([]time.Duration(nil), s.laps...)
}
