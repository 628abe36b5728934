// Package chrono drives a stopwatch from decoded keypad events.
package chrono

import (
	"time"

	"github.com/sweeney/keypad-sensor/internal/keypad"
	"github.com/sweeney/keypad-sensor/internal/stopwatch"
)

// Action is the stopwatch operation triggered by an event.
type Action string

const (
	ActionNone  Action = ""
	ActionStart Action = "START"
	ActionStop  Action = "STOP"
	ActionLap   Action = "LAP"
	ActionAbort Action = "ABORT"
	ActionReset Action = "RESET"
)

// Roles assigns keys to stopwatch functions. NoKey leaves a role unbound.
type Roles struct {
	Start keypad.Key
	Lap   keypad.Key
	Reset keypad.Key
}

// Controller applies key events to a stopwatch.
// Not safe for concurrent use.
type Controller struct {
	roles Roles
	sw    *stopwatch.Stopwatch
}

// New returns a Controller around sw.
func New(roles Roles, sw *stopwatch.Stopwatch) *Controller {
	return &Controller{roles: roles, sw: sw}
}

// Stopwatch returns the controlled stopwatch.
func (c *Controller) Stopwatch() *stopwatch.Stopwatch {
	return c.sw
}

// Handle applies ev at time now and returns what was done.
//
//	start: press toggles start/stop
//	lap:   press records a lap while running
//	reset: press aborts while running, long-press resets
func (c *Controller) Handle(ev keypad.Event, now time.Time) Action {
	if ev.Key == keypad.NoKey {
		return ActionNone
	}

	switch ev.Kind {
	case keypad.EventPressed:
		switch ev.Key {
		case c.roles.Start:
			if c.sw.Running() {
				c.sw.Stop(now)
				return ActionStop
			}
			c.sw.Start(now)
			return ActionStart
		case c.roles.Lap:
			if c.sw.Running() {
				c.sw.Lap(now)
				return ActionLap
			}
		case c.roles.Reset:
			if c.sw.Running() {
				c.sw.Abort()
				return ActionAbort
			}
		}
	case keypad.EventLongPressed:
		if ev.Key == c.roles.Reset {
			c.sw.Reset()
			return ActionReset
		}
	}
	return ActionNone
}
