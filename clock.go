package touchloop

import (
	"time"

	"github.com/phuslu/log"
)

// Callback is a scheduled function. For a repeating event, returning false
// unschedules it; the return value of a one-shot event is ignored.
//
// Callbacks are matched by identity in Unschedule, so implementations must
// be comparable. CallbackFunc returns a pointer and is always safe.
type Callback interface {
	Fire(dt time.Duration) bool
}

type funcCallback struct {
	fn func(dt time.Duration) bool
}

func (f *funcCallback) Fire(dt time.Duration) bool {
	return f.fn(dt)
}

// CallbackFunc wraps fn into a Callback with its own identity.
func CallbackFunc(fn func(dt time.Duration) bool) Callback {
	return &funcCallback{fn: fn}
}

// ScheduledEvent is one registration made through ScheduleOnce or
// ScheduleInterval.
type ScheduledEvent struct {
	clock    *Clock
	loop     bool
	callback Callback
	timeout  time.Duration
	lastFire time.Time
	removed  bool
}

// Cancel unschedules this event only. It is safe to call from a callback
// and more than once.
func (e *ScheduledEvent) Cancel() {
	if e.removed {
		return
	}
	e.removed = true
	e.clock.dirty = true
}

// tick fires the event if due. It reports whether the event stays scheduled.
func (e *ScheduledEvent) tick(now time.Time) bool {
	if now.Sub(e.lastFire) < e.timeout {
		return true
	}
	dt := now.Sub(e.lastFire)
	e.lastFire = now

	keep := e.callback.Fire(dt)
	if !e.loop {
		return false
	}
	return keep
}

// Clock measures frame time and runs scheduled callbacks. It is not safe for
// concurrent use; everything runs on the loop goroutine.
type Clock struct {
	now func() time.Time

	dt         time.Duration
	lastTick   time.Time
	fps        float64
	fpsCounter int
	lastFps    time.Time

	events []*ScheduledEvent
	dirty  bool
}

func NewClock() *Clock {
	return NewClockWithSource(time.Now)
}

// NewClockWithSource returns a clock reading time from now.
func NewClockWithSource(now func() time.Time) *Clock {
	c := &Clock{now: now}
	c.lastTick = now()
	return c
}

// Tick advances the clock, fires due events and returns the time elapsed
// since the previous tick.
func (c *Clock) Tick() time.Duration {
	current := c.now()
	c.dt = current.Sub(c.lastTick)
	c.fpsCounter++
	c.lastTick = current

	if c.lastFps.IsZero() {
		c.lastFps = current
	} else if elapsed := current.Sub(c.lastFps); elapsed > time.Second {
		c.fps = float64(c.fpsCounter) / elapsed.Seconds()
		c.lastFps = current
		c.fpsCounter = 0
	}

	c.processEvents()

	return c.dt
}

// FPS is the rate measured over the last full second.
func (c *Clock) FPS() float64 {
	return c.fps
}

func (c *Clock) Time() time.Time {
	return c.lastTick
}

func (c *Clock) Dt() time.Duration {
	return c.dt
}

// ScheduleOnce runs cb once, no earlier than timeout after the last tick.
func (c *Clock) ScheduleOnce(cb Callback, timeout time.Duration) *ScheduledEvent {
	return c.schedule(false, cb, timeout)
}

// ScheduleInterval runs cb every timeout until it returns false or is
// unscheduled.
func (c *Clock) ScheduleInterval(cb Callback, timeout time.Duration) *ScheduledEvent {
	return c.schedule(true, cb, timeout)
}

func (c *Clock) schedule(loop bool, cb Callback, timeout time.Duration) *ScheduledEvent {
	e := &ScheduledEvent{
		clock:    c,
		loop:     loop,
		callback: cb,
		timeout:  timeout,
		lastFire: c.lastTick,
	}
	c.events = append(c.events, e)
	return e
}

// Unschedule removes every event registered with cb.
func (c *Clock) Unschedule(cb Callback) {
	for _, e := range c.events {
		if e.callback == cb {
			e.Cancel()
		}
	}
}

func (c *Clock) Len() int {
	n := 0
	for _, e := range c.events {
		if !e.removed {
			n++
		}
	}
	return n
}

// processEvents walks the events present when the pass starts. Events added
// by callbacks wait for the next tick; events removed by callbacks are
// skipped if they have not fired yet.
func (c *Clock) processEvents() {
	pass := c.events[:len(c.events):len(c.events)]
	for _, e := range pass {
		if e.removed {
			continue
		}
		if !e.tick(c.lastTick) {
			e.removed = true
			c.dirty = true
		}
	}
	if !c.dirty {
		return
	}
	events := make([]*ScheduledEvent, 0, len(c.events))
	for _, e := range c.events {
		if !e.removed {
			events = append(events, e)
		}
	}
	log.Debug().Msgf("Clock dropped %d scheduled events", len(c.events)-len(events))
	c.events = events
	c.dirty = false
}
