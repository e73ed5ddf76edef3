// Package frameclock measures frame-to-frame wall time for a host loop.
//
// A Clock is sampled once per frame with Signal. It reports the delta since
// the previous sample, a frames-per-second estimate refreshed once per
// second of clock time, and a pacing delay that steers the loop toward a
// target frame rate.
package frameclock

import (
	"sync"
	"time"
)

type Option func(*Clock)

// WithNow replaces the wall-clock source. Tests use it to drive the clock by
// hand.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		if now != nil {
			c.now = now
		}
	}
}

type Clock struct {
	now func() time.Time

	mu      sync.Mutex
	running bool
	started time.Time     // when the current running span began
	banked  time.Duration // running time accumulated before the current span
	last    time.Duration // running time at the previous Signal
	delta   time.Duration

	window    time.Duration // time since the last FPS rollover
	frames    int
	fps       int
	total     uint64
	prevDelay time.Duration
}

func New(opts ...Option) *Clock {
	c := &Clock{now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start begins (or resumes) measuring. Time spent stopped is not counted.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.started = c.now()
}

// Stop pauses measuring. Signal and Delay are no-ops until Start.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.banked += c.now().Sub(c.started)
	c.running = false
}

// Reset zeroes the measured time, the delta, the FPS window and the pacing
// state. A running clock keeps running from the moment of the reset.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banked = 0
	c.last = 0
	c.delta = 0
	c.window = 0
	c.frames = 0
	c.fps = 0
	c.prevDelay = 0
	if c.running {
		c.started = c.now()
	}
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Signal marks the start of a frame: it computes the delta since the
// previous Signal and updates the FPS estimate. It returns the new delta.
func (c *Clock) Signal() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return c.delta
	}

	cur := c.banked + c.now().Sub(c.started)
	c.delta = cur - c.last
	c.last = cur

	c.window += c.delta
	if c.window >= time.Second {
		c.window -= time.Second
		c.fps = c.frames
		c.frames = 0
	}
	c.frames++
	c.total++
	return c.delta
}

// DeltaTime is the delta computed by the most recent Signal.
func (c *Clock) DeltaTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delta
}

// FPS is the number of frames counted in the last complete second.
func (c *Clock) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// Frames is the total number of Signals observed while running.
func (c *Clock) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Delay returns how long the host loop should sleep after this frame to hold
// targetFPS. It feeds back the previous delay, so a frame that ran long is
// compensated by a shorter sleep. The result is whole milliseconds and never
// negative. It returns 0 when the clock is stopped or targetFPS <= 0.
func (c *Clock) Delay(targetFPS float64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !(targetFPS > 0) || !c.running {
		return 0
	}

	desired := time.Duration(float64(time.Second) / targetFPS)
	next := (c.prevDelay + desired - c.delta).Truncate(time.Millisecond)
	if next < 0 {
		next = 0
	}
	c.prevDelay = next
	return next
}
