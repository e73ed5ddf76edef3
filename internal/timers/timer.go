package timers

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// NoID is the id of a timer constructed without WithID.
	NoID = -1

	DefaultInterval = time.Second
)

var ErrInvalidInterval = errors.New("interval must be > 0")

// Policy decides what a timer does after it has notified its observers.
type Policy int

const (
	Repeating Policy = iota
	OneShot
)

func (p Policy) String() string {
	switch p {
	case Repeating:
		return "repeating"
	case OneShot:
		return "one-shot"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// State is a timer's position in the registry lifecycle.
type State int32

const (
	Detached State = iota
	Registered
	PendingRemoval
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Registered:
		return "registered"
	case PendingRemoval:
		return "pending-removal"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type timerOptions struct {
	id       int
	interval time.Duration
	policy   Policy
}

type TimerOption func(*timerOptions)

// WithID sets the caller's correlation key. Ids need not be unique.
func WithID(id int) TimerOption { return func(o *timerOptions) { o.id = id } }

func WithInterval(d time.Duration) TimerOption {
	return func(o *timerOptions) { o.interval = d }
}

func WithPolicy(p Policy) TimerOption { return func(o *timerOptions) { o.policy = p } }

type subscription struct {
	token Token
	fn    Observer
}

// Timer accumulates elapsed time while enabled and fires a Tick each time the
// accumulated time reaches its interval. Timers are created by a Registry and
// stay bound to it.
//
// Start, Stop, Reset and SetInterval are meant to be called by the goroutine
// that owns the timer; concurrent calls on one timer from several goroutines
// are the caller's to coordinate.
type Timer struct {
	reg    *Registry
	id     int
	policy Policy

	interval atomic.Int64 // time.Duration
	elapsed  atomic.Int64 // time.Duration; written by the registry and Reset
	enabled  atomic.Bool
	state    atomic.Int32 // State

	omu       sync.Mutex
	observers []subscription
	lastToken Token
}

func (t *Timer) ID() int                 { return t.id }
func (t *Timer) Policy() Policy          { return t.policy }
func (t *Timer) Interval() time.Duration { return time.Duration(t.interval.Load()) }
func (t *Timer) Elapsed() time.Duration  { return time.Duration(t.elapsed.Load()) }
func (t *Timer) Enabled() bool           { return t.enabled.Load() }
func (t *Timer) State() State            { return State(t.state.Load()) }

// Registry returns the registry the timer was created by.
func (t *Timer) Registry() *Registry { return t.reg }

// SetInterval changes the interval. The new value is consulted at the next
// Update; elapsed time is kept.
func (t *Timer) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidInterval, d)
	}
	t.interval.Store(int64(d))
	return nil
}

// Start enables the timer. Accrual resumes from the current elapsed time;
// call Reset first for a full period. A timer that is queued for removal or
// no longer registered stays disabled.
func (t *Timer) Start() {
	if t.State() != Registered {
		return
	}
	t.enabled.Store(true)
}

// Stop disables the timer and keeps its elapsed time.
func (t *Timer) Stop() { t.enabled.Store(false) }

func (t *Timer) Reset() { t.elapsed.Store(0) }

// Dispose asks the registry to remove the timer. It is idempotent and safe
// to call from inside an observer.
func (t *Timer) Dispose() {
	if t.reg != nil {
		t.reg.RemoveTimer(t)
	}
}

// Subscribe adds fn to the end of the observer list. Observers added while a
// tick is being dispatched first see the next tick.
func (t *Timer) Subscribe(fn Observer) Token {
	if fn == nil {
		return 0
	}
	t.omu.Lock()
	defer t.omu.Unlock()
	t.lastToken++
	t.observers = append(t.observers, subscription{token: t.lastToken, fn: fn})
	return t.lastToken
}

// Unsubscribe removes the observer registered under tok.
func (t *Timer) Unsubscribe(tok Token) bool {
	if tok == 0 {
		return false
	}
	t.omu.Lock()
	defer t.omu.Unlock()
	for i, s := range t.observers {
		if s.token != tok {
			continue
		}
		// copy-on-write: fire() may be iterating the old backing array
		next := make([]subscription, 0, len(t.observers)-1)
		next = append(next, t.observers[:i]...)
		next = append(next, t.observers[i+1:]...)
		t.observers = next
		return true
	}
	return false
}

func (t *Timer) Observers() int {
	t.omu.Lock()
	defer t.omu.Unlock()
	return len(t.observers)
}

func (t *Timer) String() string {
	return fmt.Sprintf("timer(id=%d interval=%s policy=%s)", t.id, t.Interval(), t.policy)
}

// advance adds dt and reports whether the timer became due. When it did, the
// interval is subtracted and the returned Tick carries the pre-subtraction
// elapsed time.
func (t *Timer) advance(dt time.Duration) (Tick, bool) {
	total := time.Duration(t.elapsed.Add(int64(dt)))
	iv := t.Interval()
	if total < iv {
		return Tick{}, false
	}
	t.elapsed.Add(-int64(iv))
	return Tick{Timer: t, SinceLastTick: total}, true
}

// fire notifies every observer subscribed at this moment, in subscription
// order, then applies the completion policy.
func (t *Timer) fire(tick Tick) {
	if t.policy == OneShot {
		defer t.Dispose()
	}

	t.omu.Lock()
	subs := t.observers
	t.omu.Unlock()

	for _, s := range subs {
		s.fn(tick)
	}
}
