package timers

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logx "tickloop/pkg/logx"
)

type Option func(*Registry)

func WithLogger(log logx.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// Registry owns the live set of timers and drives them from Update.
// All methods are safe for concurrent use.
type Registry struct {
	log logx.Logger

	// mu guards the live set.
	mu     sync.Mutex
	timers []*Timer // registration order
	index  map[*Timer]struct{}

	// queueMu guards the destruction queue. Lock order: queueMu, then mu.
	queueMu sync.Mutex
	queue   []*Timer

	updates atomic.Uint64
	ticks   atomic.Uint64
}

// Snapshot is a point-in-time view of a registry, for logs and diagnostics.
type Snapshot struct {
	Registered     int
	Enabled        int
	PendingRemoval int
	Updates        uint64
	Ticks          uint64
}

func New(opts ...Option) *Registry {
	r := &Registry{index: map[*Timer]struct{}{}}
	for _, o := range opts {
		o(r)
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	return r
}

// NewTimer builds a disabled timer and registers it. Without options the
// timer has DefaultInterval, NoID and the Repeating policy.
func (r *Registry) NewTimer(opts ...TimerOption) (*Timer, error) {
	o := timerOptions{id: NoID, interval: DefaultInterval, policy: Repeating}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval <= 0 {
		return nil, fmt.Errorf("new timer (id=%d): %w: got %s", o.id, ErrInvalidInterval, o.interval)
	}
	t := &Timer{reg: r, id: o.id, policy: o.policy}
	t.interval.Store(int64(o.interval))
	r.AddTimer(t)
	return t, nil
}

// NewOneShot is NewTimer with the OneShot policy.
func (r *Registry) NewOneShot(opts ...TimerOption) (*Timer, error) {
	return r.NewTimer(append(opts, WithPolicy(OneShot))...)
}

// AddTimer registers t. Adding a timer that is already in the live set has
// no effect, including one queued for removal: that removal still happens at
// the next drain. A drained timer can be added again.
func (r *Registry) AddTimer(t *Timer) {
	if t == nil {
		return
	}
	if t.reg != r {
		r.log.Warn("ignoring timer owned by another registry", logx.Int("timer_id", t.id))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[t]; ok {
		return
	}
	r.index[t] = struct{}{}
	r.timers = append(r.timers, t)
	t.state.Store(int32(Registered))
}

// RemoveTimer disables t and queues it for removal at the end of the next
// drain. It only takes the queue lock, so observers may call it while Update
// is dispatching. Timers that are not registered, or already queued, are
// ignored.
func (r *Registry) RemoveTimer(t *Timer) {
	if t == nil || t.reg != r {
		return
	}
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	if !t.state.CompareAndSwap(int32(Registered), int32(PendingRemoval)) {
		return
	}
	t.enabled.Store(false)
	r.queue = append(r.queue, t)
}

// Update advances every enabled timer by dt and fires the ones that became
// due, at most once each. Negative deltas count as zero.
//
// Observers run on the calling goroutine with no registry lock held. If an
// observer panics the drain still runs before the panic reaches the caller;
// timers later in the snapshot are not advanced in that call.
func (r *Registry) Update(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	r.updates.Add(1)
	defer r.drain()

	for _, t := range r.enabledSnapshot() {
		tick, due := t.advance(dt)
		if !due {
			continue
		}
		r.ticks.Add(1)
		t.fire(tick)
	}
}

func (r *Registry) enabledSnapshot() []*Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Timer, 0, len(r.timers))
	for _, t := range r.timers {
		if t.enabled.Load() {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) drain() {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	removed := 0
	for len(r.queue) > 0 {
		t := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]

		r.mu.Lock()
		if t.state.CompareAndSwap(int32(PendingRemoval), int32(Detached)) {
			r.removeLocked(t)
			removed++
		}
		r.mu.Unlock()
	}
	r.queue = nil
	if removed > 0 {
		r.log.Trace("timers drained", logx.Int("removed", removed))
	}
}

func (r *Registry) removeLocked(t *Timer) {
	if _, ok := r.index[t]; !ok {
		return
	}
	delete(r.index, t)
	for i, x := range r.timers {
		if x == t {
			copy(r.timers[i:], r.timers[i+1:])
			r.timers[len(r.timers)-1] = nil
			r.timers = r.timers[:len(r.timers)-1]
			return
		}
	}
}

// Len returns the size of the live set, including timers queued for removal.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Pending returns how many removals are waiting for the next drain.
func (r *Registry) Pending() int {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	return len(r.queue)
}

// Timers returns the live set in registration order.
func (r *Registry) Timers() []*Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Timer(nil), r.timers...)
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	snap := Snapshot{Registered: len(r.timers)}
	for _, t := range r.timers {
		if t.enabled.Load() {
			snap.Enabled++
		}
	}
	r.mu.Unlock()

	snap.PendingRemoval = r.Pending()
	snap.Updates = r.updates.Load()
	snap.Ticks = r.ticks.Load()
	return snap
}
