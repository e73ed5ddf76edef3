package hostloop

import (
	"context"
	"sync/atomic"
	"time"

	"tickloop/internal/eventbus"
	"tickloop/internal/storage"
	"tickloop/internal/timers"
	logx "tickloop/pkg/logx"
)

const defaultRecorderQueue = 256

// Recorder moves tick records off the frame goroutine. Observers built by
// Observer enqueue without blocking; Run persists them to the store (if any)
// and publishes timer.tick events.
type Recorder struct {
	store  storage.Store // may be nil
	bus    eventbus.Bus
	log    logx.Logger
	frames func() uint64
	now    func() time.Time

	ch       chan storage.TickRecord
	dropped  atomic.Uint64
	recorded atomic.Uint64
	failed   atomic.Uint64
}

// NewRecorder builds a recorder with room for queueSize pending records.
// frames, if set, stamps each record with the current frame number.
func NewRecorder(store storage.Store, bus eventbus.Bus, log logx.Logger, queueSize int, frames func() uint64) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultRecorderQueue
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{
		store:  store,
		bus:    bus,
		log:    log,
		frames: frames,
		now:    time.Now,
		ch:     make(chan storage.TickRecord, queueSize),
	}
}

// Observer returns a tick observer that records ticks under name.
func (r *Recorder) Observer(name string) timers.Observer {
	return func(t timers.Tick) {
		rec := storage.TickRecord{
			At:            r.now(),
			Name:          name,
			TimerID:       timers.NoID,
			SinceLastTick: t.SinceLastTick,
		}
		if t.Timer != nil {
			rec.TimerID = t.Timer.ID()
		}
		if r.frames != nil {
			rec.Frame = r.frames()
		}
		select {
		case r.ch <- rec:
		default:
			r.dropped.Add(1)
		}
	}
}

// Run consumes records until ctx is canceled, then flushes what is already
// queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case rec := <-r.ch:
			r.handle(ctx, rec)
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-r.ch:
			r.handle(ctx, rec)
		default:
			if d := r.dropped.Load(); d > 0 {
				r.log.Warn("tick records dropped (recorder queue full)", logx.Uint64("dropped", d))
			}
			return
		}
	}
}

func (r *Recorder) handle(ctx context.Context, rec storage.TickRecord) {
	if r.store != nil {
		if err := r.store.AppendTick(ctx, rec); err != nil {
			r.failed.Add(1)
			r.log.Warn("tick record not stored",
				logx.String("timer", rec.Name),
				logx.Int("timer_id", rec.TimerID),
				logx.Err(err),
			)
		}
	}
	r.recorded.Add(1)
	r.bus.Publish(eventbus.Event{
		Type: eventbus.TypeTimerTick,
		Time: rec.At,
		Data: eventbus.TimerTick{Name: rec.Name, TimerID: rec.TimerID, SinceLastTick: rec.SinceLastTick},
	})
}

func (r *Recorder) Dropped() uint64  { return r.dropped.Load() }
func (r *Recorder) Recorded() uint64 { return r.recorded.Load() }
func (r *Recorder) Failed() uint64   { return r.failed.Load() }
