// Package eventbus is an in-memory fanout of small runtime events (ticks,
// frame stats, config reloads) from the host loop to whoever listens.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by tickloop.
const (
	TypeTimerTick     = "timer.tick"
	TypeFrameStats    = "frame.stats"
	TypeConfigApplied = "config.applied"
)

// Event is a lightweight signal used to decouple components.
//
// Contract:
//   - Publish never blocks.
//   - Subscribers get buffered channels.
//   - Slow subscribers drop events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// TimerTick is the Data of a TypeTimerTick event.
type TimerTick struct {
	Name          string
	TimerID       int
	SinceLastTick time.Duration
}

// FrameStats is the Data of a TypeFrameStats event.
type FrameStats struct {
	Frames     uint64
	FPS        int
	Delta      time.Duration
	Registered int
	Enabled    int
	Ticks      uint64
	Overruns   uint64
}

// ConfigApplied is the Data of a TypeConfigApplied event.
type ConfigApplied struct {
	Sections []string
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() *MemBus {
	return &MemBus{subs: map[uint64]chan Event{}}
}

type MemBus struct {
	// mu is held for reading during delivery, so unsubscribe (write lock)
	// never closes a channel mid-send.
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64

	dropped atomic.Uint64
}

func (b *MemBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *MemBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}

// Dropped counts deliveries skipped because a subscriber's buffer was full.
func (b *MemBus) Dropped() uint64 { return b.dropped.Load() }

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}
