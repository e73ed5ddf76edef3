package hostloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"tickloop/internal/eventbus"
	"tickloop/internal/frameclock"
	"tickloop/internal/timers"
	logx "tickloop/pkg/logx"
)

func newTimer(t *testing.T, reg *timers.Registry, opts ...timers.TimerOption) *timers.Timer {
	t.Helper()
	tm, err := reg.NewTimer(opts...)
	if err != nil {
		t.Fatalf("NewTimer: %v", err)
	}
	return tm
}

func TestStepClampsDelta(t *testing.T) {
	t.Parallel()
	reg := timers.New()
	tm := newTimer(t, reg, timers.WithInterval(time.Second))
	tm.Start()

	s := New(Config{TargetFPS: 60, MaxDelta: 250 * time.Millisecond}, reg, nil, logx.Nop(), nil)
	if got := s.Step(10 * time.Second); got != 250*time.Millisecond {
		t.Fatalf("Step applied %s, want 250ms", got)
	}
	if tm.Elapsed() != 250*time.Millisecond {
		t.Fatalf("elapsed = %s, want 250ms", tm.Elapsed())
	}
	if got := s.Step(-time.Second); got != 0 {
		t.Fatalf("negative Step applied %s", got)
	}
	if s.Frames() != 2 {
		t.Fatalf("frames = %d, want 2", s.Frames())
	}
}

func TestStepRecoversObserverPanic(t *testing.T) {
	t.Parallel()
	reg := timers.New()
	tm, err := reg.NewOneShot(timers.WithInterval(time.Second))
	if err != nil {
		t.Fatalf("NewOneShot: %v", err)
	}
	tm.Subscribe(func(timers.Tick) { panic("observer blew up") })
	tm.Start()

	s := New(Config{}, reg, nil, logx.Nop(), nil)
	s.Step(time.Second)

	if s.Panics() != 1 {
		t.Fatalf("panics = %d, want 1", s.Panics())
	}
	if reg.Len() != 0 {
		t.Fatalf("one-shot still registered after panicking tick (len=%d)", reg.Len())
	}
}

func TestStepCountsOverruns(t *testing.T) {
	t.Parallel()
	reg := timers.New()
	s := New(Config{TargetFPS: 50, OverrunWarnPerSec: 1}, reg, nil, logx.Nop(), nil)

	s.Step(30 * time.Millisecond) // 1.5x target
	s.Step(50 * time.Millisecond) // 2.5x target
	s.Step(90 * time.Millisecond)

	if st := s.Stats(); st.Overruns != 2 || st.Frames != 3 || st.Delta != 90*time.Millisecond {
		t.Fatalf("stats = %+v", st)
	}
}

func TestApplyNormalizes(t *testing.T) {
	t.Parallel()
	s := New(Config{TargetFPS: 30}, timers.New(), nil, logx.Nop(), nil)
	s.Apply(Config{TargetFPS: -5, MaxDelta: -time.Second, OverrunWarnPerSec: -1})
	got := s.Config()
	if got.TargetFPS != DefaultTargetFPS || got.MaxDelta != 0 || got.OverrunWarnPerSec != 0 {
		t.Fatalf("normalized config = %+v", got)
	}
}

func TestRunDrivesTimers(t *testing.T) {
	t.Parallel()
	reg := timers.New()
	tm := newTimer(t, reg, timers.WithInterval(10*time.Millisecond), timers.WithID(1))
	var ticks atomic.Int32
	tm.Subscribe(func(timers.Tick) { ticks.Add(1) })
	tm.Start()

	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(Config{TargetFPS: 200, StatsEvery: 20 * time.Millisecond}, reg, frameclock.New(), logx.Nop(), bus)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	sawStats := false
	for ticks.Load() < 3 || !sawStats {
		select {
		case e := <-events:
			if e.Type == eventbus.TypeFrameStats {
				sawStats = true
			}
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			cancel()
			t.Fatalf("ticks=%d stats=%v before deadline", ticks.Load(), sawStats)
		}
	}

	if err := s.Run(ctx); err == nil {
		t.Fatal("second concurrent Run did not fail")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
