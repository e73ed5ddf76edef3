// Package hostloop drives a timer registry from a frame clock: each frame it
// samples the clock, advances the registry by the frame's delta, and sleeps
// to hold the target frame rate.
package hostloop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tickloop/internal/eventbus"
	"tickloop/internal/frameclock"
	"tickloop/internal/timers"
	logx "tickloop/pkg/logx"
)

const DefaultTargetFPS = 60

type Config struct {
	// TargetFPS is the paced frame rate. Values <= 0 mean DefaultTargetFPS.
	TargetFPS float64

	// MaxDelta caps the delta handed to the registry in one frame. 0 means
	// no cap.
	MaxDelta time.Duration

	// OverrunWarnPerSec caps warnings about frames that took more than twice
	// the target frame time. 0 disables them.
	OverrunWarnPerSec int

	// StatsEvery is how often frame stats are logged and published. 0
	// disables them.
	StatsEvery time.Duration
}

func (c Config) normalized() Config {
	if !(c.TargetFPS > 0) {
		c.TargetFPS = DefaultTargetFPS
	}
	if c.MaxDelta < 0 {
		c.MaxDelta = 0
	}
	if c.OverrunWarnPerSec < 0 {
		c.OverrunWarnPerSec = 0
	}
	return c
}

type Service struct {
	reg   *timers.Registry
	clock *frameclock.Clock
	log   logx.Logger
	bus   eventbus.Bus

	mu         sync.Mutex
	cfg        Config
	overrunLim *rate.Limiter // nil when overrun warnings are off

	frames   atomic.Uint64
	overruns atomic.Uint64
	panics   atomic.Uint64
	lastDt   atomic.Int64

	running atomic.Bool
}

func New(cfg Config, reg *timers.Registry, clock *frameclock.Clock, log logx.Logger, bus eventbus.Bus) *Service {
	if clock == nil {
		clock = frameclock.New()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Service{reg: reg, clock: clock, log: log, bus: bus}
	s.Apply(cfg)
	return s
}

// Apply swaps the loop settings. It is safe to call while Run is active;
// the next frame uses the new values.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.normalized()
	var lim *rate.Limiter
	if cfg.OverrunWarnPerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.OverrunWarnPerSec), cfg.OverrunWarnPerSec)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.overrunLim = lim
	s.mu.Unlock()
}

func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) Registry() *timers.Registry { return s.reg }
func (s *Service) Frames() uint64             { return s.frames.Load() }

// Run paces frames until ctx is canceled. Only one Run may be active.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("hostloop already running")
	}
	defer s.running.Store(false)

	s.clock.Start()
	defer s.clock.Stop()

	cfg := s.Config()
	s.log.Info("host loop started",
		logx.Float64("target_fps", cfg.TargetFPS),
		logx.Duration("max_delta", cfg.MaxDelta),
	)

	sleep := time.NewTimer(time.Hour)
	sleep.Stop()
	defer sleep.Stop()

	var sinceStats time.Duration
	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("host loop stopped", logx.Uint64("frames", s.frames.Load()))
			return nil
		}

		dt := s.clock.Signal()
		s.Step(dt)

		cfg = s.Config()
		if cfg.StatsEvery > 0 {
			sinceStats += dt
			if sinceStats >= cfg.StatsEvery {
				sinceStats = 0
				s.publishStats()
			}
		}

		delay := s.clock.Delay(cfg.TargetFPS)
		if delay <= 0 {
			continue
		}
		sleep.Reset(delay)
		select {
		case <-ctx.Done():
			sleep.Stop()
		case <-sleep.C:
		}
	}
}

// Step runs one frame of dt without touching the clock. A panicking observer
// is logged and the frame is abandoned; removals queued during the frame
// still take effect. It returns the delta actually applied.
func (s *Service) Step(dt time.Duration) time.Duration {
	s.mu.Lock()
	cfg, lim := s.cfg, s.overrunLim
	s.mu.Unlock()

	if dt < 0 {
		dt = 0
	}
	if desired := time.Duration(float64(time.Second) / cfg.TargetFPS); dt > 2*desired {
		s.overruns.Add(1)
		if lim != nil && lim.Allow() {
			s.log.Warn("frame overrun",
				logx.Duration("delta", dt),
				logx.Duration("target", desired),
				logx.Uint64("overruns", s.overruns.Load()),
			)
		}
	}
	if cfg.MaxDelta > 0 && dt > cfg.MaxDelta {
		dt = cfg.MaxDelta
	}

	s.frames.Add(1)
	s.lastDt.Store(int64(dt))
	s.update(dt)
	return dt
}

func (s *Service) update(dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.log.Error("timer observer panicked",
				logx.Any("panic", r),
				logx.Uint64("frame", s.frames.Load()),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	s.reg.Update(dt)
}

// Stats is a point-in-time view of the loop and its registry.
func (s *Service) Stats() eventbus.FrameStats {
	snap := s.reg.Snapshot()
	return eventbus.FrameStats{
		Frames:     s.frames.Load(),
		FPS:        s.clock.FPS(),
		Delta:      time.Duration(s.lastDt.Load()),
		Registered: snap.Registered,
		Enabled:    snap.Enabled,
		Ticks:      snap.Ticks,
		Overruns:   s.overruns.Load(),
	}
}

// Panics counts observer panics recovered by Step.
func (s *Service) Panics() uint64 { return s.panics.Load() }

func (s *Service) publishStats() {
	st := s.Stats()
	s.log.Debug("frame stats",
		logx.Uint64("frames", st.Frames),
		logx.Int("fps", st.FPS),
		logx.Int("timers", st.Registered),
		logx.Int("enabled", st.Enabled),
		logx.Uint64("ticks", st.Ticks),
		logx.Uint64("overruns", st.Overruns),
	)
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeFrameStats, Data: st})
}
