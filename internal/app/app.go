// Package app wires config, logging, storage, the timer registry and the
// host loop into one runnable process.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickloop/internal/config"
	"tickloop/internal/eventbus"
	"tickloop/internal/frameclock"
	"tickloop/internal/hostloop"
	"tickloop/internal/observability/pprof"
	"tickloop/internal/runtime/supervisor"
	"tickloop/internal/storage"
	"tickloop/internal/timers"
	logx "tickloop/pkg/logx"
)

type App struct {
	cfgPath  string
	logLevel string // overrides logging.level when set

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   *eventbus.MemBus
	store storage.Store

	clock  *frameclock.Clock
	reg    *timers.Registry
	loop   *hostloop.Service
	rec    *hostloop.Recorder
	timers *hostloop.TimerSet
	prof   *pprof.Service

	notify ReloadNotifier
}

// ReloadNotifier is told when a config reload starts applying and when the
// app is ready again. pkg/systemd's Notifier satisfies it.
type ReloadNotifier interface {
	Reloading() bool
	Ready() bool
}

type Option func(*App)

// WithLogLevel pins the log level, ignoring logging.level in the config
// (including on reload).
func WithLogLevel(level string) Option {
	return func(a *App) { a.logLevel = strings.TrimSpace(level) }
}

// WithClock replaces the frame clock. Tests use it with frameclock.WithNow.
func WithClock(c *frameclock.Clock) Option {
	return func(a *App) { a.clock = c }
}

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	a := &App{cfgPath: cfgPath}
	for _, o := range opts {
		o(a)
	}
	if a.logLevel != "" && !logx.ValidLevel(a.logLevel) {
		return nil, fmt.Errorf("invalid log level %q", a.logLevel)
	}

	a.cfgm = config.NewManager(cfgPath, logx.Nop())
	cfg, err := a.cfgm.Load()
	if err != nil {
		return nil, err
	}

	a.logs, a.log = logx.New(a.logxConfig(cfg))
	a.log = a.log.With(logx.String("comp", "app"))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.bus = eventbus.New()

	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		_ = a.logs.Close()
		return nil, err
	}
	if enabled {
		st, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = a.logs.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	loopCfg, err := mapLoopConfig(cfg)
	if err != nil {
		a.closeEarly()
		return nil, err
	}
	if _, err := mapPprofConfig(cfg); err != nil {
		a.closeEarly()
		return nil, err
	}

	if a.clock == nil {
		a.clock = frameclock.New()
	}
	a.reg = timers.New(timers.WithLogger(a.log.With(logx.String("comp", "timers"))))
	a.loop = hostloop.New(loopCfg, a.reg, a.clock, a.log.With(logx.String("comp", "hostloop")), a.bus)
	a.rec = hostloop.NewRecorder(a.store, a.bus, a.log.With(logx.String("comp", "recorder")), queueSize(cfg), a.loop.Frames)
	a.timers = hostloop.NewTimerSet(a.reg, a.log.With(logx.String("comp", "timers")), a.rec.Observer)
	if err := a.timers.Sync(cfg.Timers); err != nil {
		a.closeEarly()
		return nil, err
	}
	a.prof = pprof.New(a.log.With(logx.String("comp", "pprof")), a.debugStats)
	return a, nil
}

// DebugStats is served at the debug server's /statsz.
type DebugStats struct {
	Frame    eventbus.FrameStats `json:"frame"`
	Registry timers.Snapshot     `json:"registry"`
	Timers   []string            `json:"timers"`
	Recorded uint64              `json:"recorded"`
	Dropped  uint64              `json:"dropped"`
}

func (a *App) debugStats() any {
	return DebugStats{
		Frame:    a.loop.Stats(),
		Registry: a.reg.Snapshot(),
		Timers:   a.timers.Names(),
		Recorded: a.rec.Recorded(),
		Dropped:  a.rec.Dropped(),
	}
}

func (a *App) closeEarly() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
}

func (a *App) logxConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging.Logx()
	if a.logLevel != "" {
		lc.Level = a.logLevel
	}
	return lc
}

// SetReloadNotifier installs n. Call it before Start.
func (a *App) SetReloadNotifier(n ReloadNotifier) { a.notify = n }

func (a *App) Registry() *timers.Registry   { return a.reg }
func (a *App) Timers() *hostloop.TimerSet   { return a.timers }
func (a *App) Loop() *hostloop.Service      { return a.loop }
func (a *App) Bus() eventbus.Bus            { return a.bus }
func (a *App) Store() storage.Store         { return a.store }
func (a *App) Logger() logx.Logger          { return a.log }
func (a *App) Config() *config.Config       { return a.cfgm.Get() }
func (a *App) Recorder() *hostloop.Recorder { return a.rec }
func (a *App) Debug() *pprof.Service        { return a.prof }

// Done is closed when the app supervisor context is canceled (fatal error or
// Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	a.sup.Go("hostloop", a.loop.Run)
	a.sup.GoRestart("recorder", 250*time.Millisecond, 5*time.Second, a.rec.Run)

	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				// ticks are logged per timer already
				if e.Type == eventbus.TypeTimerTick {
					continue
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				newCfg = latest(sub, newCfg)
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	// the debug server is optional; a bind failure never stops the app
	if pc, err := mapPprofConfig(a.cfgm.Get()); err == nil {
		if err := a.prof.Apply(a.sup.Context(), pc); err != nil {
			a.log.Warn("pprof not started", logx.Err(err))
		}
	}

	a.log.Info("app started",
		logx.String("config", a.cfgPath),
		logx.Int("timers", a.reg.Len()),
	)
	return nil
}

// latest drains ch and returns the newest config in it, or cur.
func latest(ch <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-ch:
			if !ok {
				return cur
			}
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

// applyConfig pushes a reloaded config into the running services.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, tc := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if a.notify != nil {
		a.notify.Reloading()
	}

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(a.logxConfig(newCfg))
		case "loop":
			lc, err := mapLoopConfig(newCfg)
			if err != nil {
				a.log.Warn("invalid loop config; keeping previous", logx.Err(err))
				continue
			}
			a.loop.Apply(lc)
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "pprof":
			pc, err := mapPprofConfig(newCfg)
			if err != nil {
				a.log.Warn("invalid pprof config; keeping previous", logx.Err(err))
				continue
			}
			if err := a.prof.Apply(a.sup.Context(), pc); err != nil {
				a.log.Warn("pprof apply failed", logx.Err(err))
			}
		case "timers":
			if err := a.timers.Sync(newCfg.Timers); err != nil {
				a.log.Warn("invalid timers config; keeping previous", logx.Err(err))
				continue
			}
			a.log.Debug("timers synced",
				logx.Any("added", tc.Added),
				logx.Any("removed", tc.Removed),
				logx.Any("changed", tc.Changed),
			)
		}
	}

	if a.notify != nil {
		a.notify.Ready()
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigApplied, Data: eventbus.ConfigApplied{Sections: sections}})
	a.log.Info("config reloaded", fields...)
}

// Stop cancels the run context, then shuts components down in order, each
// step bounded so one component can't stall the whole stop. Call it once.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		// never started: nothing runs, only release what NewApp opened
		a.timers.Close()
		a.closeEarly()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	var firstErr error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		if err := runStep(ctx, max, fn); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	step("pprof", 2*time.Second, func(c context.Context) error {
		a.prof.Stop(c)
		return nil
	})
	// the loop and recorder exit on cancel; wait so the recorder has
	// flushed before the store closes
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("timers", time.Second, func(context.Context) error {
		a.timers.Close()
		a.reg.Update(0)
		return nil
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	st := a.loop.Stats()
	a.log.Info("stopped",
		logx.Uint64("frames", st.Frames),
		logx.Uint64("ticks", st.Ticks),
		logx.Uint64("recorded", a.rec.Recorded()),
		logx.Uint64("dropped", a.rec.Dropped()),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return firstErr
}

// runStep runs fn with a timeout no later than the caller's deadline. A step
// that ignores its context is abandoned, not waited for.
func runStep(ctx context.Context, max time.Duration, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-stepCtx.Done():
		return stepCtx.Err()
	}
}
