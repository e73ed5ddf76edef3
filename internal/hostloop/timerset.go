package hostloop

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"tickloop/internal/config"
	"tickloop/internal/interval"
	"tickloop/internal/timers"
	logx "tickloop/pkg/logx"
)

// ObserverFactory builds an extra observer for the named timer.
type ObserverFactory func(name string) timers.Observer

// TimerSet keeps a registry's timers in line with the config's timer list.
type TimerSet struct {
	reg       *timers.Registry
	log       logx.Logger
	factories []ObserverFactory

	mu      sync.Mutex
	entries map[string]timerEntry
	// spent holds the config of timers that left the registry on their own
	// (fired one-shots), so an unchanged entry is not rebuilt on reload.
	spent map[string]config.TimerConfig
}

type timerEntry struct {
	cfg   config.TimerConfig
	timer *timers.Timer
}

func NewTimerSet(reg *timers.Registry, log logx.Logger, factories ...ObserverFactory) *TimerSet {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TimerSet{
		reg:       reg,
		log:       log,
		factories: factories,
		entries:   map[string]timerEntry{},
		spent:     map[string]config.TimerConfig{},
	}
}

// Sync disposes timers that left the list or changed, and builds the ones
// that are new or changed. Unchanged timers keep their elapsed time, and an
// unchanged one-shot that already fired is not declared again. On a bad
// entry nothing is modified.
func (s *TimerSet) Sync(cfgs []config.TimerConfig) error {
	want := make(map[string]config.TimerConfig, len(cfgs))
	order := make([]string, 0, len(cfgs))
	specs := make(map[string]interval.Spec, len(cfgs))
	for i, c := range cfgs {
		key := config.TimerKey(i, c)
		if _, dup := want[key]; dup {
			return fmt.Errorf("timers[%d]: duplicate timer %q", i, key)
		}
		sp, err := interval.Parse(c.Every)
		if err != nil {
			return fmt.Errorf("timers[%d] (%s): %w", i, key, err)
		}
		want[key] = c
		specs[key] = sp
		order = append(order, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	for key, c := range s.spent {
		if w, ok := want[key]; !ok || !reflect.DeepEqual(w, c) {
			delete(s.spent, key)
		}
	}
	for key, e := range s.entries {
		if c, ok := want[key]; ok && reflect.DeepEqual(c, e.cfg) {
			continue
		}
		e.timer.Dispose()
		delete(s.entries, key)
		s.log.Debug("timer disposed", logx.String("timer", key))
	}

	for _, key := range order {
		if _, ok := s.entries[key]; ok {
			continue
		}
		if _, ok := s.spent[key]; ok {
			continue
		}
		c := want[key]
		t, err := s.build(key, c, specs[key])
		if err != nil {
			return err
		}
		s.entries[key] = timerEntry{cfg: c, timer: t}
	}
	return nil
}

func (s *TimerSet) build(name string, c config.TimerConfig, sp interval.Spec) (*timers.Timer, error) {
	id := timers.NoID
	if c.ID != nil {
		id = *c.ID
	}
	policy := timers.Repeating
	if c.OneShot {
		policy = timers.OneShot
	}

	t, err := s.reg.NewTimer(timers.WithID(id), timers.WithInterval(sp.Every), timers.WithPolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("timer %s: %w", name, err)
	}

	log := s.log.With(logx.String("timer", name), logx.Int("timer_id", id))
	t.Subscribe(func(tk timers.Tick) {
		log.Debug("tick", logx.Duration("since_last_tick", tk.SinceLastTick))
	})
	for _, f := range s.factories {
		if obs := f(name); obs != nil {
			t.Subscribe(obs)
		}
	}
	if c.StartsEnabled() {
		t.Start()
	}
	log.Info("timer declared",
		logx.Duration("interval", sp.Every),
		logx.String("interval_source", sp.Source),
		logx.String("policy", policy.String()),
		logx.Bool("started", c.StartsEnabled()),
	)
	return t, nil
}

// pruneLocked moves timers that are no longer registered (fired one-shots,
// timers disposed by a caller) from entries to spent.
func (s *TimerSet) pruneLocked() {
	for key, e := range s.entries {
		if e.timer.State() != timers.Detached {
			continue
		}
		delete(s.entries, key)
		s.spent[key] = e.cfg
		s.log.Debug("timer finished", logx.String("timer", key))
	}
}

// Get returns the live timer declared under name. A one-shot that fired and
// was drained is no longer live.
func (s *TimerSet) Get(name string) (*timers.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	e, ok := s.entries[name]
	return e.timer, ok
}

// Names lists live declared timers, sorted.
func (s *TimerSet) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Close disposes every declared timer.
func (s *TimerSet) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		e.timer.Dispose()
		delete(s.entries, key)
	}
	clear(s.spent)
}
