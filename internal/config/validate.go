package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"tickloop/internal/interval"
	logx "tickloop/pkg/logx"
)

// Validate checks cfg and returns every problem found, joined. Messages are
// prefixed with the JSON path of the offending field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add("logging.file.path: required when logging.file.enabled")
	}
	if cfg.Logging.RatePerSec < 0 {
		add("logging.rate_per_sec: must be >= 0")
	}

	if fps := cfg.Loop.TargetFPS; fps < 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		add("loop.target_fps: must be a finite number >= 0")
	}
	if _, err := ParseDurationField("loop.max_delta", cfg.Loop.MaxDelta); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("loop.stats_every", cfg.Loop.StatsEvery); err != nil {
		errs = append(errs, err)
	}
	if cfg.Loop.OverrunWarnPerSec < 0 {
		add("loop.overrun_warn_per_sec: must be >= 0")
	}

	if s := cfg.Storage; s != nil {
		switch d := strings.ToLower(strings.TrimSpace(s.Driver)); d {
		case "", "none":
		case "file", "sqlite":
			if strings.TrimSpace(s.Path) == "" {
				add("storage.path: required for driver %q", d)
			}
		default:
			add("storage.driver: unknown driver %q (use none, file or sqlite)", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if s.QueueSize < 0 {
			add("storage.queue_size: must be >= 0")
		}
	}

	if _, err := ParseDurationField("pprof.read_timeout", cfg.Pprof.ReadTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("pprof.idle_timeout", cfg.Pprof.IdleTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Pprof.MutexProfileFraction < 0 {
		add("pprof.mutex_profile_fraction: must be >= 0")
	}
	if cfg.Pprof.BlockProfileRate < 0 {
		add("pprof.block_profile_rate: must be >= 0")
	}

	names := map[string]int{}
	for i, t := range cfg.Timers {
		p := fmt.Sprintf("timers[%d]", i)
		if n := strings.TrimSpace(t.Name); n != "" {
			if j, dup := names[n]; dup {
				add("%s.name: %q already used by timers[%d]", p, n, j)
			} else {
				names[n] = i
			}
		}
		if _, err := interval.Parse(t.Every); err != nil {
			add("%s.every: %w", p, err)
		}
	}

	return errors.Join(errs...)
}
