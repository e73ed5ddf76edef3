package config

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	logx "tickloop/pkg/logx"
)

// TimerChanges lists timers (by name) that a reload adds, removes or edits.
// Unnamed timers are keyed by their index.
type TimerChanges struct {
	Added   []string
	Removed []string
	Changed []string
}

func (c TimerChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// SummarizeChange returns (1) a compact list of changed sections, (2)
// structured attrs for logging, and (3) the per-timer changes.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, TimerChanges) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Int("logging.rate_per_sec", newCfg.Logging.RatePerSec),
		)
	}

	if oldCfg.Loop.TargetFPS != newCfg.Loop.TargetFPS ||
		strings.TrimSpace(oldCfg.Loop.MaxDelta) != strings.TrimSpace(newCfg.Loop.MaxDelta) ||
		oldCfg.Loop.OverrunWarnPerSec != newCfg.Loop.OverrunWarnPerSec ||
		strings.TrimSpace(oldCfg.Loop.StatsEvery) != strings.TrimSpace(newCfg.Loop.StatsEvery) {
		changed = append(changed, "loop")
		attrs = append(attrs,
			logx.Float64("loop.target_fps", newCfg.Loop.TargetFPS),
			logx.String("loop.max_delta", strings.TrimSpace(newCfg.Loop.MaxDelta)),
			logx.Int("loop.overrun_warn_per_sec", newCfg.Loop.OverrunWarnPerSec),
			logx.String("loop.stats_every", strings.TrimSpace(newCfg.Loop.StatsEvery)),
		)
	}

	// storage is opened once at startup; a change is reported so operators
	// know a restart is needed
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		attrs = append(attrs, logx.String("storage.driver", driver), logx.Bool("storage.restart_required", true))
	}

	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(newCfg.Pprof.Addr)),
			logx.Bool("pprof.token_set", newCfg.Pprof.Token != ""),
		)
	}

	tc := diffTimers(oldCfg.Timers, newCfg.Timers)
	if !tc.Empty() {
		changed = append(changed, "timers")
		attrs = append(attrs,
			logx.Int("timers.added", len(tc.Added)),
			logx.Int("timers.removed", len(tc.Removed)),
			logx.Int("timers.changed", len(tc.Changed)),
		)
	}

	return changed, attrs, tc
}

// TimerKey is the identity used to match timers across reloads.
func TimerKey(i int, t TimerConfig) string {
	if n := strings.TrimSpace(t.Name); n != "" {
		return n
	}
	return "#" + strconv.Itoa(i)
}

func diffTimers(oldT, newT []TimerConfig) TimerChanges {
	om := make(map[string]TimerConfig, len(oldT))
	for i, t := range oldT {
		om[TimerKey(i, t)] = t
	}
	nm := make(map[string]TimerConfig, len(newT))
	for i, t := range newT {
		nm[TimerKey(i, t)] = t
	}

	var tc TimerChanges
	for k, nt := range nm {
		ot, ok := om[k]
		switch {
		case !ok:
			tc.Added = append(tc.Added, k)
		case !reflect.DeepEqual(ot, nt):
			tc.Changed = append(tc.Changed, k)
		}
	}
	for k := range om {
		if _, ok := nm[k]; !ok {
			tc.Removed = append(tc.Removed, k)
		}
	}
	sort.Strings(tc.Added)
	sort.Strings(tc.Removed)
	sort.Strings(tc.Changed)
	return tc
}
