package config

import (
	logx "tickloop/pkg/logx"
)

// Defaults applied when a field is omitted or zero.
const (
	DefaultTargetFPS  = 60
	DefaultMaxDelta   = "250ms"
	DefaultStatsEvery = "10s"
	DefaultQueueSize  = 256
	DefaultBusy       = "5s"
)

type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Loop    LoopConfig     `json:"loop"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Pprof   PprofConfig    `json:"pprof"`
	Timers  []TimerConfig  `json:"timers"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`

	// RatePerSec caps warn-and-above lines per second. 0 disables the cap.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Logx converts the section to the logger's own config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:      c.Level,
		Console:    c.Console,
		File:       logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		RatePerSec: c.RatePerSec,
	}
}

// LoopConfig controls the host frame loop.
//
// All durations are Go duration strings (e.g. "250ms", "10s").
//
// Defaults (when fields are omitted/zero):
//   - target_fps: 60
//   - max_delta: "250ms"
//   - overrun_warn_per_sec: 0 (overrun warnings off)
//   - stats_every: "10s"
type LoopConfig struct {
	TargetFPS float64 `json:"target_fps,omitempty"`

	// MaxDelta clamps a single frame's delta so a stalled process does not
	// dump a huge step into every timer at once.
	MaxDelta string `json:"max_delta,omitempty"`

	OverrunWarnPerSec int    `json:"overrun_warn_per_sec,omitempty"`
	StatsEvery        string `json:"stats_every,omitempty"`
}

// StorageConfig controls the optional tick history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tickloop.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// QueueSize bounds the recorder's pending tick records.
	QueueSize int `json:"queue_size,omitempty"`
}

// PprofConfig controls the optional debug HTTP server (net/http/pprof,
// /healthz and frame stats at /statsz).
//
// Defaults: addr "127.0.0.1:6060", prefix "/debug/pprof/", read_timeout "5s",
// idle_timeout "120s". A non-loopback addr needs token or allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout string `json:"read_timeout,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}

// TimerConfig declares one timer built at startup.
//
// Every accepts anything internal/interval parses: "250ms", "1.5",
// "00:01:30", "@every 2s".
type TimerConfig struct {
	Name    string `json:"name"`
	ID      *int   `json:"id,omitempty"`
	Every   string `json:"every"`
	OneShot bool   `json:"one_shot,omitempty"`

	// Start is a pointer so we can distinguish "omitted" (start immediately)
	// from an explicit false.
	Start *bool `json:"start,omitempty"`
}

func (t TimerConfig) StartsEnabled() bool { return t.Start == nil || *t.Start }
