package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Durations resolves the loop's duration fields, applying defaults.
func (c LoopConfig) Durations() (maxDelta, statsEvery time.Duration, err error) {
	def, _ := time.ParseDuration(DefaultMaxDelta)
	if maxDelta, err = ParseDurationOrDefault("loop.max_delta", c.MaxDelta, def); err != nil {
		return 0, 0, err
	}
	def, _ = time.ParseDuration(DefaultStatsEvery)
	if statsEvery, err = ParseDurationOrDefault("loop.stats_every", c.StatsEvery, def); err != nil {
		return 0, 0, err
	}
	return maxDelta, statsEvery, nil
}

// FPS returns the target frame rate, or DefaultTargetFPS when unset.
func (c LoopConfig) FPS() float64 {
	if c.TargetFPS <= 0 {
		return DefaultTargetFPS
	}
	return c.TargetFPS
}

func (c StorageConfig) Busy() (time.Duration, error) {
	def, _ := time.ParseDuration(DefaultBusy)
	return ParseDurationOrDefault("storage.busy_timeout", c.BusyTimeout, def)
}

func (c StorageConfig) Queue() int {
	if c.QueueSize <= 0 {
		return DefaultQueueSize
	}
	return c.QueueSize
}
