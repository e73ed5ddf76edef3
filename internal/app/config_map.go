package app

import (
	"fmt"
	"net"
	"strings"
	"time"

	"tickloop/internal/config"
	"tickloop/internal/hostloop"
	"tickloop/internal/observability/pprof"
	"tickloop/internal/storage"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		busy, err := sc.Busy()
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapLoopConfig(cfg *config.Config) (hostloop.Config, error) {
	maxDelta, statsEvery, err := cfg.Loop.Durations()
	if err != nil {
		return hostloop.Config{}, err
	}
	return hostloop.Config{
		TargetFPS:         cfg.Loop.FPS(),
		MaxDelta:          maxDelta,
		OverrunWarnPerSec: cfg.Loop.OverrunWarnPerSec,
		StatsEvery:        statsEvery,
	}, nil
}

func queueSize(cfg *config.Config) int {
	if cfg.Storage == nil {
		return config.DefaultQueueSize
	}
	return cfg.Storage.Queue()
}

// mapPprofConfig validates and converts the pprof section. It never starts
// the server.
func mapPprofConfig(cfg *config.Config) (pprof.Config, error) {
	pc := cfg.Pprof
	out := pprof.Config{
		Enabled:              pc.Enabled,
		Addr:                 strings.TrimSpace(pc.Addr),
		Prefix:               strings.TrimSpace(pc.Prefix),
		Token:                strings.TrimSpace(pc.Token),
		AllowInsecure:        pc.AllowInsecure,
		MutexProfileFraction: pc.MutexProfileFraction,
		BlockProfileRate:     pc.BlockProfileRate,
	}
	if out.Addr == "" {
		out.Addr = pprof.DefaultAddr
	}
	if out.Prefix == "" {
		out.Prefix = pprof.DefaultPrefix
	}

	var err error
	if out.ReadTimeout, err = config.ParseDurationOrDefault("pprof.read_timeout", pc.ReadTimeout, 5*time.Second); err != nil {
		return out, err
	}
	if out.IdleTimeout, err = config.ParseDurationOrDefault("pprof.idle_timeout", pc.IdleTimeout, 120*time.Second); err != nil {
		return out, err
	}

	if out.Enabled {
		if _, _, err := net.SplitHostPort(out.Addr); err != nil {
			return out, fmt.Errorf("pprof.addr: invalid %q (expected host:port): %w", out.Addr, err)
		}
		if !out.AllowInsecure && out.Token == "" && !pprof.IsLoopbackAddr(out.Addr) {
			return out, fmt.Errorf("pprof: binding to non-loopback addr requires token or allow_insecure=true")
		}
	}
	return out, nil
}
