package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// DefaultRetain is how many tick records a store keeps when Config.Retain is 0.
const DefaultRetain = 10000

// Config configures storage.
//
// Driver values:
//   - "file": <path>.ticks.jsonl
//   - "sqlite": SQLite database file at path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Retain bounds stored history; older records are pruned.
	Retain int
}

func (c Config) retain() int {
	if c.Retain <= 0 {
		return DefaultRetain
	}
	return c.Retain
}

// TickRecord is one persisted timer tick.
// Keep it compact and schema-stable.
type TickRecord struct {
	At            time.Time     `json:"at"`
	Name          string        `json:"name,omitempty"`
	TimerID       int           `json:"timer_id"`
	SinceLastTick time.Duration `json:"since_ns"`
	Frame         uint64        `json:"frame,omitempty"`
}
