package storage

import (
	"context"
	"errors"
	"strings"

	logx "tickloop/pkg/logx"
)

// Store is the persistence API used by the host loop's recorder.
type Store interface {
	AppendTick(ctx context.Context, r TickRecord) error
	// RecentTicks returns up to limit records, oldest first.
	RecentTicks(ctx context.Context, limit int) ([]TickRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("storage", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
