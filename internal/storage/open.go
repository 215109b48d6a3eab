package storage

import (
	"context"
	"errors"
	"strings"

	"biteboard/pkg/logx"
)

// Store loads and saves the whole Data document.
//
// Load returns empty Data when nothing was saved yet. Save is durable when it
// returns nil. Implementations are safe for concurrent use.
type Store interface {
	Load(ctx context.Context) (*Data, error)
	Save(ctx context.Context, d *Data) error
	Close() error
}

// Open initializes the configured store. An empty driver means "file".
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
