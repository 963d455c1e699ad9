package storage

import (
	"errors"
	"strings"

	"rollcall/internal/roster"
	logx "rollcall/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (roster.Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
