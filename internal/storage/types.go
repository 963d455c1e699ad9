package storage

import (
	"errors"
	"time"
)

// ErrCorrupt marks a persisted row that does not parse. Under strict
// loading it aborts the load; lenient loading skips and counts such rows.
var ErrCorrupt = errors.New("corrupt roster store")

// Config configures a store.
//
// Driver values:
//   - "file" (default): pipe-delimited flat file, one member per line
//   - "sqlite": SQLite database file (build with -tags sqlite)
type Config struct {
	Driver string
	Path   string

	// StrictLoad fails the whole load on the first malformed row.
	// When false, malformed rows are skipped and counted instead.
	StrictLoad bool

	BusyTimeout time.Duration // sqlite only; 0 means default
}
