package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Roster   RosterConfig   `json:"roster,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via the
	// TELEGRAM_TOKEN environment variable (or a .env file) instead.
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// SendPerSec caps outbound messages per second (default 1).
	SendPerSec int `json:"send_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects and configures the roster store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./members.db" }
type StorageConfig struct {
	Driver string `json:"driver,omitempty"` // "file" (default) or "sqlite"
	Path   string `json:"path,omitempty"`   // default "./members.db"

	// StrictLoad is a pointer so an omitted field defaults to true
	// (fail the load on the first malformed line) while an explicit
	// false switches to skip-and-continue.
	StrictLoad *bool `json:"strict_load,omitempty"`

	// BusyTimeout is a Go duration string (sqlite driver only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type RosterConfig struct {
	// BatchSize is how many mention tokens go into one roll-call
	// message (default 15).
	BatchSize int `json:"batch_size,omitempty"`

	// FlushEvery re-persists the roster on an interval as a safety net
	// on top of persist-on-mutation. Go duration string; "0s" or an
	// omitted field disables the job.
	FlushEvery string `json:"flush_every,omitempty"`
}
