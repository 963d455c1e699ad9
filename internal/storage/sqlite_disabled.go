//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	"rollcall/internal/roster"
	logx "rollcall/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (roster.Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite storage not built: build with -tags sqlite")
}
