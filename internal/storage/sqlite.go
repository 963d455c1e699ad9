//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"rollcall/internal/roster"
	logx "rollcall/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (roster.Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Load() (roster.Snapshot, error) {
	rows, err := s.db.Query(`SELECT chat_id, user_id, username, first_name, last_name FROM members`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := roster.Snapshot{}
	for rows.Next() {
		var chatID int64
		var m roster.Member
		if err := rows.Scan(&chatID, &m.ID, &m.Username, &m.FirstName, &m.LastName); err != nil {
			return snap, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		members, ok := snap[chatID]
		if !ok {
			members = map[int64]roster.Member{}
			snap[chatID] = members
		}
		members[m.ID] = m
	}
	return snap, rows.Err()
}

// Save replaces the whole persisted snapshot in one transaction, mirroring
// the file driver's overwrite semantics.
func (s *sqliteStore) Save(snap roster.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM members`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO members(chat_id, user_id, username, first_name, last_name) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for chatID, members := range snap {
		for _, m := range members {
			if _, err := stmt.Exec(chatID, m.ID, m.Username, m.FirstName, m.LastName); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
