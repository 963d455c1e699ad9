package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"rollcall/internal/roster"
	logx "rollcall/pkg/logx"
)

// fileStore persists the registry as a flat text file:
//
//	<chatID>|<userID>|<username>|<firstName>|<lastName>
//
// one line per tracked member, no header. Saves replace the whole file via
// write-temp-then-rename so a crash mid-write never truncates the roster.
type fileStore struct {
	log    logx.Logger
	path   string
	strict bool

	mu sync.Mutex
}

const (
	fieldSep      = "|"
	fieldsPerLine = 5
)

func openFile(cfg Config, log logx.Logger) (roster.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// Ensure the file exists so the first Load is a clean empty roster.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	return &fileStore{log: log, path: path, strict: cfg.StrictLoad}, nil
}

func (s *fileStore) Load() (roster.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return roster.Snapshot{}, nil
		}
		return nil, err
	}
	defer f.Close()

	snap := roster.Snapshot{}
	skipped := 0
	lineNo := 0

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lineNo++
		line := sc.Text()

		chatID, m, perr := parseLine(line)
		if perr != nil {
			if s.strict {
				return snap, fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, perr)
			}
			skipped++
			continue
		}

		members, ok := snap[chatID]
		if !ok {
			members = map[int64]roster.Member{}
			snap[chatID] = members
		}
		// Duplicate keys can only come from manual edits; last line wins,
		// consistent with in-memory overwrite semantics.
		members[m.ID] = m
	}
	if err := sc.Err(); err != nil {
		return snap, err
	}

	if skipped > 0 {
		s.log.Warn("skipped malformed roster lines", logx.Int("count", skipped), logx.String("path", s.path))
	}
	return snap, nil
}

func (s *fileStore) Save(snap roster.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for chatID, members := range snap {
		for _, m := range members {
			if _, err := w.WriteString(formatLine(chatID, m)); err != nil {
				_ = tmp.Close()
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *fileStore) Close() error { return nil }

func parseLine(line string) (chatID int64, m roster.Member, err error) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != fieldsPerLine {
		return 0, roster.Member{}, fmt.Errorf("expected %d fields, got %d", fieldsPerLine, len(parts))
	}
	chatID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, roster.Member{}, fmt.Errorf("bad chat id %q", parts[0])
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, roster.Member{}, fmt.Errorf("bad user id %q", parts[1])
	}
	return chatID, roster.Member{
		ID:        userID,
		Username:  parts[2],
		FirstName: parts[3],
		LastName:  parts[4],
	}, nil
}

func formatLine(chatID int64, m roster.Member) string {
	return strconv.FormatInt(chatID, 10) + fieldSep +
		strconv.FormatInt(m.ID, 10) + fieldSep +
		sanitizeField(m.Username) + fieldSep +
		sanitizeField(m.FirstName) + fieldSep +
		sanitizeField(m.LastName) + "\n"
}

// sanitizeField strips characters that would break the line format.
// The delimiter cannot appear in Telegram usernames, but display names are
// free-form; dropping the offending runes beats corrupting the row.
func sanitizeField(v string) string {
	if !strings.ContainsAny(v, fieldSep+"\n\r") {
		return v
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '|', '\n', '\r':
			return -1
		}
		return r
	}, v)
}
