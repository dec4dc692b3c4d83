package crx_arm

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Key of the first-run info dialog flag.
const infoSeenKey = "info_popup_seen"

const preferencesSchema = `
CREATE TABLE IF NOT EXISTS preferences (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
`

// PreferenceStore persists small viewer settings in a sqlite file.
type PreferenceStore struct {
	db *sql.DB
}

// OpenPreferenceStore opens (creating if needed) the store at path.
func OpenPreferenceStore(path string) (*PreferenceStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating preferences directory %s", dir)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open preferences database")
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), preferencesSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate preferences schema")
	}
	return &PreferenceStore{db: db}, nil
}

// Bool reads a boolean preference; missing keys read as false.
func (s *PreferenceStore) Bool(ctx context.Context, key string) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read preference %s", key)
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrapf(err, "preference %s holds %q", key, raw)
	}
	return v, nil
}

// SetBool writes a boolean preference.
func (s *PreferenceStore) SetBool(ctx context.Context, key string, value bool) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, strftime('%s','now'))
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, strconv.FormatBool(value))
	if err != nil {
		return errors.Wrapf(err, "write preference %s", key)
	}
	return nil
}

// InfoSeen reports whether the first-run info dialog was dismissed.
func (s *PreferenceStore) InfoSeen(ctx context.Context) (bool, error) {
	return s.Bool(ctx, infoSeenKey)
}

// SetInfoSeen records the first-run info dialog state.
func (s *PreferenceStore) SetInfoSeen(ctx context.Context, seen bool) error {
	return s.SetBool(ctx, infoSeenKey, seen)
}

// Close closes the database.
func (s *PreferenceStore) Close() error {
	return s.db.Close()
}
