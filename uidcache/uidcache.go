// Package uidcache provides a durable, sqlite-backed UID cache that
// survives across sessions (and process restarts), for callers that want
// MSN/UID mappings to persist beyond one Client's lifetime. It satisfies
// imapkit.UIDCache via structural typing, without importing the root
// package.
package uidcache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS folder_validity (
	folder   TEXT PRIMARY KEY,
	validity INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS uid_map (
	folder TEXT NOT NULL,
	msn    INTEGER NOT NULL,
	uid    INTEGER NOT NULL,
	PRIMARY KEY (folder, msn)
);

CREATE INDEX IF NOT EXISTS idx_uid_map_uid ON uid_map(folder, uid);
`

// DB is a durable UID cache backed by a SQLite database file, one per
// account. Safe for concurrent use.
type DB struct {
	db *sqlx.DB
}

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("uidcache: open %s: %w", path, err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("uidcache: init schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database connection.
func (d *DB) Close() error { return d.db.Close() }

// SetUIDValidity implements imapkit.UIDCache: it flushes the folder's
// cached mappings if validity has changed since it was last recorded.
func (d *DB) SetUIDValidity(folder string, validity uint32) {
	var prev sql.NullInt64
	_ = d.db.Get(&prev, `SELECT validity FROM folder_validity WHERE folder = ?`, folder)
	if prev.Valid && uint32(prev.Int64) != validity {
		_, _ = d.db.Exec(`DELETE FROM uid_map WHERE folder = ?`, folder)
	}
	_, _ = d.db.Exec(
		`INSERT INTO folder_validity (folder, validity) VALUES (?, ?)
		 ON CONFLICT(folder) DO UPDATE SET validity = excluded.validity`,
		folder, validity,
	)
}

// Put implements imapkit.UIDCache.
func (d *DB) Put(folder string, msn, uid uint32) {
	_, _ = d.db.Exec(
		`INSERT INTO uid_map (folder, msn, uid) VALUES (?, ?, ?)
		 ON CONFLICT(folder, msn) DO UPDATE SET uid = excluded.uid`,
		folder, msn, uid,
	)
}

// UIDForMSN implements imapkit.UIDCache.
func (d *DB) UIDForMSN(folder string, msn uint32) (uint32, bool) {
	var uid uint32
	err := d.db.Get(&uid, `SELECT uid FROM uid_map WHERE folder = ? AND msn = ?`, folder, msn)
	if err != nil {
		return 0, false
	}
	return uid, true
}

// MSNForUID implements imapkit.UIDCache.
func (d *DB) MSNForUID(folder string, uid uint32) (uint32, bool) {
	var msn uint32
	err := d.db.Get(&msn, `SELECT msn FROM uid_map WHERE folder = ? AND uid = ? ORDER BY msn DESC LIMIT 1`, folder, uid)
	if err != nil {
		return 0, false
	}
	return msn, true
}

// Flush implements imapkit.UIDCache.
func (d *DB) Flush(folder string) {
	_, _ = d.db.Exec(`DELETE FROM uid_map WHERE folder = ?`, folder)
	_, _ = d.db.Exec(`DELETE FROM folder_validity WHERE folder = ?`, folder)
}
