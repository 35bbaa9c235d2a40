// Package store persists per-document entry state in SQLite: one row per
// ever-seen document path carrying the stable id, fingerprint, and
// timestamps, plus a single-row table holding the feed's permanent id.
package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entry (
	id          TEXT PRIMARY KEY,
	published   INTEGER NOT NULL,
	updated     INTEGER NOT NULL,
	path        TEXT NOT NULL UNIQUE,
	fingerprint TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entry_path ON entry(path);

CREATE TABLE IF NOT EXISTS feed_identity (
	id TEXT PRIMARY KEY
);
`

// Record is one persisted entry row.
type Record struct {
	ID          string
	Path        string
	Fingerprint string
	Published   time.Time
	Updated     time.Time
}

// EntryStore is the persistence contract the reconciliation engine depends
// on. Consumers should depend on this interface rather than the concrete
// *DB type to facilitate testing with mocks.
type EntryStore interface {
	// Get returns the record for path, or nil when the path has never been
	// seen. Absence is a normal outcome, not an error.
	Get(path string) (*Record, error)
	// Insert adds a fresh record. A path collision fails with a
	// DuplicatePath error.
	Insert(rec Record) error
	// UpdateFingerprint advances the fingerprint and updated time of the
	// entry identified by id.
	UpdateFingerprint(id, fingerprint string, updated time.Time) error
	// Count returns the number of stored entries.
	Count() (int, error)
	// Paths returns every stored document path.
	Paths() ([]string, error)
	// FeedID returns the stored permanent feed id, or empty when unset.
	FeedID() (string, error)
	// SetFeedID inserts or replaces the permanent feed id.
	SetFeedID(id string) error
	Close() error
}

// Verify *DB satisfies EntryStore at compile time.
var _ EntryStore = (*DB)(nil)

// DB wraps a sql.DB with entry-store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreIO, err, "store: open %s", dsn)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.KindStoreIO, err, "store: ping")
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.KindStoreIO, err, "store: apply schema")
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the record for path, or nil when absent.
func (db *DB) Get(path string) (*Record, error) {
	var (
		rec                Record
		published, updated int64
	)
	err := db.conn.QueryRow(
		`SELECT id, path, fingerprint, published, updated FROM entry WHERE path = ?`, path,
	).Scan(&rec.ID, &rec.Path, &rec.Fingerprint, &published, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreIO, err, "store: get %s", path)
	}
	rec.Published = time.UnixMilli(published).UTC()
	rec.Updated = time.UnixMilli(updated).UTC()
	return &rec, nil
}

// Insert adds a fresh record for a never-seen path.
func (db *DB) Insert(rec Record) error {
	_, err := db.conn.Exec(
		`INSERT INTO entry (id, published, updated, path, fingerprint) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Published.UnixMilli(), rec.Updated.UnixMilli(), rec.Path, rec.Fingerprint,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return apperr.Wrap(apperr.KindDuplicatePath, err, "store: insert %s", rec.Path)
		}
		return apperr.Wrap(apperr.KindStoreIO, err, "store: insert %s", rec.Path)
	}
	return nil
}

// UpdateFingerprint records a content change for the entry with the given id.
func (db *DB) UpdateFingerprint(id, fingerprint string, updated time.Time) error {
	res, err := db.conn.Exec(
		`UPDATE entry SET fingerprint = ?, updated = ? WHERE id = ?`,
		fingerprint, updated.UnixMilli(), id,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreIO, err, "store: update %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindStoreIO, "store: update %s: no such entry", id)
	}
	return nil
}

// Count returns the number of stored entries.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entry`).Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.KindStoreIO, err, "store: count")
	}
	return n, nil
}

// Paths returns every stored document path.
func (db *DB) Paths() ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM entry`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreIO, err, "store: paths")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreIO, err, "store: paths scan")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FeedID returns the stored permanent feed id, or empty when unset.
func (db *DB) FeedID() (string, error) {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM feed_identity`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindStoreIO, err, "store: feed id")
	}
	return id, nil
}

// SetFeedID inserts or replaces the single feed-identity row.
func (db *DB) SetFeedID(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return apperr.Wrap(apperr.KindStoreIO, err, "store: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM feed_identity`); err != nil {
		return apperr.Wrap(apperr.KindStoreIO, err, "store: clear feed id")
	}
	if _, err := tx.Exec(`INSERT INTO feed_identity (id) VALUES (?)`, id); err != nil {
		return apperr.Wrap(apperr.KindStoreIO, err, "store: set feed id")
	}
	return tx.Commit()
}
