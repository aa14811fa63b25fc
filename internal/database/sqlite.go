// Package database provides the embedded SQLite persistence layer: ticket
// provenance, the ingested-file ledger and the prediction history log. The
// in-memory corpus stays authoritative for training; this layer is
// write-through bookkeeping that survives restarts.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const pingTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source_code TEXT NOT NULL DEFAULT '',
	close_time  TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	expert      TEXT NOT NULL,
	grp         TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	full_text   TEXT NOT NULL,
	source_file TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ingested_files (
	path      TEXT PRIMARY KEY,
	records   INTEGER NOT NULL DEFAULT 0,
	loaded_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS prediction_history (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	title             TEXT NOT NULL,
	grp               TEXT NOT NULL DEFAULT '',
	expert            TEXT NOT NULL DEFAULT '',
	label             TEXT NOT NULL DEFAULT '',
	confidence        REAL NOT NULL DEFAULT 0,
	is_spam           INTEGER NOT NULL DEFAULT 0,
	fallback          INTEGER NOT NULL DEFAULT 0,
	needs_moderation  INTEGER NOT NULL DEFAULT 0,
	moderation_reason TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tickets_source_file ON tickets(source_file);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON prediction_history(created_at);
`

// Open connects to the SQLite database at path, creating the schema if
// needed. Use ":memory:" for tests.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
