// Package sqlstore provides SQLite-based durable storage for issued addresses
// and terminal task history. Uses WAL mode for concurrent reads and crash-safe
// writes.
package sqlstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/mail.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "mail.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Issued addresses. The unique index on the normalized address string
		// is the sole arbiter of collision correctness.
		`CREATE TABLE IF NOT EXISTS addresses (
			id         TEXT PRIMARY KEY,
			address    TEXT NOT NULL UNIQUE,
			owner_id   TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_addresses_owner ON addresses(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_addresses_created ON addresses(created_at)`,

		// One row per batch task reaching a terminal state.
		`CREATE TABLE IF NOT EXISTS batch_records (
			task_id       TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			domain        TEXT NOT NULL,
			total_count   INTEGER NOT NULL,
			created_count INTEGER NOT NULL,
			status        TEXT NOT NULL,
			error         TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL,
			completed_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_owner_created ON batch_records(owner_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
