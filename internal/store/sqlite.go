package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLitePersister stores the envelope as one row of a key/value table.
type SQLitePersister struct {
	db  *sql.DB
	key string
}

// NewSQLitePersister opens (or creates) the database at path. Use
// ":memory:" for a throwaway database.
func NewSQLitePersister(ctx context.Context, path string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLitePersister{db: db, key: StorageKey}, nil
}

// Load reads the envelope row.
func (p *SQLitePersister) Load(ctx context.Context) ([]record.Record, error) {
	var value string
	err := p.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", p.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", p.key, err)
	}
	return decodeEnvelope([]byte(value))
}

// Save upserts the envelope row.
func (p *SQLitePersister) Save(ctx context.Context, records []record.Record) error {
	data, err := encodeEnvelope(records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		p.key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing %s: %w", p.key, err)
	}
	return nil
}

// Wipe deletes the persisted row.
func (p *SQLitePersister) Wipe(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", p.key)
	return err
}

// Close closes the database.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
