package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv_entries (
    collection TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (collection, key)
)`

// SQLiteBackend keeps every collection in a single local database file.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps ":memory:" databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
		sqliteSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("prepare sqlite: %w", err)
		}
	}
	return &SQLiteBackend{db: db}, nil
}

// Name identifies the backend in logs.
func (b *SQLiteBackend) Name() string { return "sqlite" }

// Collection returns the rows of kv_entries tagged with name.
func (b *SQLiteBackend) Collection(name string) Collection {
	return &sqliteCollection{db: b.db, name: name}
}

// Ping checks the database handle.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type sqliteCollection struct {
	db   *sql.DB
	name string
}

func (c *sqliteCollection) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE collection = ? AND key = ?`, c.name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (c *sqliteCollection) Put(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO kv_entries (collection, key, value, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		c.name, key, value, now())
	return err
}

func (c *sqliteCollection) PutIfAbsent(ctx context.Context, key, value string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `INSERT INTO kv_entries (collection, key, value, updated_at)
        VALUES (?, ?, ?, ?) ON CONFLICT (collection, key) DO NOTHING`,
		c.name, key, value, now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *sqliteCollection) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE collection = ? AND key = ?`, c.name, key)
	return err
}

func (c *sqliteCollection) All(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key, value FROM kv_entries WHERE collection = ?`, c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
