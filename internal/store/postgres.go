package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS kv_entries (
    collection TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (collection, key)
)`

// PostgresBackend stores every collection in the kv_entries table.
type PostgresBackend struct {
	db *pgxpool.Pool
}

// NewPostgres ensures the schema exists and takes ownership of db.
func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*PostgresBackend, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create kv_entries: %w", err)
	}
	return &PostgresBackend{db: db}, nil
}

// Name identifies the backend in logs.
func (b *PostgresBackend) Name() string { return "postgres" }

// Collection returns the rows of kv_entries tagged with name.
func (b *PostgresBackend) Collection(name string) Collection {
	return &postgresCollection{db: b.db, name: name}
}

// Ping checks connectivity.
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.Ping(ctx)
}

// Close releases the pool.
func (b *PostgresBackend) Close() error {
	b.db.Close()
	return nil
}

type postgresCollection struct {
	db   *pgxpool.Pool
	name string
}

func (c *postgresCollection) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := c.db.QueryRow(ctx, `SELECT value FROM kv_entries WHERE collection = $1 AND key = $2`, c.name, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (c *postgresCollection) Put(ctx context.Context, key, value string) error {
	_, err := c.db.Exec(ctx, `INSERT INTO kv_entries (collection, key, value, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		c.name, key, value, time.Now().UTC())
	return err
}

func (c *postgresCollection) PutIfAbsent(ctx context.Context, key, value string) (bool, error) {
	cmd, err := c.db.Exec(ctx, `INSERT INTO kv_entries (collection, key, value, updated_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (collection, key) DO NOTHING`,
		c.name, key, value, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (c *postgresCollection) Delete(ctx context.Context, key string) error {
	_, err := c.db.Exec(ctx, `DELETE FROM kv_entries WHERE collection = $1 AND key = $2`, c.name, key)
	return err
}

func (c *postgresCollection) All(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.Query(ctx, `SELECT key, value FROM kv_entries WHERE collection = $1`, c.name)
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
