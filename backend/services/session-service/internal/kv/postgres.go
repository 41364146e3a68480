package kv

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore keeps values in a single key/value table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns store over db. Call EnsureSchema once before use.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the backing table.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS fairpay_kv (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Get returns the stored value.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM fairpay_kv WHERE key = $1`
	var value []byte
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// Set upserts the value.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO fairpay_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}

// Delete removes the row if present.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM fairpay_kv WHERE key = $1`
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}
