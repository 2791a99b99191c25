// Package postgres provides the PostgreSQL-backed implementation of
// [storage.KV], used when dictation state must survive process restarts and
// be shared between instances.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxnote/voxnote/internal/storage"
)

// Compile-time interface check.
var _ storage.KV = (*Store)(nil)

// Store is a [storage.KV] backed by a single kv_entries table. Writes are
// upserts, matching the last-write-wins contract of the interface.
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the PostgreSQL database at dsn and ensures the
// kv_entries table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
		CREATE TABLE IF NOT EXISTS kv_entries (
		    key        text PRIMARY KEY,
		    value      bytea NOT NULL,
		    updated_at timestamptz NOT NULL DEFAULT now()
		)`
	_, err := pool.Exec(ctx, q)
	return err
}

// Get implements [storage.KV.Get].
func (s *Store) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	const q = `SELECT key, value FROM kv_entries WHERE key = ANY($1)`
	rows, err := s.pool.Query(ctx, q, keys)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("postgres store: scan: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: rows: %w", err)
	}
	return out, nil
}

// Set implements [storage.KV.Set]. Entries are upserted in a single batch.
func (s *Store) Set(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	const q = `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()`

	batch := &pgx.Batch{}
	for k, v := range values {
		batch.Queue(q, k, v)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range values {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres store: set: %w", err)
		}
	}
	return nil
}

// Delete implements [storage.KV.Delete].
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `DELETE FROM kv_entries WHERE key = ANY($1)`
	if _, err := s.pool.Exec(ctx, q, keys); err != nil {
		return fmt.Errorf("postgres store: delete: %w", err)
	}
	return nil
}

// Keys implements [storage.KV.Keys].
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	const q = `SELECT key FROM kv_entries WHERE key LIKE $1 || '%'`
	rows, err := s.pool.Query(ctx, q, prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres store: keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("postgres store: scan key: %w", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: rows: %w", err)
	}
	return out, nil
}

// Ping reports whether the database is reachable. Used by the readiness
// probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
