package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps entries in the content_cache table so several site
// instances share one cache.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool and ensures the cache
// table exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the cache table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS content_cache (
			key        TEXT PRIMARY KEY,
			value      JSONB,
			no_result  BOOLEAN NOT NULL DEFAULT FALSE,
			stored_at  TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create content_cache table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value, no_result, stored_at FROM content_cache WHERE key = $1`,
		key,
	).Scan(&value, &e.NoResult, &e.StoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}
	e.Value = value
	return &e, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, e *Entry) error {
	var value []byte
	if !e.NoResult {
		value = e.Value
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO content_cache (key, value, no_result, stored_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET value = $2, no_result = $3, stored_at = $4`,
		key, value, e.NoResult, e.StoredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cache entry %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM content_cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM content_cache WHERE left(key, length($1::text)) = $1::text`,
		prefix,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cache entries with prefix %q: %w", prefix, err)
	}
	return nil
}
