package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vidsum/vidsumd/internal/cache"
)

// Store provides access to the daemon's durable state. It satisfies
// cache.Cache over the reply_cache table.
type Store struct {
	db *sql.DB
}

// A compile-time check that Store satisfies cache.Cache.
var _ cache.Cache = (*Store)(nil)

// NewStore creates a Store wrapping the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle, mainly for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Get returns the reply payload cached for a video id, or
// cache.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM reply_cache WHERE video_id = ?`,
		key,
	).Scan(&payload)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, cache.ErrNotFound

	case err != nil:
		return nil, fmt.Errorf("unable to query reply cache: %w", err)
	}

	return payload, nil
}

// Set stores the reply payload for a video id, replacing any previous
// entry.
func (s *Store) Set(ctx context.Context, key string, payload []byte) error {
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reply_cache (
			video_id, payload_json, created_at, updated_at
		) VALUES (?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at`,
		key, payload, now, now,
	)
	if err != nil {
		return fmt.Errorf("unable to upsert reply cache: %w", err)
	}

	return nil
}

// PruneBefore removes cache entries created before the cutoff, returning
// the number of rows removed.
func (s *Store) PruneBefore(ctx context.Context,
	cutoff time.Time) (int64, error) {

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reply_cache WHERE created_at < ?`,
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("unable to prune reply cache: %w", err)
	}

	return res.RowsAffected()
}
